// Package actors drives the workflow services concurrently against a real
// database, the way a fleet of analysts, agents, and reviewers would.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"qaflow/audit"
	"qaflow/dispute"
	"qaflow/evaluation"
)

func jitter(base, spread int) time.Duration {
	return time.Duration(base+rand.Intn(spread)) * time.Millisecond
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func expected(err error, sentinels ...error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Claimer fights over audit locks: claims, sometimes heartbeats, sometimes
// releases cleanly, and sometimes abandons the lock for the reaper to find.
func Claimer(ctx context.Context, repo *audit.Repository, auditIDs []string, email string, timeout time.Duration, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		id := auditIDs[rand.Intn(len(auditIDs))]

		_, err := repo.Claim(ctx, id, email, timeout)
		if err != nil {
			if expected(err, audit.ErrAlreadyLocked, audit.ErrTerminalStatus, audit.ErrNotFound) {
				time.Sleep(jitter(10, 20))
				continue
			}
			return fmt.Errorf("claimer claim %s: %w", id, err)
		}

		switch rand.Intn(4) {
		case 0:
			// Abandon the session; the lock stays until the reaper sweeps it.
		case 1:
			if err := repo.Heartbeat(ctx, id); err != nil && !expected(err) {
				return fmt.Errorf("claimer heartbeat %s: %w", id, err)
			}
			fallthrough
		default:
			// The lock may have expired, been stolen, and evaluated in the
			// meantime; releasing back to pending is then refused.
			if err := repo.Release(ctx, id, audit.StatusPending); err != nil && !expected(err, audit.ErrTerminalStatus) {
				return fmt.Errorf("claimer release %s: %w", id, err)
			}
		}
		time.Sleep(jitter(10, 30))
	}
	return nil
}

// Evaluator runs the full happy path: prepare, answer every question, submit.
func Evaluator(ctx context.Context, audits *audit.Service, scorer *evaluation.Scorer, auditIDs []string, email string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		id := auditIDs[rand.Intn(len(auditIDs))]

		_, qs, err := audits.PrepareEvaluation(ctx, id, email)
		if err != nil {
			if expected(err, audit.ErrAlreadyLocked, audit.ErrTerminalStatus, audit.ErrNotFound, audit.ErrMisconfigured) {
				time.Sleep(jitter(15, 30))
				continue
			}
			return fmt.Errorf("evaluator prepare %s: %w", id, err)
		}

		responses := make([]evaluation.ResponseInput, 0, len(qs))
		for _, q := range qs {
			resp := evaluation.ResponseYes
			if rand.Intn(3) == 0 {
				resp = evaluation.ResponseNo
			}
			responses = append(responses, evaluation.ResponseInput{QuestionID: q.ID, Response: resp})
		}

		_, err = scorer.Submit(ctx, evaluation.SubmitParams{
			AuditID:   id,
			QAEmail:   email,
			Responses: responses,
		})
		switch {
		case err == nil:
		case errors.Is(err, evaluation.ErrDuplicateAudit):
			// A previous submit persisted the evaluation but its release was
			// lost; finish the transition now.
			if err := audits.Release(ctx, id, audit.StatusEvaluated); err != nil && !expected(err, audit.ErrTerminalStatus) {
				return fmt.Errorf("evaluator finish %s: %w", id, err)
			}
		case expected(err, evaluation.ErrLockLost):
			// Reaper or a competing claim took the lock mid-evaluation.
		default:
			return fmt.Errorf("evaluator submit %s: %w", id, err)
		}
		time.Sleep(jitter(20, 40))
	}
	return nil
}

// Disputer files disputes against completed evaluations; duplicates are
// expected under contention.
func Disputer(ctx context.Context, disputes *dispute.Service, evals *evaluation.Repository, email string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		list, err := evals.List(ctx)
		if err != nil {
			if expected(err) {
				return nil
			}
			return fmt.Errorf("disputer list: %w", err)
		}
		if len(list) == 0 {
			time.Sleep(jitter(50, 50))
			continue
		}

		e := list[rand.Intn(len(list))]
		if len(e.Questions) == 0 {
			continue
		}
		qid := e.Questions[rand.Intn(len(e.Questions))].QuestionID

		_, err = disputes.File(ctx, e.ID, email, "score challenged under load", []string{qid})
		if err != nil && !expected(err, dispute.ErrAlreadyDisputed, dispute.ErrEvalNotFound) {
			return fmt.Errorf("disputer file eval %s: %w", e.ID, err)
		}
		time.Sleep(jitter(100, 100))
	}
	return nil
}

// Resolver reviews and closes open disputes with random per-question verdicts.
func Resolver(ctx context.Context, disputes *dispute.Service, email string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		list, err := disputes.List(ctx)
		if err != nil {
			if expected(err) {
				return nil
			}
			return fmt.Errorf("resolver list: %w", err)
		}

		var open []dispute.Dispute
		for _, d := range list {
			if !d.Status.Terminal() {
				open = append(open, d)
			}
		}
		if len(open) == 0 {
			time.Sleep(jitter(50, 50))
			continue
		}

		d := open[rand.Intn(len(open))]
		if _, err := disputes.BeginReview(ctx, d.ID); err != nil && !expected(err, dispute.ErrNotFound) {
			return fmt.Errorf("resolver review %s: %w", d.ID, err)
		}

		decisions := make([]dispute.Decision, 0, len(d.QuestionIDs))
		overturns := 0
		for _, qid := range d.QuestionIDs {
			res := dispute.ResolutionUpheld
			if rand.Intn(2) == 0 {
				res = dispute.ResolutionOverturned
				overturns++
			}
			decisions = append(decisions, dispute.Decision{QuestionID: qid, Resolution: res, Note: "reviewed under load"})
		}

		final := dispute.StatusUpheld
		switch {
		case overturns == len(decisions) && overturns > 0:
			final = dispute.StatusOverturned
		case overturns > 0:
			final = dispute.StatusPartialOverturn
		}

		err = disputes.Resolve(ctx, dispute.ResolveParams{
			DisputeID:       d.ID,
			Decisions:       decisions,
			ResolutionNotes: "stress resolution",
			FinalStatus:     final,
			ResolvedBy:      email,
		})
		if err != nil && !expected(err, dispute.ErrAlreadyResolved, dispute.ErrNotFound, dispute.ErrUnknownQuestion) {
			return fmt.Errorf("resolver resolve %s: %w", d.ID, err)
		}
		time.Sleep(jitter(100, 150))
	}
	return nil
}
