package dispute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDisputeLifecycle_Integration connects to a real PostgreSQL via
// DATABASE_URL and walks a dispute from filing through resolution, verifying
// the single-active-dispute guard and the evaluation recompute.
func TestDisputeLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "disputes_queue") || !tableExists(ctx, t, pool, "eval_summary") {
		t.Skip("database schema missing; apply migrations first")
	}

	suffix := time.Now().UnixNano()
	auditID := fmt.Sprintf("itest-dsp-audit-%d", suffix)
	evalID := fmt.Sprintf("itest-dsp-eval-%d", suffix)

	if _, err := pool.Exec(ctx, `
		INSERT INTO audit_queue (audit_id, audit_status, request_type, task_type)
		VALUES ($1, 'evaluated', 'billing', 'phone')
	`, auditID); err != nil {
		t.Fatalf("seed audit: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO eval_summary (id, source_audit_id, qa_email, start_ts, stop_ts,
		                          total_points, total_points_possible, status, eval_score)
		VALUES ($1, $2, 'qa@example.com', now(), now(), 5, 10, 'completed', 0.5)
	`, evalID, auditID); err != nil {
		t.Fatalf("seed evaluation: %v", err)
	}
	details := []struct {
		questionID string
		response   string
		earned     int
	}{
		{"q1", "yes", 5},
		{"q2", "no", 0},
	}
	for _, d := range details {
		_, err := pool.Exec(ctx, `
			INSERT INTO eval_questions (id, eval_id, question_id, question_text, response, points_earned, points_possible)
			VALUES ($1, $2, $3, $4, $5, $6, 5)
		`, evalID+"-"+d.questionID, evalID, d.questionID, "Question "+d.questionID+"?", d.response, d.earned)
		if err != nil {
			t.Fatalf("seed detail: %v", err)
		}
	}
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM disputes_queue WHERE eval_id = $1`, evalID)
		pool.Exec(ctx2, `DELETE FROM eval_questions WHERE eval_id = $1`, evalID)
		pool.Exec(ctx2, `DELETE FROM eval_summary WHERE id = $1`, evalID)
		pool.Exec(ctx2, `DELETE FROM audit_queue WHERE audit_id = $1`, auditID)
	})

	repo := NewRepository(pool)

	// File flips the evaluation to disputed.
	filed, err := repo.File(ctx, Dispute{
		ID:               fmt.Sprintf("itest-dsp-%d", suffix),
		EvalID:           evalID,
		UserEmail:        "agent@example.com",
		DisputeTimestamp: time.Now().UTC(),
		Reason:           "question 2 was answered",
		QuestionIDs:      []string{"q2"},
		Status:           StatusPending,
	})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	var evalStatus string
	if err := pool.QueryRow(ctx, `SELECT status FROM eval_summary WHERE id = $1`, evalID).Scan(&evalStatus); err != nil {
		t.Fatalf("read eval status: %v", err)
	}
	if evalStatus != "disputed" {
		t.Fatalf("expected evaluation disputed, got %q", evalStatus)
	}

	// The partial unique index rejects a second active dispute.
	_, err = repo.File(ctx, Dispute{
		ID:               fmt.Sprintf("itest-dsp2-%d", suffix),
		EvalID:           evalID,
		UserEmail:        "agent@example.com",
		DisputeTimestamp: time.Now().UTC(),
		Reason:           "second attempt",
		QuestionIDs:      []string{"q2"},
		Status:           StatusPending,
	})
	if !errors.Is(err, ErrAlreadyDisputed) {
		t.Fatalf("expected ErrAlreadyDisputed, got %v", err)
	}

	// First review opens; the second reports the current state without error.
	status, opened, err := repo.BeginReview(ctx, filed.ID)
	if err != nil {
		t.Fatalf("begin review: %v", err)
	}
	if !opened || status != StatusReviewing {
		t.Fatalf("expected review opened, got status=%s opened=%v", status, opened)
	}
	status, opened, err = repo.BeginReview(ctx, filed.ID)
	if err != nil {
		t.Fatalf("begin review (repeat): %v", err)
	}
	if opened || status != StatusReviewing {
		t.Fatalf("expected double-open report, got status=%s opened=%v", status, opened)
	}

	// Overturning q2 restores its points and recomputes the summary.
	err = repo.Resolve(ctx, ResolveParams{
		DisputeID:       filed.ID,
		Decisions:       []Decision{{QuestionID: "q2", Resolution: ResolutionOverturned, Note: "agent was right"}},
		ResolutionNotes: "verified against the call recording",
		FinalStatus:     StatusOverturned,
		ResolvedBy:      "reviewer@example.com",
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var totalPoints, totalPossible int
	var score float64
	if err := pool.QueryRow(ctx, `
		SELECT total_points, total_points_possible, eval_score, status FROM eval_summary WHERE id = $1
	`, evalID).Scan(&totalPoints, &totalPossible, &score, &evalStatus); err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if totalPoints != 10 || totalPossible != 10 || score != 1.0 {
		t.Fatalf("expected recomputed 10/10 score 1.0, got %d/%d %v", totalPoints, totalPossible, score)
	}
	if evalStatus != "resolved" {
		t.Fatalf("expected evaluation resolved, got %q", evalStatus)
	}

	resolved, err := repo.Get(ctx, filed.ID)
	if err != nil {
		t.Fatalf("get dispute: %v", err)
	}
	if resolved.Status != StatusOverturned || resolved.ResolvedBy == nil || resolved.ResolutionTimestamp == nil {
		t.Fatalf("unexpected resolved dispute: %+v", resolved)
	}

	// Closed disputes cannot be re-resolved, but a fresh filing is allowed.
	err = repo.Resolve(ctx, ResolveParams{
		DisputeID:   filed.ID,
		Decisions:   nil,
		FinalStatus: StatusUpheld,
		ResolvedBy:  "reviewer@example.com",
	}, time.Now().UTC())
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if _, err := repo.File(ctx, Dispute{
		ID:               fmt.Sprintf("itest-dsp3-%d", suffix),
		EvalID:           evalID,
		UserEmail:        "agent@example.com",
		DisputeTimestamp: time.Now().UTC(),
		Reason:           "second round",
		QuestionIDs:      []string{"q1"},
		Status:           StatusPending,
	}); err != nil {
		t.Fatalf("file after terminal dispute: %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
