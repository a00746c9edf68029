package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"qaflow/cache"
	"qaflow/metrics"
)

// Store abstracts repository access for the resolution engine.
type Store interface {
	File(ctx context.Context, d Dispute) (Dispute, error)
	Get(ctx context.Context, id string) (Dispute, error)
	List(ctx context.Context) ([]Dispute, error)
	BeginReview(ctx context.Context, disputeID string) (Status, bool, error)
	Resolve(ctx context.Context, params ResolveParams, now time.Time) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Service manages the challenge-and-reconciliation workflow over completed
// evaluations.
type Service struct {
	repo    Store
	cache   *cache.Store
	metrics *metrics.Metrics
	idGen   func() string
	now     func() time.Time
}

func NewService(repo Store) *Service {
	return &Service{
		repo:  repo,
		idGen: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

func (s *Service) WithCache(c *cache.Store) *Service {
	s.cache = c
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// File creates a pending dispute and flips the evaluation to disputed. Fails
// with ErrAlreadyDisputed while a previous dispute is still active.
func (s *Service) File(ctx context.Context, evalID, userEmail, reason string, questionIDs []string) (Dispute, error) {
	if evalID == "" {
		return Dispute{}, fmt.Errorf("dispute: missing evaluation id")
	}
	if userEmail == "" {
		return Dispute{}, fmt.Errorf("dispute: missing user email")
	}
	if len(questionIDs) == 0 {
		return Dispute{}, fmt.Errorf("dispute: at least one question id required")
	}
	if strings.TrimSpace(reason) == "" {
		return Dispute{}, fmt.Errorf("dispute: reason required")
	}

	d := Dispute{
		ID:               s.idGen(),
		EvalID:           evalID,
		UserEmail:        userEmail,
		DisputeTimestamp: s.now().UTC(),
		Reason:           reason,
		QuestionIDs:      questionIDs,
		Status:           StatusPending,
	}

	filed, err := s.repo.File(ctx, d)
	if err != nil {
		return Dispute{}, err
	}
	s.invalidate()
	if s.metrics != nil {
		s.metrics.DisputesFiled.Inc()
	}
	return filed, nil
}

// BeginReview guards against double-opening: an already-reviewing or closed
// dispute yields a non-success result, not an error.
func (s *Service) BeginReview(ctx context.Context, disputeID string) (ReviewResult, error) {
	current, opened, err := s.repo.BeginReview(ctx, disputeID)
	if err != nil {
		return ReviewResult{}, err
	}
	if !opened {
		return ReviewResult{
			OK:     false,
			Reason: fmt.Sprintf("dispute is already %s", current),
		}, nil
	}
	s.invalidate()
	return ReviewResult{OK: true}, nil
}

// Resolve applies the decisions, recomputes the evaluation, and closes the
// dispute with the given terminal status (resolved when unspecified).
func (s *Service) Resolve(ctx context.Context, params ResolveParams) error {
	if params.DisputeID == "" {
		return fmt.Errorf("dispute: missing dispute id")
	}
	if params.ResolvedBy == "" {
		return fmt.Errorf("dispute: missing resolver identity")
	}
	if params.FinalStatus == "" {
		params.FinalStatus = StatusResolved
	}
	if !params.FinalStatus.Terminal() {
		return fmt.Errorf("dispute: final status %q is not terminal", params.FinalStatus)
	}
	for _, dec := range params.Decisions {
		if dec.Resolution != ResolutionOverturned && dec.Resolution != ResolutionUpheld {
			return fmt.Errorf("dispute: invalid resolution %q for question %s", dec.Resolution, dec.QuestionID)
		}
	}

	if err := s.repo.Resolve(ctx, params, s.now().UTC()); err != nil {
		return err
	}
	s.invalidate()
	if s.metrics != nil {
		s.metrics.DisputesResolved.WithLabelValues(string(params.FinalStatus)).Inc()
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Dispute, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Dispute, error) {
	return cache.Get(ctx, s.cache, cache.KeyAllDisputes, s.repo.List)
}

// Stats folds the status counts into the dashboard summary.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for status, n := range counts {
		st.Total += n
		switch status {
		case StatusPartialOverturn:
			st.PartialOverturns += n
		case StatusOverturned:
			st.Overturned += n
		case StatusUpheld:
			st.Upheld += n
		}
	}
	return st, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate(cache.KeyAllDisputes, cache.KeyAllEvals)
	}
}
