package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qaflow/cache"
	"qaflow/metrics"
	"qaflow/question"
)

// Store abstracts repository operations for the lock manager.
type Store interface {
	Get(ctx context.Context, auditID string) (Audit, error)
	Claim(ctx context.Context, auditID, actorEmail string, timeout time.Duration) (Audit, error)
	Release(ctx context.Context, auditID string, final Status) error
	Heartbeat(ctx context.Context, auditID string) error
	ForceUnlock(ctx context.Context, auditID string) error
	MarkMisconfigured(ctx context.Context, auditID string) error
	ListPending(ctx context.Context) ([]Audit, error)
	ListAll(ctx context.Context) ([]Audit, error)
	ScanStaleLocks(ctx context.Context, timeout time.Duration) ([]StaleLock, error)
	ReleaseIfLockedAt(ctx context.Context, auditID string, observed time.Time) (bool, error)
}

// QuestionCatalog supplies the active question set for an audit's task pair.
type QuestionCatalog interface {
	ActiveSet(ctx context.Context, requestType, taskType string) ([]question.Question, error)
}

// ErrMisconfigured signals the audit exists but has no active question set and
// has been moved to its terminal misconfigured status.
var ErrMisconfigured = errors.New("audit: no active question set")

// Service is the audit lock manager. It serializes access to a single audit so
// only one analyst evaluates it at a time while tolerating abandoned sessions.
type Service struct {
	repo        Store
	questions   QuestionCatalog
	cache       *cache.Store
	metrics     *metrics.Metrics
	lockTimeout time.Duration
}

func NewService(repo Store, questions QuestionCatalog, lockTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		questions:   questions,
		lockTimeout: lockTimeout,
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

// Claim takes the exclusive lock on an audit for actorEmail. Expired locks are
// stolen; live locks fail with ErrAlreadyLocked, terminal audits with
// ErrTerminalStatus.
func (s *Service) Claim(ctx context.Context, auditID, actorEmail string) (Audit, error) {
	a, err := s.repo.Claim(ctx, auditID, actorEmail, s.lockTimeout)
	if err != nil {
		s.countClaim(err)
		return Audit{}, err
	}
	s.countClaim(nil)
	s.invalidateListings()
	return a, nil
}

// PrepareEvaluation claims the audit and returns it with its ordered question
// set. When the set is empty the audit is marked misconfigured instead, and
// ErrMisconfigured is returned.
func (s *Service) PrepareEvaluation(ctx context.Context, auditID, actorEmail string) (Audit, []question.Question, error) {
	a, err := s.Claim(ctx, auditID, actorEmail)
	if err != nil {
		return Audit{}, nil, err
	}

	qs, err := s.questions.ActiveSet(ctx, a.RequestType, a.TaskType)
	if err != nil {
		// Claim landed but the catalog read failed; hand the lock back so the
		// audit does not sit locked until the reaper notices.
		_ = s.repo.Release(ctx, auditID, StatusPending)
		s.invalidateListings()
		return Audit{}, nil, err
	}
	if len(qs) == 0 {
		if err := s.repo.MarkMisconfigured(ctx, auditID); err != nil {
			return Audit{}, nil, err
		}
		s.invalidateListings()
		return Audit{}, nil, ErrMisconfigured
	}
	return a, qs, nil
}

// Release clears the lock and applies the final status. Idempotent. Only
// pending (abandon) and evaluated (completion) are valid release targets;
// anything else would bypass the lock state machine.
func (s *Service) Release(ctx context.Context, auditID string, final Status) error {
	if final != StatusPending && final != StatusEvaluated {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, final)
	}
	if err := s.repo.Release(ctx, auditID, final); err != nil {
		return err
	}
	s.invalidateListings()
	return nil
}

// Heartbeat refreshes the lock so a long-running session is not reaped.
// A no-op when the audit is not currently locked.
func (s *Service) Heartbeat(ctx context.Context, auditID string) error {
	return s.repo.Heartbeat(ctx, auditID)
}

// ForceUnlock is the administrative override: back to pending, lock cleared,
// regardless of owner. Terminal audits stay terminal.
func (s *Service) ForceUnlock(ctx context.Context, auditID string) error {
	if err := s.repo.ForceUnlock(ctx, auditID); err != nil {
		return err
	}
	s.invalidateListings()
	return nil
}

// MarkMisconfigured is for callers that discover an empty question set outside
// of PrepareEvaluation.
func (s *Service) MarkMisconfigured(ctx context.Context, auditID string) error {
	if err := s.repo.MarkMisconfigured(ctx, auditID); err != nil {
		return err
	}
	s.invalidateListings()
	return nil
}

func (s *Service) Get(ctx context.Context, auditID string) (Audit, error) {
	return s.repo.Get(ctx, auditID)
}

// ListPending serves the claimable queue through the read-through cache. The
// projection is display-only; Claim never consults it.
func (s *Service) ListPending(ctx context.Context) ([]Audit, error) {
	return cache.Get(ctx, s.cache, cache.KeyPendingAudits, s.repo.ListPending)
}

func (s *Service) ListAll(ctx context.Context) ([]Audit, error) {
	return cache.Get(ctx, s.cache, cache.KeyAllAudits, s.repo.ListAll)
}

func (s *Service) invalidateListings() {
	if s.cache != nil {
		s.cache.Invalidate(cache.KeyAllAudits, cache.KeyPendingAudits)
	}
}

func (s *Service) countClaim(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.ClaimsTotal.WithLabelValues("acquired").Inc()
	case errors.Is(err, ErrAlreadyLocked), errors.Is(err, ErrTerminalStatus):
		s.metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
	case errors.Is(err, ErrNotFound):
		s.metrics.ClaimsTotal.WithLabelValues("not_found").Inc()
	default:
		s.metrics.ClaimsTotal.WithLabelValues("error").Inc()
	}
}
