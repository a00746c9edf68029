package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"qaflow/audit"
	"qaflow/cache"
	"qaflow/metrics"
	"qaflow/question"
)

var (
	// ErrLockLost signals the submitting analyst no longer holds the audit
	// lock, typically because the reaper reclaimed it mid-evaluation.
	ErrLockLost = errors.New("evaluation: audit lock not held by submitter")
	// ErrUnknownQuestion signals a response references a question outside the
	// audit's active set.
	ErrUnknownQuestion = errors.New("evaluation: unknown question id")
	// ErrMissingResponse signals an active question was left unanswered.
	ErrMissingResponse = errors.New("evaluation: missing response for active question")
	// ErrDuplicateResponse signals the same question was answered more than once.
	ErrDuplicateResponse = errors.New("evaluation: duplicate response for question")
	// ErrInvalidResponse signals a response value other than yes/no.
	ErrInvalidResponse = errors.New("evaluation: response must be yes or no")
)

// Store abstracts repository access for the scorer.
type Store interface {
	Create(ctx context.Context, eval Evaluation) (Evaluation, error)
	GetByID(ctx context.Context, id string) (Evaluation, error)
	GetByAudit(ctx context.Context, auditID string) (Evaluation, error)
	List(ctx context.Context) ([]Evaluation, error)
}

// LockManager is the slice of the audit service the scorer needs: ownership
// checks before scoring and the evaluated-transition afterwards.
type LockManager interface {
	Get(ctx context.Context, auditID string) (audit.Audit, error)
	Release(ctx context.Context, auditID string, final audit.Status) error
}

// Notifier delivers the completed evaluation to the agent. Fire-and-forget:
// failures are logged, never surfaced.
type Notifier interface {
	Send(ctx context.Context, eval Evaluation) error
}

// Scorer converts a completed response set into a persisted, scored
// evaluation and closes out the source audit.
type Scorer struct {
	repo      Store
	locks     LockManager
	questions audit.QuestionCatalog
	notifier  Notifier
	cache     *cache.Store
	metrics   *metrics.Metrics
	log       *slog.Logger
	idGen     func() string
	now       func() time.Time
}

func NewScorer(repo Store, locks LockManager, questions audit.QuestionCatalog, log *slog.Logger) *Scorer {
	return &Scorer{
		repo:      repo,
		locks:     locks,
		questions: questions,
		log:       log,
		idGen:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

func (s *Scorer) WithNotifier(n Notifier) *Scorer {
	s.notifier = n
	return s
}

func (s *Scorer) WithCache(c *cache.Store) *Scorer {
	s.cache = c
	return s
}

func (s *Scorer) WithMetrics(m *metrics.Metrics) *Scorer {
	s.metrics = m
	return s
}

func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

func (s *Scorer) WithIDGenerator(gen func() string) *Scorer {
	s.idGen = gen
	return s
}

// Submit validates lock ownership, scores the responses, persists the
// evaluation as one unit, and only then releases the audit to evaluated, so a
// crash mid-sequence leaves a locked audit rather than a lost evaluation.
func (s *Scorer) Submit(ctx context.Context, params SubmitParams) (Evaluation, error) {
	if params.AuditID == "" {
		return Evaluation{}, fmt.Errorf("evaluation: missing audit id")
	}
	if params.QAEmail == "" {
		return Evaluation{}, fmt.Errorf("evaluation: missing qa email")
	}
	for _, resp := range params.Responses {
		if resp.Response != ResponseYes && resp.Response != ResponseNo {
			return Evaluation{}, ErrInvalidResponse
		}
	}

	a, err := s.locks.Get(ctx, params.AuditID)
	if err != nil {
		return Evaluation{}, err
	}
	if a.Status != audit.StatusInProcess || a.LockedBy == nil || *a.LockedBy != params.QAEmail {
		return Evaluation{}, ErrLockLost
	}

	qs, err := s.questions.ActiveSet(ctx, a.RequestType, a.TaskType)
	if err != nil {
		return Evaluation{}, err
	}
	byID := make(map[string]question.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	answered := make(map[string]bool, len(params.Responses))
	for _, resp := range params.Responses {
		if _, ok := byID[resp.QuestionID]; !ok {
			return Evaluation{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, resp.QuestionID)
		}
		if answered[resp.QuestionID] {
			return Evaluation{}, fmt.Errorf("%w: %s", ErrDuplicateResponse, resp.QuestionID)
		}
		answered[resp.QuestionID] = true
	}
	for _, q := range qs {
		if !answered[q.ID] {
			return Evaluation{}, fmt.Errorf("%w: %s", ErrMissingResponse, q.ID)
		}
	}

	evalID := s.idGen()
	stop := s.now().UTC()
	start := params.StartTimestamp
	if start.IsZero() {
		start = stop
	}

	details := make([]Detail, 0, len(params.Responses))
	totalPoints, totalPossible := 0, 0
	for i, resp := range params.Responses {
		q := byID[resp.QuestionID]
		earned := 0
		if resp.Response == ResponseYes {
			earned = q.PointsPossible
		}
		totalPoints += earned
		totalPossible += q.PointsPossible
		details = append(details, Detail{
			ID:             fmt.Sprintf("%s-q%d", evalID, i+1),
			EvalID:         evalID,
			QuestionID:     q.ID,
			QuestionText:   q.Text,
			Response:       resp.Response,
			PointsEarned:   earned,
			PointsPossible: q.PointsPossible,
			Feedback:       resp.Feedback,
		})
	}

	eval := Evaluation{
		ID:                  evalID,
		SourceAuditID:       a.AuditID,
		ReferenceNumber:     a.ReferenceNumber,
		TaskType:            a.TaskType,
		Outcome:             a.Outcome,
		QAEmail:             params.QAEmail,
		StartTimestamp:      start,
		StopTimestamp:       stop,
		TotalPoints:         totalPoints,
		TotalPointsPossible: totalPossible,
		Status:              StatusCompleted,
		Feedback:            params.Feedback,
		EvalScore:           Score(totalPoints, totalPossible),
		Questions:           details,
	}

	created, err := s.repo.Create(ctx, eval)
	if err != nil {
		return Evaluation{}, err
	}

	if err := s.locks.Release(ctx, a.AuditID, audit.StatusEvaluated); err != nil {
		// The evaluation is durable; the lock will expire and the reaper would
		// reset the audit to pending, so surface the failure.
		return Evaluation{}, fmt.Errorf("evaluation: release audit: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(cache.KeyAllEvals)
	}
	if s.metrics != nil {
		s.metrics.EvaluationsTotal.Inc()
	}
	s.notify(ctx, created)

	return created, nil
}

func (s *Scorer) GetByID(ctx context.Context, id string) (Evaluation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Scorer) GetByAudit(ctx context.Context, auditID string) (Evaluation, error) {
	return s.repo.GetByAudit(ctx, auditID)
}

func (s *Scorer) List(ctx context.Context) ([]Evaluation, error) {
	return cache.Get(ctx, s.cache, cache.KeyAllEvals, s.repo.List)
}

func (s *Scorer) notify(ctx context.Context, eval Evaluation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, eval); err != nil {
		s.log.Warn("evaluation notification failed",
			"eval_id", eval.ID,
			"source_audit_id", eval.SourceAuditID,
			"error", err)
		if s.metrics != nil {
			s.metrics.NotifyFailures.Inc()
		}
	}
}

// Score guards the zero-possible edge: an evaluation with no obtainable points
// scores zero rather than dividing by zero.
func Score(points, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(points) / float64(possible)
}
