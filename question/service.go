package question

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Catalog abstracts repository access for the service and its consumers.
type Catalog interface {
	ActiveSet(ctx context.Context, requestType, taskType string) ([]Question, error)
	List(ctx context.Context) ([]Question, error)
	Insert(ctx context.Context, q Question) (Question, error)
	Update(ctx context.Context, params UpdateParams) (Question, error)
	Deactivate(ctx context.Context, id string) error
}

// Invalidator is notified after every catalog mutation so cached question
// listings are never stale.
type Invalidator interface {
	Invalidate(keys ...string)
}

type Service struct {
	repo  Catalog
	cache Invalidator
	idGen func() string
	now   func() time.Time
}

func NewService(repo Catalog, cache Invalidator) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		idGen: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// ActiveSet returns the ordered active questions for the pair, or an empty
// slice when the set is not configured. Callers decide whether empty means
// misconfigured.
func (s *Service) ActiveSet(ctx context.Context, requestType, taskType string) ([]Question, error) {
	return s.repo.ActiveSet(ctx, requestType, taskType)
}

func (s *Service) List(ctx context.Context) ([]Question, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Question, error) {
	if strings.TrimSpace(params.Text) == "" {
		return Question{}, fmt.Errorf("question: text required")
	}
	if params.TaskType == "" {
		return Question{}, fmt.Errorf("question: task type required")
	}
	if params.PointsPossible < 0 {
		return Question{}, fmt.Errorf("question: points possible must not be negative")
	}

	setID := params.SetID
	if setID == "" {
		setID = "set-" + s.idGen()
	}

	q := Question{
		ID:             s.idGen(),
		SetID:          setID,
		RequestType:    params.RequestType,
		TaskType:       params.TaskType,
		SequenceID:     params.SequenceID,
		Text:           params.Text,
		PointsPossible: params.PointsPossible,
		Active:         true,
		CreatedBy:      params.CreatedBy,
	}

	created, err := s.repo.Insert(ctx, q)
	if err != nil {
		return Question{}, err
	}
	s.invalidate()
	return created, nil
}

func (s *Service) Update(ctx context.Context, params UpdateParams) (Question, error) {
	if strings.TrimSpace(params.Text) == "" {
		return Question{}, fmt.Errorf("question: text required")
	}
	q, err := s.repo.Update(ctx, params)
	if err != nil {
		return Question{}, err
	}
	s.invalidate()
	return q, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate("all_questions")
	}
}
