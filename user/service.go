package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"qaflow/cache"
)

// Directory abstracts repository access for the service.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	Insert(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, u User) (User, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo        Directory
	cache       *cache.Store
	defaultRole Role
	idGen       func() string
}

func NewService(repo Directory, defaultRole Role) *Service {
	if defaultRole == "" {
		defaultRole = RoleQAAnalyst
	}
	return &Service{
		repo:        repo,
		defaultRole: defaultRole,
		idGen:       func() string { return uuid.NewString() },
	}
}

func (s *Service) WithCache(c *cache.Store) *Service {
	s.cache = c
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// Current resolves the acting email to a directory row, falling back to a
// transient default-role profile for authenticated actors without one.
func (s *Service) Current(ctx context.Context, email string) (User, error) {
	if email == "" {
		return User{}, fmt.Errorf("user: missing actor email")
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	return User{
		ID:    "unknown",
		Name:  "Unknown User",
		Email: email,
		Role:  s.defaultRole,
	}, nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return cache.Get(ctx, s.cache, cache.KeyAllUsers, s.repo.List)
}

func (s *Service) Create(ctx context.Context, params CreateParams) (User, error) {
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return User{}, fmt.Errorf("user: email required")
	}
	role := params.Role
	if role == "" {
		role = s.defaultRole
	}
	if !ValidRole(role) {
		return User{}, fmt.Errorf("user: invalid role %q", role)
	}

	created, err := s.repo.Insert(ctx, User{
		ID:           s.idGen(),
		Name:         params.Name,
		Email:        email,
		ManagerEmail: params.ManagerEmail,
		Role:         role,
		CreatedBy:    params.CreatedBy,
	})
	if err != nil {
		return User{}, err
	}
	s.invalidate()
	return created, nil
}

func (s *Service) Update(ctx context.Context, u User) (User, error) {
	if !ValidRole(u.Role) {
		return User{}, fmt.Errorf("user: invalid role %q", u.Role)
	}
	updated, err := s.repo.Update(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.invalidate()
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate(cache.KeyAllUsers)
	}
}
