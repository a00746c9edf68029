package user

import (
	"context"
	"errors"
	"testing"
)

type fakeDirectory struct {
	user      User
	getErr    error
	users     []User
	inserted  *User
	insertErr error
	updated   *User
	deleted   []string
}

func (f *fakeDirectory) GetByEmail(_ context.Context, _ string) (User, error) {
	return f.user, f.getErr
}

func (f *fakeDirectory) List(_ context.Context) ([]User, error) {
	return f.users, nil
}

func (f *fakeDirectory) Insert(_ context.Context, u User) (User, error) {
	if f.insertErr != nil {
		return User{}, f.insertErr
	}
	f.inserted = &u
	return u, nil
}

func (f *fakeDirectory) Update(_ context.Context, u User) (User, error) {
	f.updated = &u
	return u, nil
}

func (f *fakeDirectory) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestCurrent_KnownUser(t *testing.T) {
	repo := &fakeDirectory{user: User{ID: "u1", Email: "qa@example.com", Role: RoleReviewer}}
	svc := NewService(repo, RoleQAAnalyst)

	u, err := svc.Current(context.Background(), "qa@example.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if u.ID != "u1" || u.Role != RoleReviewer {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestCurrent_FallsBackToDefaultRole(t *testing.T) {
	repo := &fakeDirectory{getErr: ErrNotFound}
	svc := NewService(repo, RoleQAAnalyst)

	u, err := svc.Current(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if u.ID != "unknown" || u.Role != RoleQAAnalyst || u.Email != "new@example.com" {
		t.Fatalf("unexpected fallback profile: %+v", u)
	}
}

func TestCurrent_SurfacesRepositoryError(t *testing.T) {
	repo := &fakeDirectory{getErr: errors.New("db down")}
	svc := NewService(repo, RoleQAAnalyst)

	if _, err := svc.Current(context.Background(), "qa@example.com"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreate_DefaultsRole(t *testing.T) {
	repo := &fakeDirectory{}
	svc := NewService(repo, RoleQAAnalyst).WithIDGenerator(func() string { return "u1" })

	u, err := svc.Create(context.Background(), CreateParams{
		Name:  "Ana Reyes",
		Email: " ana@example.com ",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if u.ID != "u1" || u.Role != RoleQAAnalyst {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Email != "ana@example.com" {
		t.Fatalf("expected trimmed email, got %q", u.Email)
	}
}

func TestCreate_RejectsInvalidRole(t *testing.T) {
	svc := NewService(&fakeDirectory{}, RoleQAAnalyst)

	_, err := svc.Create(context.Background(), CreateParams{Email: "x@example.com", Role: "superuser"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := &fakeDirectory{insertErr: ErrDuplicateEmail}
	svc := NewService(repo, RoleQAAnalyst)

	_, err := svc.Create(context.Background(), CreateParams{Email: "dup@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUpdate_RejectsInvalidRole(t *testing.T) {
	svc := NewService(&fakeDirectory{}, RoleQAAnalyst)

	if _, err := svc.Update(context.Background(), User{ID: "u1", Role: "nope"}); err == nil {
		t.Fatal("expected error")
	}
}
