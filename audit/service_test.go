package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"qaflow/question"
)

type fakeStore struct {
	audit    Audit
	claimErr error
	getErr   error

	claims        int
	claimedBy     string
	releases      []Status
	releaseErr    error
	heartbeats    int
	forceUnlocks  int
	misconfigured int

	stale      []StaleLock
	scanErr    error
	releasedIf []string
	refreshed  map[string]bool
}

func (f *fakeStore) Get(_ context.Context, _ string) (Audit, error) {
	return f.audit, f.getErr
}

func (f *fakeStore) Claim(_ context.Context, _, actorEmail string, _ time.Duration) (Audit, error) {
	if f.claimErr != nil {
		return Audit{}, f.claimErr
	}
	f.claims++
	f.claimedBy = actorEmail
	return f.audit, nil
}

func (f *fakeStore) Release(_ context.Context, _ string, final Status) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.releases = append(f.releases, final)
	return nil
}

func (f *fakeStore) Heartbeat(_ context.Context, _ string) error {
	f.heartbeats++
	return nil
}

func (f *fakeStore) ForceUnlock(_ context.Context, _ string) error {
	f.forceUnlocks++
	return nil
}

func (f *fakeStore) MarkMisconfigured(_ context.Context, _ string) error {
	f.misconfigured++
	return nil
}

func (f *fakeStore) ListPending(_ context.Context) ([]Audit, error) {
	return []Audit{f.audit}, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]Audit, error) {
	return []Audit{f.audit}, nil
}

func (f *fakeStore) ScanStaleLocks(_ context.Context, _ time.Duration) ([]StaleLock, error) {
	return f.stale, f.scanErr
}

func (f *fakeStore) ReleaseIfLockedAt(_ context.Context, auditID string, _ time.Time) (bool, error) {
	if f.refreshed[auditID] {
		return false, nil
	}
	f.releasedIf = append(f.releasedIf, auditID)
	return true, nil
}

type fakeCatalog struct {
	questions []question.Question
	err       error
}

func (f *fakeCatalog) ActiveSet(_ context.Context, _, _ string) ([]question.Question, error) {
	return f.questions, f.err
}

func TestClaim_Success(t *testing.T) {
	locked := "qa@example.com"
	store := &fakeStore{audit: Audit{AuditID: "a1", Status: StatusInProcess, LockedBy: &locked}}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	a, err := svc.Claim(context.Background(), "a1", "qa@example.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if a.AuditID != "a1" {
		t.Fatalf("unexpected audit: %+v", a)
	}
	if store.claimedBy != "qa@example.com" {
		t.Fatalf("expected claim attributed to actor, got %q", store.claimedBy)
	}
}

func TestClaim_Conflict(t *testing.T) {
	store := &fakeStore{claimErr: ErrAlreadyLocked}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	_, err := svc.Claim(context.Background(), "a1", "qa@example.com")
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("expected ErrAlreadyLocked, got %v", err)
	}
}

func TestPrepareEvaluation_Success(t *testing.T) {
	store := &fakeStore{audit: Audit{AuditID: "a1", RequestType: "billing", TaskType: "phone"}}
	catalog := &fakeCatalog{questions: []question.Question{
		{ID: "q1", PointsPossible: 5},
		{ID: "q2", PointsPossible: 5},
	}}
	svc := NewService(store, catalog, 6*time.Minute)

	a, qs, err := svc.PrepareEvaluation(context.Background(), "a1", "qa@example.com")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if a.AuditID != "a1" || len(qs) != 2 {
		t.Fatalf("unexpected result: audit=%+v questions=%d", a, len(qs))
	}
}

func TestPrepareEvaluation_EmptySetMarksMisconfigured(t *testing.T) {
	store := &fakeStore{audit: Audit{AuditID: "a1"}}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	_, _, err := svc.PrepareEvaluation(context.Background(), "a1", "qa@example.com")
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
	if store.misconfigured != 1 {
		t.Fatalf("expected audit to be marked misconfigured once, got %d", store.misconfigured)
	}
}

func TestPrepareEvaluation_CatalogErrorReleasesLock(t *testing.T) {
	store := &fakeStore{audit: Audit{AuditID: "a1"}}
	catalog := &fakeCatalog{err: errors.New("catalog down")}
	svc := NewService(store, catalog, 6*time.Minute)

	_, _, err := svc.PrepareEvaluation(context.Background(), "a1", "qa@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.releases) != 1 || store.releases[0] != StatusPending {
		t.Fatalf("expected lock handed back to pending, got %v", store.releases)
	}
}

func TestRelease_RejectsInvalidStatus(t *testing.T) {
	cases := []struct {
		name  string
		final Status
	}{
		{"in_process", StatusInProcess},
		{"misconfigured", StatusMisconfigured},
		{"unknown", Status("bogus")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

			err := svc.Release(context.Background(), "a1", tc.final)
			if !errors.Is(err, ErrInvalidStatus) {
				t.Fatalf("expected ErrInvalidStatus, got %v", err)
			}
			if len(store.releases) != 0 {
				t.Fatalf("expected no write, got %v", store.releases)
			}
		})
	}
}

func TestRelease_AcceptsLockTargets(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	if err := svc.Release(context.Background(), "a1", StatusPending); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := svc.Release(context.Background(), "a1", StatusEvaluated); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.releases) != 2 || store.releases[0] != StatusPending || store.releases[1] != StatusEvaluated {
		t.Fatalf("unexpected releases: %v", store.releases)
	}
}

func TestHeartbeat_PassThrough(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	if err := svc.Heartbeat(context.Background(), "a1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if store.heartbeats != 1 {
		t.Fatalf("expected one heartbeat, got %d", store.heartbeats)
	}
}

func TestForceUnlock(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeCatalog{}, 6*time.Minute)

	if err := svc.ForceUnlock(context.Background(), "a1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if store.forceUnlocks != 1 {
		t.Fatalf("expected one force unlock, got %d", store.forceUnlocks)
	}
}
