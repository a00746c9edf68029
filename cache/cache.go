// Package cache provides a time-boxed, read-through projection for listing
// endpoints. It is never consulted for lock or status decisions; every
// mutating operation invalidates the keys it touches before returning.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Well-known keys, mirroring the collections the UI lists.
const (
	KeyAllAudits     = "all_audits"
	KeyPendingAudits = "pending_audits"
	KeyAllQuestions  = "all_questions"
	KeyAllEvals      = "all_evaluations"
	KeyAllDisputes   = "all_disputes"
	KeyAllUsers      = "all_users"
)

type entry struct {
	val     any
	expires time.Time
}

// Store is a TTL cache with singleflight loading so a cold key triggers at
// most one concurrent fetch.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

func New(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the cached value for key, loading and caching it when absent or
// expired. Load failures are returned to the caller and nothing is cached.
func (s *Store) Get(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expires) {
		s.mu.Unlock()
		return e.val, nil
	}
	s.mu.Unlock()

	val, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent Do may have filled the key.
		s.mu.Lock()
		if e, ok := s.entries[key]; ok && s.now().Before(e.expires) {
			s.mu.Unlock()
			return e.val, nil
		}
		s.mu.Unlock()

		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[key] = entry{val: fresh, expires: s.now().Add(s.ttl)}
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Invalidate drops the given keys, or every key when none are named.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(keys) == 0 {
		s.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
}

// Get is a typed convenience over Store.Get.
func Get[T any](ctx context.Context, s *Store, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if s == nil {
		return load(ctx)
	}
	v, err := s.Get(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		// A key was reused across types; treat as a miss.
		return load(ctx)
	}
	return typed, nil
}
