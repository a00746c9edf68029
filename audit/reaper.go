package audit

import (
	"context"
	"log/slog"
	"time"

	"qaflow/cache"
	"qaflow/metrics"
)

// Reaper periodically force-releases audit locks held past the timeout,
// recovering sessions abandoned by crashed or disconnected clients.
type Reaper struct {
	repo     Store
	log      *slog.Logger
	cache    *cache.Store
	metrics  *metrics.Metrics
	timeout  time.Duration
	interval time.Duration
}

func NewReaper(repo Store, log *slog.Logger, timeout, interval time.Duration) *Reaper {
	return &Reaper{
		repo:     repo,
		log:      log,
		timeout:  timeout,
		interval: interval,
	}
}

func (r *Reaper) WithCache(c *cache.Store) *Reaper {
	r.cache = c
	return r
}

func (r *Reaper) WithMetrics(m *metrics.Metrics) *Reaper {
	r.metrics = m
	return r
}

// Run sweeps on a fixed schedule until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.log.Error("reaper sweep failed", "error", err)
			} else if n > 0 {
				r.log.Info("reaped stale audit locks", "count", n)
			}
		}
	}
}

// Sweep releases every lock older than the timeout and returns how many it
// reclaimed. Each release is conditioned on the locked_at observed during the
// scan: if a heartbeat or fresh claim landed in between, that record is
// skipped rather than evicted.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	stale, err := r.repo.ScanStaleLocks(ctx, r.timeout)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, s := range stale {
		ok, err := r.repo.ReleaseIfLockedAt(ctx, s.AuditID, s.LockedAt)
		if err != nil {
			r.log.Error("reap release failed", "audit_id", s.AuditID, "error", err)
			continue
		}
		if !ok {
			// The lock moved since the scan; the session is live again.
			continue
		}
		reaped++
		r.log.Info("released stale lock",
			"audit_id", s.AuditID,
			"locked_by", s.LockedBy,
			"locked_at", s.LockedAt)
		if r.metrics != nil {
			r.metrics.LocksReapedTotal.Inc()
		}
	}

	if reaped > 0 && r.cache != nil {
		r.cache.Invalidate(cache.KeyAllAudits, cache.KeyPendingAudits)
	}
	return reaped, nil
}
