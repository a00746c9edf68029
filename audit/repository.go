package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no audit row exists for the identifier.
	ErrNotFound = errors.New("audit: not found")
	// ErrAlreadyLocked signals another analyst holds a live claim.
	ErrAlreadyLocked = errors.New("audit: already locked")
	// ErrTerminalStatus signals the audit has already been evaluated or marked
	// misconfigured and can no longer be claimed.
	ErrTerminalStatus = errors.New("audit: status is terminal")
	// ErrInvalidStatus signals a release to a status the lock manager does not
	// hand out.
	ErrInvalidStatus = errors.New("audit: invalid final status")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const auditColumns = `audit_id, task_id, reference_number, audit_status, agent_email,
	request_type, task_type, outcome, task_ts, audit_ts, locked_by, locked_at`

func scanAudit(row pgx.Row) (Audit, error) {
	var a Audit
	err := row.Scan(&a.AuditID, &a.TaskID, &a.ReferenceNumber, &a.Status, &a.AgentEmail,
		&a.RequestType, &a.TaskType, &a.Outcome, &a.TaskTimestamp, &a.AuditTimestamp,
		&a.LockedBy, &a.LockedAt)
	return a, err
}

func (r *Repository) Get(ctx context.Context, auditID string) (Audit, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_queue WHERE audit_id = $1`, auditColumns)
	a, err := scanAudit(r.pool.QueryRow(ctx, query, auditID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Audit{}, ErrNotFound
		}
		return Audit{}, fmt.Errorf("audit: get: %w", err)
	}
	return a, nil
}

// Claim atomically takes the lock in a single conditional UPDATE: it succeeds
// iff the audit is pending, or in_process with a lock older than timeout.
// When the update matches no row, the current row is re-read once to classify
// the failure for the caller.
func (r *Repository) Claim(ctx context.Context, auditID, actorEmail string, timeout time.Duration) (Audit, error) {
	query := fmt.Sprintf(`
		UPDATE audit_queue
		SET audit_status = 'in_process', locked_by = $2, locked_at = now()
		WHERE audit_id = $1
		  AND (
			audit_status = 'pending'
			OR (audit_status = 'in_process'
			    AND locked_at < now() - make_interval(secs => $3))
		  )
		RETURNING %s
	`, auditColumns)

	a, err := scanAudit(r.pool.QueryRow(ctx, query, auditID, actorEmail, timeout.Seconds()))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Audit{}, fmt.Errorf("audit: claim: %w", err)
	}

	current, err := r.Get(ctx, auditID)
	if err != nil {
		return Audit{}, err
	}
	if current.Status.Terminal() {
		return Audit{}, ErrTerminalStatus
	}
	return Audit{}, ErrAlreadyLocked
}

// Release clears the lock fields and sets the final status. Releasing an
// already-unlocked audit rewrites the same values, so the call is idempotent,
// and a terminal audit only accepts a release to its own status. That keeps
// evaluated rows reachable for a submitter finishing after a lost release
// acknowledgment while refusing to reopen them.
func (r *Repository) Release(ctx context.Context, auditID string, final Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE audit_queue
		SET audit_status = $2, locked_by = NULL, locked_at = NULL
		WHERE audit_id = $1
		  AND (audit_status IN ('pending','in_process') OR audit_status = $2)
	`, auditID, final)
	if err != nil {
		return fmt.Errorf("audit: release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, auditID); err != nil {
			return err
		}
		return ErrTerminalStatus
	}
	return nil
}

// Heartbeat refreshes locked_at for a currently held lock. A missing or
// unlocked audit is a silent no-op.
func (r *Repository) Heartbeat(ctx context.Context, auditID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE audit_queue
		SET locked_at = now()
		WHERE audit_id = $1 AND audit_status = 'in_process' AND locked_by IS NOT NULL
	`, auditID)
	if err != nil {
		return fmt.Errorf("audit: heartbeat: %w", err)
	}
	return nil
}

// ForceUnlock resets a non-terminal audit to pending regardless of lock owner.
func (r *Repository) ForceUnlock(ctx context.Context, auditID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE audit_queue
		SET audit_status = 'pending', locked_by = NULL, locked_at = NULL
		WHERE audit_id = $1 AND audit_status NOT IN ('evaluated','misconfigured')
	`, auditID)
	if err != nil {
		return fmt.Errorf("audit: force unlock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, auditID); err != nil {
			return err
		}
		return ErrTerminalStatus
	}
	return nil
}

// MarkMisconfigured moves a pending audit to its terminal misconfigured state.
func (r *Repository) MarkMisconfigured(ctx context.Context, auditID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE audit_queue
		SET audit_status = 'misconfigured', locked_by = NULL, locked_at = NULL
		WHERE audit_id = $1 AND audit_status IN ('pending','in_process')
	`, auditID)
	if err != nil {
		return fmt.Errorf("audit: mark misconfigured: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, auditID); err != nil {
			return err
		}
		return ErrTerminalStatus
	}
	return nil
}

// ListPending returns claimable audits, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]Audit, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM audit_queue
		WHERE audit_status = 'pending'
		ORDER BY audit_ts ASC
	`, auditColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("audit: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]Audit, 0, 32)
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate: %w", err)
	}
	return out, nil
}

// ListAll returns every audit, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Audit, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_queue ORDER BY audit_ts DESC`, auditColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("audit: list all: %w", err)
	}
	defer rows.Close()

	out := make([]Audit, 0, 64)
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate: %w", err)
	}
	return out, nil
}

// ScanStaleLocks lists in_process audits whose lock is older than timeout,
// together with the locked_at each was observed at.
func (r *Repository) ScanStaleLocks(ctx context.Context, timeout time.Duration) ([]StaleLock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT audit_id, locked_by, locked_at
		FROM audit_queue
		WHERE audit_status = 'in_process'
		  AND locked_at IS NOT NULL
		  AND locked_at < now() - make_interval(secs => $1)
	`, timeout.Seconds())
	if err != nil {
		return nil, fmt.Errorf("audit: scan stale locks: %w", err)
	}
	defer rows.Close()

	out := make([]StaleLock, 0, 8)
	for rows.Next() {
		var s StaleLock
		if err := rows.Scan(&s.AuditID, &s.LockedBy, &s.LockedAt); err != nil {
			return nil, fmt.Errorf("audit: scan stale lock: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate stale locks: %w", err)
	}
	return out, nil
}

// ReleaseIfLockedAt is the reaper's compare-and-swap: the release only lands
// if locked_at still equals the value observed during the scan. Returns false
// when a heartbeat or fresh claim moved the lock in between.
func (r *Repository) ReleaseIfLockedAt(ctx context.Context, auditID string, observed time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE audit_queue
		SET audit_status = 'pending', locked_by = NULL, locked_at = NULL
		WHERE audit_id = $1 AND audit_status = 'in_process' AND locked_at = $2
	`, auditID, observed)
	if err != nil {
		return false, fmt.Errorf("audit: conditional release: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
