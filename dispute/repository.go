package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"qaflow/evaluation"
)

var (
	// ErrNotFound is returned when no dispute exists for the identifier.
	ErrNotFound = errors.New("dispute: not found")
	// ErrEvalNotFound is returned when the referenced evaluation does not exist.
	ErrEvalNotFound = errors.New("dispute: evaluation not found")
	// ErrAlreadyDisputed signals the evaluation already has an active dispute.
	ErrAlreadyDisputed = errors.New("dispute: active dispute already exists")
	// ErrAlreadyResolved signals the dispute reached a terminal status.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
	// ErrUnknownQuestion signals a decision references a question that is not
	// part of the disputed evaluation.
	ErrUnknownQuestion = errors.New("dispute: unknown question id for evaluation")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const disputeColumns = `id, eval_id, user_email, dispute_ts, reason, question_ids,
	status, resolution_notes, resolved_by, resolution_ts`

func scanDispute(row pgx.Row) (Dispute, error) {
	var d Dispute
	err := row.Scan(&d.ID, &d.EvalID, &d.UserEmail, &d.DisputeTimestamp, &d.Reason,
		&d.QuestionIDs, &d.Status, &d.ResolutionNotes, &d.ResolvedBy, &d.ResolutionTimestamp)
	return d, err
}

// File inserts the dispute and flips the evaluation to disputed in one
// transaction. The partial unique index on active disputes turns a concurrent
// double-filing into ErrAlreadyDisputed.
func (r *Repository) File(ctx context.Context, d Dispute) (Dispute, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO disputes_queue (id, eval_id, user_email, dispute_ts, reason, question_ids, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, d.ID, d.EvalID, d.UserEmail, d.DisputeTimestamp, d.Reason, d.QuestionIDs, d.Status); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Dispute{}, ErrAlreadyDisputed
			case "23503":
				return Dispute{}, ErrEvalNotFound
			}
		}
		return Dispute{}, fmt.Errorf("dispute: insert: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE eval_summary SET status = 'disputed' WHERE id = $1
	`, d.EvalID)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: mark evaluation disputed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Dispute{}, ErrEvalNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit: %w", err)
	}
	return d, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes_queue WHERE id = $1`, disputeColumns)
	d, err := scanDispute(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: get: %w", err)
	}
	return d, nil
}

func (r *Repository) List(ctx context.Context) ([]Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes_queue ORDER BY dispute_ts DESC`, disputeColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Dispute, 0, 16)
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// BeginReview transitions a pending dispute and its evaluation to reviewing.
// The guard is the conditional update itself: when it matches nothing the
// current status is re-read so the caller can report the double-open without
// treating it as an infrastructure failure.
func (r *Repository) BeginReview(ctx context.Context, disputeID string) (Status, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var evalID string
	err = tx.QueryRow(ctx, `
		UPDATE disputes_queue SET status = 'reviewing'
		WHERE id = $1 AND status = 'pending'
		RETURNING eval_id
	`, disputeID).Scan(&evalID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", false, fmt.Errorf("dispute: begin review: %w", err)
		}
		var current Status
		if err := r.pool.QueryRow(ctx,
			`SELECT status FROM disputes_queue WHERE id = $1`, disputeID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", false, ErrNotFound
			}
			return "", false, fmt.Errorf("dispute: begin review fetch: %w", err)
		}
		return current, false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE eval_summary SET status = 'reviewing' WHERE id = $1
	`, evalID); err != nil {
		return "", false, fmt.Errorf("dispute: mark evaluation reviewing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("dispute: commit review: %w", err)
	}
	return StatusReviewing, true, nil
}

// Resolve applies the per-question decisions, recomputes the evaluation
// totals over all of its detail rows, and closes dispute and evaluation
// together. Everything happens in one transaction so neither side can be
// observed resolved without the other.
func (r *Repository) Resolve(ctx context.Context, params ResolveParams, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var evalID string
	var current Status
	err = tx.QueryRow(ctx, `
		SELECT eval_id, status FROM disputes_queue WHERE id = $1 FOR UPDATE
	`, params.DisputeID).Scan(&evalID, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("dispute: lock dispute: %w", err)
	}
	if current.Terminal() {
		return ErrAlreadyResolved
	}

	rows, err := tx.Query(ctx, `
		SELECT id, question_id, points_earned, points_possible
		FROM eval_questions
		WHERE eval_id = $1
		ORDER BY id ASC
		FOR UPDATE
	`, evalID)
	if err != nil {
		return fmt.Errorf("dispute: lock detail rows: %w", err)
	}

	type detailRow struct {
		id             string
		questionID     string
		pointsEarned   int
		pointsPossible int
	}
	details := make([]detailRow, 0, 16)
	for rows.Next() {
		var d detailRow
		if err := rows.Scan(&d.id, &d.questionID, &d.pointsEarned, &d.pointsPossible); err != nil {
			rows.Close()
			return fmt.Errorf("dispute: scan detail: %w", err)
		}
		details = append(details, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("dispute: iterate details: %w", err)
	}

	byQuestion := make(map[string]int, len(details))
	for i, d := range details {
		byQuestion[d.questionID] = i
	}

	// Validate the whole payload before touching any row.
	for _, dec := range params.Decisions {
		if _, ok := byQuestion[dec.QuestionID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownQuestion, dec.QuestionID)
		}
	}

	for _, dec := range params.Decisions {
		d := &details[byQuestion[dec.QuestionID]]
		if dec.Resolution == ResolutionOverturned {
			d.pointsEarned = d.pointsPossible
			if _, err := tx.Exec(ctx, `
				UPDATE eval_questions
				SET response = 'yes', points_earned = points_possible, feedback = $2
				WHERE id = $1
			`, d.id, dec.Note); err != nil {
				return fmt.Errorf("dispute: overturn detail: %w", err)
			}
			continue
		}
		// Upheld: the original QA judgment stands, only the note is recorded.
		if _, err := tx.Exec(ctx, `
			UPDATE eval_questions SET feedback = $2 WHERE id = $1
		`, d.id, dec.Note); err != nil {
			return fmt.Errorf("dispute: annotate detail: %w", err)
		}
	}

	totalPoints, totalPossible := 0, 0
	for _, d := range details {
		totalPoints += d.pointsEarned
		totalPossible += d.pointsPossible
	}

	if _, err := tx.Exec(ctx, `
		UPDATE eval_summary
		SET total_points = $2, total_points_possible = $3, eval_score = $4, status = 'resolved'
		WHERE id = $1
	`, evalID, totalPoints, totalPossible, evaluation.Score(totalPoints, totalPossible)); err != nil {
		return fmt.Errorf("dispute: update summary: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE disputes_queue
		SET status = $2, resolution_notes = $3, resolved_by = $4, resolution_ts = $5
		WHERE id = $1
	`, params.DisputeID, params.FinalStatus, params.ResolutionNotes, params.ResolvedBy, now); err != nil {
		return fmt.Errorf("dispute: update dispute: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit resolve: %w", err)
	}
	return nil
}

// CountByStatus backs the dispute dashboard.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM disputes_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("dispute: count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[Status]int, 8)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("dispute: scan count: %w", err)
		}
		out[s] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate counts: %w", err)
	}
	return out, nil
}
