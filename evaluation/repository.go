package evaluation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no evaluation exists for the identifier.
	ErrNotFound = errors.New("evaluation: not found")
	// ErrDuplicateAudit signals the audit already has an evaluation.
	ErrDuplicateAudit = errors.New("evaluation: audit already evaluated")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const summaryColumns = `id, source_audit_id, reference_number, task_type, outcome, qa_email,
	start_ts, stop_ts, total_points, total_points_possible, status, feedback, eval_score`

func scanSummary(row pgx.Row) (Evaluation, error) {
	var e Evaluation
	err := row.Scan(&e.ID, &e.SourceAuditID, &e.ReferenceNumber, &e.TaskType, &e.Outcome,
		&e.QAEmail, &e.StartTimestamp, &e.StopTimestamp, &e.TotalPoints,
		&e.TotalPointsPossible, &e.Status, &e.Feedback, &e.EvalScore)
	return e, err
}

// Create persists the summary and every detail row as one transaction.
func (r *Repository) Create(ctx context.Context, eval Evaluation) (Evaluation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO eval_summary (id, source_audit_id, reference_number, task_type, outcome,
			qa_email, start_ts, stop_ts, total_points, total_points_possible, status,
			feedback, eval_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, eval.ID, eval.SourceAuditID, eval.ReferenceNumber, eval.TaskType, eval.Outcome,
		eval.QAEmail, eval.StartTimestamp, eval.StopTimestamp, eval.TotalPoints,
		eval.TotalPointsPossible, eval.Status, eval.Feedback, eval.EvalScore); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Evaluation{}, ErrDuplicateAudit
		}
		return Evaluation{}, fmt.Errorf("evaluation: insert summary: %w", err)
	}

	for _, d := range eval.Questions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO eval_questions (id, eval_id, question_id, question_text, response,
				points_earned, points_possible, feedback)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, d.ID, d.EvalID, d.QuestionID, d.QuestionText, d.Response,
			d.PointsEarned, d.PointsPossible, d.Feedback); err != nil {
			return Evaluation{}, fmt.Errorf("evaluation: insert detail: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Evaluation{}, fmt.Errorf("evaluation: commit: %w", err)
	}
	return eval, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM eval_summary WHERE id = $1`, summaryColumns)
	e, err := scanSummary(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, fmt.Errorf("evaluation: get: %w", err)
	}
	details, err := r.details(ctx, e.ID)
	if err != nil {
		return Evaluation{}, err
	}
	e.Questions = details
	return e, nil
}

func (r *Repository) GetByAudit(ctx context.Context, auditID string) (Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM eval_summary WHERE source_audit_id = $1`, summaryColumns)
	e, err := scanSummary(r.pool.QueryRow(ctx, query, auditID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, fmt.Errorf("evaluation: get by audit: %w", err)
	}
	details, err := r.details(ctx, e.ID)
	if err != nil {
		return Evaluation{}, err
	}
	e.Questions = details
	return e, nil
}

// List returns every evaluation with its detail rows nested, newest first.
func (r *Repository) List(ctx context.Context) ([]Evaluation, error) {
	query := fmt.Sprintf(`SELECT %s FROM eval_summary ORDER BY stop_ts DESC`, summaryColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("evaluation: list: %w", err)
	}
	defer rows.Close()

	evals := make([]Evaluation, 0, 32)
	for rows.Next() {
		e, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("evaluation: scan summary: %w", err)
		}
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluation: iterate: %w", err)
	}

	byEval, err := r.allDetails(ctx)
	if err != nil {
		return nil, err
	}
	for i := range evals {
		evals[i].Questions = byEval[evals[i].ID]
	}
	return evals, nil
}

func (r *Repository) details(ctx context.Context, evalID string) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, eval_id, question_id, question_text, response, points_earned,
			points_possible, feedback
		FROM eval_questions
		WHERE eval_id = $1
		ORDER BY id ASC
	`, evalID)
	if err != nil {
		return nil, fmt.Errorf("evaluation: details: %w", err)
	}
	defer rows.Close()

	out := make([]Detail, 0, 16)
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.EvalID, &d.QuestionID, &d.QuestionText,
			&d.Response, &d.PointsEarned, &d.PointsPossible, &d.Feedback); err != nil {
			return nil, fmt.Errorf("evaluation: scan detail: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluation: iterate details: %w", err)
	}
	return out, nil
}

func (r *Repository) allDetails(ctx context.Context) (map[string][]Detail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, eval_id, question_id, question_text, response, points_earned,
			points_possible, feedback
		FROM eval_questions
		ORDER BY eval_id, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("evaluation: all details: %w", err)
	}
	defer rows.Close()

	byEval := make(map[string][]Detail, 32)
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.EvalID, &d.QuestionID, &d.QuestionText,
			&d.Response, &d.PointsEarned, &d.PointsPossible, &d.Feedback); err != nil {
			return nil, fmt.Errorf("evaluation: scan detail: %w", err)
		}
		byEval[d.EvalID] = append(byEval[d.EvalID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluation: iterate details: %w", err)
	}
	return byEval, nil
}
