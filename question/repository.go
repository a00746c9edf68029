package question

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no question row exists for the identifier.
var ErrNotFound = errors.New("question: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const questionColumns = `id, set_id, request_type, task_type, seq_id, question_text,
	points_possible, active, created_by, created_at`

func scanQuestion(row pgx.Row) (Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.SetID, &q.RequestType, &q.TaskType, &q.SequenceID,
		&q.Text, &q.PointsPossible, &q.Active, &q.CreatedBy, &q.CreatedAt)
	return q, err
}

// ActiveSet fetches the active questions for a (requestType, taskType) pair
// ordered by sequence id.
func (r *Repository) ActiveSet(ctx context.Context, requestType, taskType string) ([]Question, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM questions
		WHERE request_type = $1 AND task_type = $2 AND active
		ORDER BY seq_id ASC
	`, questionColumns)

	rows, err := r.pool.Query(ctx, query, requestType, taskType)
	if err != nil {
		return nil, fmt.Errorf("question: active set: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0, 16)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("question: scan: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("question: iterate: %w", err)
	}
	return out, nil
}

// List fetches every question, active or not, ordered by task type then sequence.
func (r *Repository) List(ctx context.Context) ([]Question, error) {
	query := fmt.Sprintf(`SELECT %s FROM questions ORDER BY task_type, seq_id ASC`, questionColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("question: list: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0, 32)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("question: scan: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("question: iterate: %w", err)
	}
	return out, nil
}

func (r *Repository) Insert(ctx context.Context, q Question) (Question, error) {
	query := fmt.Sprintf(`
		INSERT INTO questions (id, set_id, request_type, task_type, seq_id, question_text,
			points_possible, active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,true,$8)
		RETURNING %s
	`, questionColumns)

	created, err := scanQuestion(r.pool.QueryRow(ctx, query,
		q.ID, q.SetID, q.RequestType, q.TaskType, q.SequenceID, q.Text, q.PointsPossible, q.CreatedBy))
	if err != nil {
		return Question{}, fmt.Errorf("question: insert: %w", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, params UpdateParams) (Question, error) {
	query := fmt.Sprintf(`
		UPDATE questions
		SET seq_id = $2, question_text = $3, points_possible = $4, active = $5
		WHERE id = $1
		RETURNING %s
	`, questionColumns)

	q, err := scanQuestion(r.pool.QueryRow(ctx, query,
		params.ID, params.SequenceID, params.Text, params.PointsPossible, params.Active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Question{}, ErrNotFound
		}
		return Question{}, fmt.Errorf("question: update: %w", err)
	}
	return q, nil
}

// Deactivate soft-deletes a question so past evaluations keep their snapshot.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("question: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
