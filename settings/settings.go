// Package settings persists operator-editable key/value configuration that
// survives restarts, as opposed to the process config loaded at boot.
package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// All returns every stored setting.
func (r *Repository) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("settings: all: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, 16)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("settings: scan: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings: iterate: %w", err)
	}
	return out, nil
}

// Save upserts every provided key.
func (r *Repository) Save(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if k == "" {
			return fmt.Errorf("settings: empty key")
		}
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, k, v); err != nil {
			return fmt.Errorf("settings: save %q: %w", k, err)
		}
	}
	return nil
}
