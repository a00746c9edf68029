// Package oracles holds SQL invariants checked while the stress actors run.
// Every query returns rows only when its invariant is violated.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_lock_iff_in_process",
			SQL: `SELECT audit_id, audit_status, locked_by, locked_at FROM audit_queue
                  WHERE (audit_status = 'in_process' AND (locked_by IS NULL OR locked_at IS NULL))
                     OR (audit_status <> 'in_process' AND (locked_by IS NOT NULL OR locked_at IS NOT NULL))`,
		},
		{
			Name: "O2_evaluated_has_evaluation",
			SQL: `SELECT a.audit_id FROM audit_queue a
                  WHERE a.audit_status = 'evaluated'
                    AND NOT EXISTS (SELECT 1 FROM eval_summary e WHERE e.source_audit_id = a.audit_id)`,
		},
		{
			Name: "O3_totals_match_details",
			SQL: `SELECT e.id FROM eval_summary e
                  WHERE e.total_points <> (SELECT COALESCE(SUM(q.points_earned), 0)
                                           FROM eval_questions q WHERE q.eval_id = e.id)
                     OR e.total_points_possible <> (SELECT COALESCE(SUM(q.points_possible), 0)
                                                    FROM eval_questions q WHERE q.eval_id = e.id)`,
		},
		{
			Name: "O4_score_matches_totals",
			SQL: `SELECT id, eval_score, total_points, total_points_possible FROM eval_summary
                  WHERE (total_points_possible > 0
                         AND abs(eval_score - total_points::double precision / total_points_possible) > 1e-9)
                     OR (total_points_possible = 0 AND eval_score <> 0)`,
		},
		{
			Name: "O5_response_points_consistent",
			SQL: `SELECT id, response, points_earned, points_possible FROM eval_questions
                  WHERE (response = 'no' AND points_earned <> 0)
                     OR (response = 'yes' AND points_earned <> points_possible)`,
		},
		{
			Name: "O6_one_active_dispute_per_eval",
			SQL: `SELECT eval_id, COUNT(*) FROM disputes_queue
                  WHERE status IN ('pending','reviewing')
                  GROUP BY eval_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O7_resolved_disputes_attributed",
			SQL: `SELECT id, status FROM disputes_queue
                  WHERE status NOT IN ('pending','reviewing')
                    AND (resolved_by IS NULL OR resolution_ts IS NULL)`,
		},
		{
			Name: "O8_one_evaluation_per_audit",
			SQL: `SELECT source_audit_id, COUNT(*) FROM eval_summary
                  GROUP BY source_audit_id HAVING COUNT(*) > 1`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
