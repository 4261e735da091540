package postgres

import (
	"context"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/cloudsec/internal/domain/remediation"
)

type ActionRepository struct{ db dbtx }

func NewActionRepository(db dbtx) *ActionRepository { return &ActionRepository{db: db} }

func (r *ActionRepository) Save(ctx context.Context, a *domain.Action) error {
	const q = `
INSERT INTO remediation_actions (risk_id, action_type, status, attempted_at)
VALUES ($1,$2,$3,$4)
RETURNING id;`
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if err := r.db.QueryRowContext(ctx, q, a.RiskID, string(a.Type), string(a.Status), a.Timestamp).Scan(&a.ID); err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

func (r *ActionRepository) ListByRisk(ctx context.Context, riskID int64) ([]*domain.Action, error) {
	const q = `
SELECT id, risk_id, action_type, status, attempted_at
FROM remediation_actions
WHERE risk_id=$1 ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q, riskID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	out := []*domain.Action{}
	for rows.Next() {
		var a domain.Action
		if err := rows.Scan(&a.ID, &a.RiskID, &a.Type, &a.Status, &a.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
