package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

type RiskRepository struct{ db dbtx }

func NewRiskRepository(db dbtx) *RiskRepository { return &RiskRepository{db: db} }

const riskColumns = `id, resource_id, risk_type, severity, description, detected_at`

func (r *RiskRepository) Save(ctx context.Context, k *domain.Risk) error {
	const q = `
INSERT INTO detected_risks (resource_id, risk_type, severity, description, detected_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id;`
	if k.DetectedAt.IsZero() {
		k.DetectedAt = time.Now()
	}
	if err := r.db.QueryRowContext(ctx, q, k.ResourceID, string(k.Type), string(k.Severity), k.Description, k.DetectedAt).Scan(&k.ID); err != nil {
		return fmt.Errorf("inserting risk: %w", err)
	}
	return nil
}

func (r *RiskRepository) Get(ctx context.Context, id int64) (*domain.Risk, error) {
	q := `SELECT ` + riskColumns + ` FROM detected_risks WHERE id=$1 LIMIT 1;`
	k, err := scanRisk(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return k, err
}

func (r *RiskRepository) List(ctx context.Context, sev domain.Severity) ([]*domain.Risk, error) {
	where, args := severityFilter(sev)
	return r.query(ctx, `SELECT `+riskColumns+` FROM detected_risks`+where+` ORDER BY id;`, args...)
}

func (r *RiskRepository) Paginate(ctx context.Context, sev domain.Severity, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where, args := severityFilter(sev)
	n := len(args)
	q := `SELECT ` + riskColumns + ` FROM detected_risks` + where +
		` ORDER BY id LIMIT ` + placeholder(n+1) + ` OFFSET ` + placeholder(n+2) + `;`
	data, err := r.query(ctx, q, append(args, pageSize, offset)...)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detected_risks`+where+`;`, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *RiskRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detected_risks;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *RiskRepository) Stats(ctx context.Context) (domain.Stats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE severity = 'HIGH'),
       COUNT(*) FILTER (WHERE severity = 'MEDIUM'),
       COUNT(*) FILTER (WHERE severity = 'LOW')
FROM detected_risks;`
	var st domain.Stats
	if err := r.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.High, &st.Medium, &st.Low); err != nil {
		return domain.Stats{}, err
	}
	return st, nil
}

func (r *RiskRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Risk, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying risks: %w", err)
	}
	defer rows.Close()

	out := []*domain.Risk{}
	for rows.Next() {
		k, err := scanRisk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func severityFilter(sev domain.Severity) (string, []any) {
	if sev == "" {
		return "", nil
	}
	return ` WHERE severity=$1`, []any{string(sev)}
}

func scanRisk(row rowScanner) (*domain.Risk, error) {
	var k domain.Risk
	if err := row.Scan(&k.ID, &k.ResourceID, &k.Type, &k.Severity, &k.Description, &k.DetectedAt); err != nil {
		return nil, err
	}
	return &k, nil
}
