package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/cloudsec/internal/domain/resources"
)

type ResourceRepository struct {
	db dbtx
}

func NewResourceRepository(db dbtx) *ResourceRepository {
	return &ResourceRepository{db: db}
}

const resourceColumns = `id, resource_type, resource_name, location, is_public, created_at, updated_at`

// Save inserts the resource and sets its ID.
func (r *ResourceRepository) Save(ctx context.Context, res *domain.Resource) error {
	const q = `
INSERT INTO cloud_resources (resource_type, resource_name, location, is_public, created_at, updated_at)
VALUES (?,?,?,?,?,?);`
	now := time.Now()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = res.CreatedAt
	}
	out, err := r.db.ExecContext(ctx, q,
		string(res.Type), stringOrDash(res.Name), stringOrDash(res.Location), res.Public, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting resource: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = id
	return nil
}

func (r *ResourceRepository) Get(ctx context.Context, id int64) (*domain.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM cloud_resources WHERE id=? LIMIT 1;`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return res, err
}

func (r *ResourceRepository) List(ctx context.Context, t domain.Type) ([]*domain.Resource, error) {
	q := `SELECT ` + resourceColumns + ` FROM cloud_resources`
	var args []any
	if t != "" {
		q += ` WHERE resource_type=?`
		args = append(args, string(t))
	}
	q += ` ORDER BY id;`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying resources: %w", err)
	}
	defer rows.Close()

	out := []*domain.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var res domain.Resource
	if err := row.Scan(&res.ID, &res.Type, &res.Name, &res.Location, &res.Public, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}
