package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/bryanwahyu/cloudsec/internal/domain/store"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cloud_resources (
  id            BIGSERIAL PRIMARY KEY,
  resource_type VARCHAR(32)  NOT NULL,
  resource_name VARCHAR(255) NOT NULL,
  location      VARCHAR(64)  NOT NULL,
  is_public     BOOLEAN      NOT NULL DEFAULT FALSE,
  created_at    TIMESTAMP    NOT NULL,
  updated_at    TIMESTAMP    NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_cloud_resources_type ON cloud_resources (resource_type)`,
	`CREATE TABLE IF NOT EXISTS detected_risks (
  id          BIGSERIAL PRIMARY KEY,
  resource_id BIGINT      NOT NULL REFERENCES cloud_resources (id),
  risk_type   VARCHAR(64) NOT NULL,
  severity    VARCHAR(16) NOT NULL,
  description TEXT        NOT NULL,
  detected_at TIMESTAMP   NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_detected_risks_severity ON detected_risks (severity)`,
	`CREATE TABLE IF NOT EXISTS remediation_actions (
  id           BIGSERIAL PRIMARY KEY,
  risk_id      BIGINT      NOT NULL REFERENCES detected_risks (id),
  action_type  VARCHAR(32) NOT NULL,
  status       VARCHAR(16) NOT NULL,
  attempted_at TIMESTAMP   NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_remediation_actions_risk ON remediation_actions (risk_id, id)`,
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Repos() store.Repos { return repos(s.db) }

func repos(q dbtx) store.Repos {
	return store.Repos{
		Resources: NewResourceRepository(q),
		Risks:     NewRiskRepository(q),
		Actions:   NewActionRepository(q),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, repos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
