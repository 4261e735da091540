package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/bryanwahyu/cloudsec/internal/domain/store"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cloud_resources (
  id            BIGINT AUTO_INCREMENT PRIMARY KEY,
  resource_type VARCHAR(32)  NOT NULL,
  resource_name VARCHAR(255) NOT NULL,
  location      VARCHAR(64)  NOT NULL,
  is_public     BOOLEAN      NOT NULL DEFAULT FALSE,
  created_at    DATETIME(6)  NOT NULL,
  updated_at    DATETIME(6)  NOT NULL,
  INDEX idx_cloud_resources_type (resource_type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS detected_risks (
  id          BIGINT AUTO_INCREMENT PRIMARY KEY,
  resource_id BIGINT      NOT NULL,
  risk_type   VARCHAR(64) NOT NULL,
  severity    VARCHAR(16) NOT NULL,
  description TEXT        NOT NULL,
  detected_at DATETIME(6) NOT NULL,
  INDEX idx_detected_risks_severity (severity),
  CONSTRAINT fk_detected_risks_resource FOREIGN KEY (resource_id) REFERENCES cloud_resources (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS remediation_actions (
  id           BIGINT AUTO_INCREMENT PRIMARY KEY,
  risk_id      BIGINT      NOT NULL,
  action_type  VARCHAR(32) NOT NULL,
  status       VARCHAR(16) NOT NULL,
  attempted_at DATETIME(6) NOT NULL,
  INDEX idx_remediation_actions_risk (risk_id, id),
  CONSTRAINT fk_remediation_actions_risk FOREIGN KEY (risk_id) REFERENCES detected_risks (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Store is the MySQL backed store.Store.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

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

// Migrate creates the tables when they do not exist yet.
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
