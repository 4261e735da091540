package store

import (
	"context"

	"github.com/bryanwahyu/cloudsec/internal/domain/remediation"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Resources resources.Repository
	Risks     risks.Repository
	Actions   remediation.Repository
}

// UnitOfWork runs fn inside a single transaction. The repos passed to fn
// are only valid for the duration of the call; returning an error rolls
// back every write made through them.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}

// Store is the full persistence backend.
type Store interface {
	UnitOfWork
	Repos() Repos
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
