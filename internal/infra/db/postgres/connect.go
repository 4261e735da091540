package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/avast/retry-go"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	err = retry.Do(
		func() error {
			ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(ctx2)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zerolog.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("postgres not ready, retrying")
		}),
	)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
