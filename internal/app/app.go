// Package app wires configuration into a running set of services. Both the
// API server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/application"
	appai "github.com/bryanwahyu/cloudsec/internal/application/ai"
	"github.com/bryanwahyu/cloudsec/internal/application/detection"
	appremediation "github.com/bryanwahyu/cloudsec/internal/application/remediation"
	apprisks "github.com/bryanwahyu/cloudsec/internal/application/risks"
	"github.com/bryanwahyu/cloudsec/internal/application/scheduler"
	"github.com/bryanwahyu/cloudsec/internal/config"
	"github.com/bryanwahyu/cloudsec/internal/domain/ai"
	"github.com/bryanwahyu/cloudsec/internal/domain/remediation"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/store"
	openaiclient "github.com/bryanwahyu/cloudsec/internal/infra/ai/openai"
	"github.com/bryanwahyu/cloudsec/internal/infra/cloud/awscloud"
	"github.com/bryanwahyu/cloudsec/internal/infra/cloud/simulated"
	"github.com/bryanwahyu/cloudsec/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/cloudsec/internal/infra/db/mysql"
	"github.com/bryanwahyu/cloudsec/internal/infra/db/postgres"
	"github.com/bryanwahyu/cloudsec/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/cloudsec/internal/infra/storage"
	"github.com/bryanwahyu/cloudsec/internal/metrics"
	"github.com/bryanwahyu/cloudsec/internal/middleware"
)

type App struct {
	Config      *config.Config
	Store       store.Store
	Registry    *prometheus.Registry
	Risks       *apprisks.Service
	Remediation *appremediation.Service
	AI          *appai.Service
	Scheduler   *scheduler.Scheduler

	httpMetrics *middleware.HTTPMetrics
	rateLimiter *middleware.RateLimiter
}

// New connects every backend named in cfg. On error, whatever was already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := zerolog.Ctx(ctx)
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Store, err = openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err = a.Store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating %s: %w", cfg.Database.Driver, err)
		}
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("store ready")

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(a.Registry)
	if err != nil {
		return nil, err
	}
	if a.httpMetrics, err = middleware.NewHTTPMetrics(a.Registry); err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg.Remediation)
	if err != nil {
		return nil, err
	}

	var reports risks.ReportStore
	if cfg.Reports.Enabled {
		r := cfg.Reports
		st, err := minioStore.New(ctx, r.Endpoint, r.Region, r.BucketName, r.AccessKey, r.SecretKey, r.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		reports = st
	}

	// Keep the interface nil when AI is off so Explain reports ErrNotConfigured.
	var explainer ai.Client
	if cfg.AI.Enabled {
		explainer = openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	}

	clock := application.SystemClock{}
	repos := a.Store.Repos()
	a.Risks = &apprisks.Service{
		Store:     a.Store,
		Inventory: repos.Resources,
		Risks:     repos.Risks,
		Detector:  detection.NewService(clock),
		Reports:   reports,
		Metrics:   rec,
		Clock:     clock,
	}
	a.Remediation = &appremediation.Service{
		Risks:     repos.Risks,
		Resources: repos.Resources,
		Actions:   repos.Actions,
		Provider:  provider,
		Metrics:   rec,
		Clock:     clock,
	}
	a.AI = appai.NewService(explainer, repos.Risks, repos.Resources)

	sc := cfg.Scheduler
	a.Scheduler = scheduler.New(scheduler.Config{
		Detection:         scheduler.Job{Enabled: sc.Detection.IsEnabled(), Interval: sc.Detection.Interval()},
		Remediation:       scheduler.Job{Enabled: sc.Remediation.IsEnabled(), Interval: sc.Remediation.Interval()},
		Health:            scheduler.Job{Enabled: sc.Health.IsEnabled(), Interval: sc.Health.Interval()},
		AutoRemediateHigh: sc.AutoRemediateHigh(),
	}, a.Risks, a.Risks, a.Remediation)

	if cfg.RateLimit.RPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	return a, nil
}

func openStore(ctx context.Context, db config.Database) (store.Store, error) {
	cfg := config.Config{Database: db}
	switch db.Driver {
	case "mysql":
		conn, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return mysqlp.NewStore(conn), nil
	case "postgres":
		conn, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return postgres.NewStore(conn), nil
	case "memory":
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", db.Driver)
}

func newProvider(ctx context.Context, r config.Remediation) (remediation.CloudProvider, error) {
	if r.Provider == "aws" {
		p, err := awscloud.New(ctx, r.AWS.Profile, r.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("aws provider: %w", err)
		}
		return p, nil
	}
	return simulated.New(r.Delay()), nil
}

// Handler builds the HTTP API for this app.
func (a *App) Handler(logger zerolog.Logger) http.Handler {
	return httpserver.NewRouter(httpserver.Deps{
		Risks:       a.Risks,
		Remediation: a.Remediation,
		AI:          a.AI,
		Health: map[string]middleware.HealthChecker{
			"database": &middleware.StoreHealthChecker{Store: a.Store},
		},
		Gatherer:       a.Registry,
		HTTPMetrics:    a.httpMetrics,
		RateLimiter:    a.rateLimiter,
		APIKeys:        a.Config.Auth.APIKeys,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		Logger:         logger,
	})
}

// Close stops background work and releases every backend.
func (a *App) Close() error {
	var result *multierror.Error
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing store: %w", err))
		}
	}
	return result.ErrorOrNil()
}
