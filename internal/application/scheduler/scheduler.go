// Package scheduler runs detection, auto-remediation and the store health
// probe on independent fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	riskapp "github.com/bryanwahyu/cloudsec/internal/application/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

type Scanner interface {
	PerformScan(ctx context.Context) (riskapp.ScanResult, error)
}

type RiskQuerier interface {
	List(ctx context.Context, severity string) ([]*risks.Risk, error)
	Count(ctx context.Context) (int64, error)
}

type Remediator interface {
	Remediate(ctx context.Context, riskID int64) bool
}

type Job struct {
	Enabled  bool
	Interval time.Duration
}

type Config struct {
	Detection         Job
	Remediation       Job
	Health            Job
	AutoRemediateHigh bool
}

// Scheduler owns one ticker goroutine per enabled job. Ticks are never
// skipped: each runs in its own goroutine and may overlap the next.
type Scheduler struct {
	cfg        Config
	scanner    Scanner
	risks      RiskQuerier
	remediator Remediator

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(cfg Config, scanner Scanner, querier RiskQuerier, remediator Remediator) *Scheduler {
	return &Scheduler{cfg: cfg, scanner: scanner, risks: querier, remediator: remediator}
}

// Start launches the enabled jobs. The first run of each job happens one
// interval after Start. Calling Start twice is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.spawn(ctx, "detection", s.cfg.Detection, func(ctx context.Context) {
		_ = s.RunDetection(ctx)
	})
	s.spawn(ctx, "remediation", s.cfg.Remediation, func(ctx context.Context) {
		if !s.cfg.AutoRemediateHigh {
			zerolog.Ctx(ctx).Debug().Msg("auto-remediation disabled, skipping tick")
			return
		}
		_, _, _ = s.RunRemediation(ctx)
	})
	s.spawn(ctx, "health", s.cfg.Health, func(ctx context.Context) {
		_ = s.RunHealthCheck(ctx)
	})
	return nil
}

// Stop cancels every job and waits for in-flight ticks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, name string, job Job, fn func(context.Context)) {
	log := zerolog.Ctx(ctx).With().Str("job", name).Logger()
	if !job.Enabled || job.Interval <= 0 {
		log.Info().Msg("scheduled job disabled")
		return
	}
	ctx = log.WithContext(ctx)
	log.Info().Dur("interval", job.Interval).Msg("scheduled job registered")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("scheduled job panicked")
						}
					}()
					fn(ctx)
				}()
			}
		}
	}()
}

// RunDetection performs one scan and logs the severity breakdown.
func (s *Scheduler) RunDetection(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("===== SCHEDULED DETECTION STARTED =====")

	res, err := s.scanner.PerformScan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled detection failed")
		return err
	}
	b := res.Breakdown()
	log.Info().
		Str("scan_id", res.ID).
		Int("risks", b.Total).
		Int64("duration_ms", res.DurationMS).
		Msg("===== SCHEDULED DETECTION COMPLETED =====")
	if b.Total > 0 {
		log.Info().Int("high", b.High).Int("medium", b.Medium).Int("low", b.Low).Msg("risk breakdown")
	}
	return nil
}

// RunRemediation remediates every HIGH risk sequentially and returns the
// tallies. The error is only set when the risks could not be listed.
func (s *Scheduler) RunRemediation(ctx context.Context) (succeeded, failed int, err error) {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("===== SCHEDULED AUTO-REMEDIATION STARTED =====")

	high, err := s.risks.List(ctx, string(risks.SeverityHigh))
	if err != nil {
		log.Error().Err(err).Msg("could not list HIGH risks")
		return 0, 0, fmt.Errorf("listing high risks: %w", err)
	}
	if len(high) == 0 {
		log.Info().Msg("no HIGH severity risks to remediate")
		return 0, 0, nil
	}

	for _, k := range high {
		if ctx.Err() != nil {
			break
		}
		if s.remediator.Remediate(ctx, k.ID) {
			succeeded++
		} else {
			failed++
		}
	}
	log.Info().
		Int("succeeded", succeeded).
		Int("failed", failed).
		Msg("===== SCHEDULED AUTO-REMEDIATION COMPLETED =====")
	return succeeded, failed, nil
}

// RunHealthCheck counts risk rows to prove the store answers.
func (s *Scheduler) RunHealthCheck(ctx context.Context) error {
	n, err := s.risks.Count(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("health check: database is unhealthy")
		return err
	}
	zerolog.Ctx(ctx).Debug().Int64("total_risks", n).Msg("health check: database is healthy")
	return nil
}
