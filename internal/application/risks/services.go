package risks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/bryanwahyu/cloudsec/internal/application"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	domain "github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/store"
	"github.com/bryanwahyu/cloudsec/internal/metrics"
)

// Detector produces the risks of one scan, persisting resources through repo.
type Detector interface {
	Detect(ctx context.Context, repo resources.Repository) ([]*domain.Risk, error)
}

// Service implements the scan use-cases and risk queries.
// Service is safe for concurrent use.
type Service struct {
	Store     store.UnitOfWork
	Inventory resources.Repository
	Risks     domain.Repository
	Detector  Detector
	// Reports is optional; nil disables report archiving.
	Reports domain.ReportStore
	Metrics metrics.Recorder
	Clock   application.Clock
}

// ScanResult is returned by PerformScan.
type ScanResult struct {
	ID         string         `json:"scanId"`
	Risks      []*domain.Risk `json:"risks"`
	Duration   time.Duration  `json:"-"`
	DurationMS int64          `json:"durationMs"`
	ReportURL  string         `json:"reportUrl,omitempty"`
}

// Breakdown counts the result's risks per severity.
func (r ScanResult) Breakdown() domain.Stats {
	by := lo.CountValuesBy(r.Risks, func(k *domain.Risk) domain.Severity { return k.Severity })
	return domain.Stats{
		Total:  len(r.Risks),
		High:   by[domain.SeverityHigh],
		Medium: by[domain.SeverityMedium],
		Low:    by[domain.SeverityLow],
	}
}

type scanReport struct {
	ScanID    string         `json:"scanId"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  int64          `json:"durationMs"`
	Summary   domain.Stats   `json:"summary"`
	Risks     []*domain.Risk `json:"risks"`
}

// PerformScan runs the detector and persists its findings in one transaction.
// Either every resource and risk of the scan is committed or none is.
func (s *Service) PerformScan(ctx context.Context) (ScanResult, error) {
	id := uuid.New().String()
	log := zerolog.Ctx(ctx).With().Str("scan_id", id).Logger()
	ctx = log.WithContext(ctx)

	started := s.Clock.Now()
	t0 := time.Now()

	var found []*domain.Risk
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Repos) error {
		var err error
		found, err = s.Detector.Detect(ctx, tx.Resources)
		if err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		for _, k := range found {
			if err := tx.Risks.Save(ctx, k); err != nil {
				return fmt.Errorf("saving risk: %w", err)
			}
		}
		return nil
	})
	elapsed := time.Since(t0)
	if err != nil {
		log.Error().Err(err).Msg("scan failed, rolled back")
		return ScanResult{ID: id, Duration: elapsed, DurationMS: elapsed.Milliseconds()}, err
	}

	res := ScanResult{ID: id, Risks: found, Duration: elapsed, DurationMS: elapsed.Milliseconds()}

	s.Metrics.RisksDetected(len(found))
	s.Metrics.DetectionDuration(elapsed)
	if total, err := s.Risks.Count(ctx); err != nil {
		log.Warn().Err(err).Msg("could not refresh open risk gauge")
	} else {
		s.Metrics.SetOpenRisks(total)
	}

	if s.Reports != nil {
		url, err := s.archive(ctx, res, started)
		if err != nil {
			log.Warn().Err(err).Msg("scan report upload failed")
		} else {
			res.ReportURL = url
		}
	}

	log.Info().
		Int("risks", len(found)).
		Int64("duration_ms", res.DurationMS).
		Msg("scan committed")
	return res, nil
}

func (s *Service) archive(ctx context.Context, res ScanResult, started time.Time) (string, error) {
	body, err := json.Marshal(scanReport{
		ScanID:    res.ID,
		StartedAt: started,
		Duration:  res.DurationMS,
		Summary:   res.Breakdown(),
		Risks:     res.Risks,
	})
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("scans/%s/%s.json", started.Format("2006/01/02"), res.ID)
	return s.Reports.PutJSON(ctx, key, body)
}

// List returns every risk, filtered by a case-insensitive severity.
// The result is never nil.
func (s *Service) List(ctx context.Context, severity string) ([]*domain.Risk, error) {
	sev, err := domain.ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	list, err := s.Risks.List(ctx, sev)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Risk{}
	}
	return list, nil
}

func (s *Service) Page(ctx context.Context, severity string, page, pageSize int) (domain.PaginatedResult, error) {
	sev, err := domain.ParseSeverity(severity)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	res, err := s.Risks.Paginate(ctx, sev, page, pageSize)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	if res.Data == nil {
		res.Data = []*domain.Risk{}
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Risk, error) {
	return s.Risks.Get(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	return s.Risks.Stats(ctx)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.Risks.Count(ctx)
}

// Resources lists scanned resources, optionally filtered by type.
func (s *Service) Resources(ctx context.Context, typ string) ([]*resources.Resource, error) {
	t, err := resources.ParseType(typ)
	if err != nil {
		return nil, err
	}
	list, err := s.Inventory.List(ctx, t)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*resources.Resource{}
	}
	return list, nil
}
