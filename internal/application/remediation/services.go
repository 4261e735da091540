package remediation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/application"
	domain "github.com/bryanwahyu/cloudsec/internal/domain/remediation"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/metrics"
)

// Service applies fixes for detected risks and records every attempt.
// Service is safe for concurrent use; it does not deduplicate attempts.
type Service struct {
	Risks     risks.Repository
	Resources resources.Repository
	Actions   domain.Repository
	Provider  domain.CloudProvider
	Metrics   metrics.Recorder
	Clock     application.Clock
}

// Remediate attempts to fix the risk with the given id. It returns false when
// the risk does not exist or the attempt was cancelled (no action is
// recorded in either case) or when the fix failed. Errors are logged, never
// returned.
func (s *Service) Remediate(ctx context.Context, riskID int64) bool {
	log := zerolog.Ctx(ctx).With().Int64("risk_id", riskID).Logger()

	risk, err := s.Risks.Get(ctx, riskID)
	if err != nil {
		log.Warn().Err(err).Msg("remediation skipped, risk not found")
		return false
	}

	target := domain.Target{ResourceID: risk.ResourceID}
	if res, err := s.Resources.Get(ctx, risk.ResourceID); err == nil {
		target.Name = res.Name
		target.Location = res.Location
	} else {
		log.Debug().Err(err).Int64("resource_id", risk.ResourceID).Msg("resource lookup failed")
	}

	kind, err := s.apply(log.WithContext(ctx), risk.Type, target)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// shutdown cut the attempt short; the next tick retries it
		log.Info().Str("action_type", string(kind)).Msg("remediation aborted")
		return false
	}
	status := domain.StatusSuccess
	if err != nil {
		status = domain.StatusFailed
		log.Error().Err(err).Str("action_type", string(kind)).Msg("remediation failed")
	}

	action := &domain.Action{
		RiskID:    risk.ID,
		Type:      kind,
		Status:    status,
		Timestamp: s.Clock.Now(),
	}
	if err := s.Actions.Save(ctx, action); err != nil {
		log.Error().Err(err).Msg("could not record remediation action")
		s.Metrics.RemediationFailed()
		return false
	}

	if status != domain.StatusSuccess {
		s.Metrics.RemediationFailed()
		return false
	}
	s.Metrics.RemediationSucceeded()
	log.Info().Str("action_type", string(kind)).Str("resource", target.Name).Msg("remediation succeeded")
	return true
}

// apply dispatches to the provider. Provider panics are returned as errors.
func (s *Service) apply(ctx context.Context, t risks.Type, target domain.Target) (kind domain.ActionType, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()

	// kind is set before the provider runs so a panic keeps it.
	switch t {
	case risks.TypePublicBucket:
		kind = domain.ActionSetPrivate
		err = s.Provider.SetBucketPrivate(ctx, target)
	case risks.TypeOpenNetworkRule:
		kind = domain.ActionRevokeOpenRule
		err = s.Provider.RevokeOpenRule(ctx, target)
	case risks.TypeWildcardPrincipal:
		kind = domain.ActionRestrictPrincipal
		err = s.Provider.RestrictPrincipal(ctx, target)
	default:
		kind = domain.ActionUnknown
		err = fmt.Errorf("no remediation for risk type %q", t)
	}
	return kind, err
}

// Status summarises the attempts made for a risk. The most recently
// inserted action wins, regardless of its timestamp.
func (s *Service) Status(ctx context.Context, riskID int64) (domain.Status, error) {
	actions, err := s.Actions.ListByRisk(ctx, riskID)
	if err != nil {
		return domain.Status{}, err
	}
	if len(actions) == 0 {
		return domain.Status{Status: domain.StatusNone}, nil
	}
	last := actions[len(actions)-1]
	ts := last.Timestamp
	return domain.Status{
		Status:       last.Status,
		LastAttempt:  &ts,
		AttemptCount: len(actions),
	}, nil
}

// History lists every attempt for a risk in insertion order.
func (s *Service) History(ctx context.Context, riskID int64) ([]*domain.Action, error) {
	actions, err := s.Actions.ListByRisk(ctx, riskID)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []*domain.Action{}
	}
	return actions, nil
}
