package detection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/application"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

// Service generates the mock inventory and evaluates the rule checks.
// It is stateless and safe for concurrent use.
type Service struct {
	Clock application.Clock
}

func NewService(clock application.Clock) *Service {
	return &Service{Clock: clock}
}

// Detect persists a fresh mock inventory through repo and returns the risks
// found on it. Persistence errors are returned unchanged.
func (s *Service) Detect(ctx context.Context, repo resources.Repository) ([]*risks.Risk, error) {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("starting security scan")

	inventory := MockResources(s.Clock.Now())
	for _, r := range inventory {
		if err := repo.Save(ctx, r); err != nil {
			return nil, fmt.Errorf("saving resource %s: %w", r.Name, err)
		}
	}

	var found []*risks.Risk
	for _, r := range inventory {
		found = append(found, s.Evaluate(ctx, r)...)
	}

	log.Info().Int("resources", len(inventory)).Int("risks", len(found)).Msg("scan complete")
	return found, nil
}

// Evaluate applies the single rule matching r's type.
func (s *Service) Evaluate(ctx context.Context, r *resources.Resource) []*risks.Risk {
	var k *risks.Risk
	switch r.Type {
	case resources.TypeBucket:
		k = s.checkBucket(r)
	case resources.TypeNetworkRule:
		k = s.checkNetworkRule(r)
	case resources.TypeAccessPolicy:
		k = s.checkAccessPolicy(r)
	default:
		zerolog.Ctx(ctx).Warn().Str("resource_type", string(r.Type)).Int64("resource_id", r.ID).Msg("unknown resource type")
		return nil
	}
	if k == nil {
		return nil
	}
	zerolog.Ctx(ctx).Warn().
		Str("risk_type", string(k.Type)).
		Str("resource", r.Name).
		Msg("risk found")
	return []*risks.Risk{k}
}

func (s *Service) checkBucket(r *resources.Resource) *risks.Risk {
	if !r.Public {
		return nil
	}
	return s.newRisk(r, risks.TypePublicBucket, risks.SeverityHigh,
		"Bucket "+r.Name+" is publicly accessible. Anyone on the internet can read/write objects.")
}

func (s *Service) checkNetworkRule(r *resources.Resource) *risks.Risk {
	if !strings.Contains(r.Name, "OPEN") {
		return nil
	}
	return s.newRisk(r, risks.TypeOpenNetworkRule, risks.SeverityHigh,
		"Network rule group "+r.Name+" allows traffic from 0.0.0.0/0. This exposes your resources to the entire internet.")
}

func (s *Service) checkAccessPolicy(r *resources.Resource) *risks.Risk {
	if !strings.Contains(r.Name, "WILDCARD") {
		return nil
	}
	return s.newRisk(r, risks.TypeWildcardPrincipal, risks.SeverityMedium,
		"Access policy "+r.Name+" has Principal: '*'. Any principal can assume this role.")
}

func (s *Service) newRisk(r *resources.Resource, t risks.Type, sev risks.Severity, desc string) *risks.Risk {
	return &risks.Risk{
		ResourceID:  r.ID,
		Type:        t,
		Severity:    sev,
		Description: desc,
		DetectedAt:  s.Clock.Now(),
	}
}

// MockResources returns the fixed demo inventory: three buckets, two
// network rule groups and two access policies.
func MockResources(now time.Time) []*resources.Resource {
	mk := func(t resources.Type, name, location string, public bool) *resources.Resource {
		return &resources.Resource{Type: t, Name: name, Location: location, Public: public, CreatedAt: now, UpdatedAt: now}
	}
	return []*resources.Resource{
		mk(resources.TypeBucket, "company-backups", "us-east-1", false),
		mk(resources.TypeBucket, "internal-data-bucket", "eu-west-1", false),
		mk(resources.TypeBucket, "public-assets", "us-west-2", true),

		mk(resources.TypeNetworkRule, "OPEN-PROD-SG", "us-east-1", false),
		mk(resources.TypeNetworkRule, "locked-down-sg", "eu-west-1", false),

		mk(resources.TypeAccessPolicy, "WILDCARD-ASSUME-ROLE", "us-east-1", false),
		mk(resources.TypeAccessPolicy, "limited-policy", "us-east-1", false),
	}
}
