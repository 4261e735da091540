package ai

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/domain/ai"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

type Service struct {
	client    ai.Client
	risks     risks.Repository
	resources resources.Repository
}

// NewService accepts a nil client; Explain then reports ErrNotConfigured.
func NewService(client ai.Client, risks risks.Repository, resources resources.Repository) *Service {
	return &Service{client: client, risks: risks, resources: resources}
}

type Explanation struct {
	RiskID      int64  `json:"riskId"`
	Explanation string `json:"explanation"`
}

func (s *Service) Enabled() bool { return s.client != nil }

func (s *Service) Explain(ctx context.Context, riskID int64) (Explanation, error) {
	if s.client == nil {
		return Explanation{}, ai.ErrNotConfigured
	}
	k, err := s.risks.Get(ctx, riskID)
	if err != nil {
		return Explanation{}, err
	}
	subject := ai.Subject{Risk: k}
	if res, err := s.resources.Get(ctx, k.ResourceID); err == nil {
		subject.Resource = res
	} else {
		zerolog.Ctx(ctx).Debug().Err(err).Int64("resource_id", k.ResourceID).Msg("explaining without resource")
	}
	text, err := s.client.Explain(ctx, subject)
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{RiskID: riskID, Explanation: text}, nil
}
