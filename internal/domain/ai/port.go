package ai

import (
	"context"

	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

// Subject is what the model is asked to explain. Resource may be nil.
type Subject struct {
	Risk     *risks.Risk
	Resource *resources.Resource
}

type Client interface {
	Explain(ctx context.Context, s Subject) (string, error)
}
