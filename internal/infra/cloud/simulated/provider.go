// Package simulated is a CloudProvider that only waits and logs.
package simulated

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/cloudsec/internal/domain/remediation"
)

type Provider struct {
	Delay time.Duration
}

func New(delay time.Duration) *Provider {
	return &Provider{Delay: delay}
}

func (p *Provider) SetBucketPrivate(ctx context.Context, t remediation.Target) error {
	return p.simulate(ctx, "set bucket private", t)
}

func (p *Provider) RevokeOpenRule(ctx context.Context, t remediation.Target) error {
	return p.simulate(ctx, "revoke 0.0.0.0/0 ingress", t)
}

func (p *Provider) RestrictPrincipal(ctx context.Context, t remediation.Target) error {
	return p.simulate(ctx, "restrict wildcard principal", t)
}

func (p *Provider) simulate(ctx context.Context, op string, t remediation.Target) error {
	zerolog.Ctx(ctx).Info().
		Str("op", op).
		Int64("resource_id", t.ResourceID).
		Str("resource", t.Name).
		Msg("simulating cloud API call")

	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
