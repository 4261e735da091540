package remediation

import "context"

// Repository port (persistence for actions)
type Repository interface {
	Save(ctx context.Context, a *Action) error
	// ListByRisk returns the actions of a risk in insertion order.
	ListByRisk(ctx context.Context, riskID int64) ([]*Action, error)
}

// CloudProvider applies fixes to the cloud account. Implementations may be
// simulated or backed by a real provider SDK.
type CloudProvider interface {
	SetBucketPrivate(ctx context.Context, t Target) error
	RevokeOpenRule(ctx context.Context, t Target) error
	RestrictPrincipal(ctx context.Context, t Target) error
}
