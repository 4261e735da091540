package resources

import "context"

// Repository port (persistence for resources)
type Repository interface {
	// Save inserts r and assigns its ID.
	Save(ctx context.Context, r *Resource) error
	Get(ctx context.Context, id int64) (*Resource, error)
	// List returns resources in insertion order; an empty type returns all.
	List(ctx context.Context, t Type) ([]*Resource, error)
}
