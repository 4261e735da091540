package risks

import "context"

// Repository port (persistence for risks)
type Repository interface {
	// Save inserts k and assigns its ID.
	Save(ctx context.Context, k *Risk) error
	Get(ctx context.Context, id int64) (*Risk, error)
	// List returns risks ordered by id; an empty severity returns all.
	List(ctx context.Context, sev Severity) ([]*Risk, error)
	Paginate(ctx context.Context, sev Severity, page, pageSize int) (PaginatedResult, error)
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// ReportStore port (archive for scan reports)
type ReportStore interface {
	PutJSON(ctx context.Context, key string, body []byte) (string, error)
}
