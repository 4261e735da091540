// Package memory is a process-local Store used for demos and tests.
// Writes made inside WithinTx are staged and only become visible to other
// callers on commit.
package memory

import (
	"context"
	"math"
	"sync"

	"github.com/bryanwahyu/cloudsec/internal/domain/remediation"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/store"
)

type Store struct {
	mu        sync.RWMutex
	resources []resources.Resource
	risks     []risks.Risk
	actions   []remediation.Action

	lastResourceID int64
	lastRiskID     int64
	lastActionID   int64
}

func NewStore() *Store { return &Store{} }

// staged holds uncommitted writes of one transaction.
type staged struct {
	resources []resources.Resource
	risks     []risks.Risk
	actions   []remediation.Action
}

func (s *Store) Repos() store.Repos { return s.repos(nil) }

func (s *Store) repos(tx *staged) store.Repos {
	return store.Repos{
		Resources: &ResourceRepository{s: s, tx: tx},
		Risks:     &RiskRepository{s: s, tx: tx},
		Actions:   &ActionRepository{s: s, tx: tx},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repos) error) error {
	tx := &staged{}
	if err := fn(ctx, s.repos(tx)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, tx.resources...)
	s.risks = append(s.risks, tx.risks...)
	s.actions = append(s.actions, tx.actions...)
	return nil
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) nextID(p *int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*p++
	return *p
}

type ResourceRepository struct {
	s  *Store
	tx *staged
}

func (r *ResourceRepository) Save(_ context.Context, res *resources.Resource) error {
	res.ID = r.s.nextID(&r.s.lastResourceID)
	if r.tx != nil {
		r.tx.resources = append(r.tx.resources, *res)
		return nil
	}
	r.s.mu.Lock()
	r.s.resources = append(r.s.resources, *res)
	r.s.mu.Unlock()
	return nil
}

func (r *ResourceRepository) Get(ctx context.Context, id int64) (*resources.Resource, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, res := range all {
		if res.ID == id {
			return res, nil
		}
	}
	return nil, resources.ErrNotFound
}

func (r *ResourceRepository) List(_ context.Context, t resources.Type) ([]*resources.Resource, error) {
	r.s.mu.RLock()
	rows := append([]resources.Resource(nil), r.s.resources...)
	r.s.mu.RUnlock()
	if r.tx != nil {
		rows = append(rows, r.tx.resources...)
	}
	out := make([]*resources.Resource, 0, len(rows))
	for i := range rows {
		if t == "" || rows[i].Type == t {
			out = append(out, &rows[i])
		}
	}
	return out, nil
}

type RiskRepository struct {
	s  *Store
	tx *staged
}

func (r *RiskRepository) Save(_ context.Context, k *risks.Risk) error {
	k.ID = r.s.nextID(&r.s.lastRiskID)
	if r.tx != nil {
		r.tx.risks = append(r.tx.risks, *k)
		return nil
	}
	r.s.mu.Lock()
	r.s.risks = append(r.s.risks, *k)
	r.s.mu.Unlock()
	return nil
}

func (r *RiskRepository) Get(ctx context.Context, id int64) (*risks.Risk, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, k := range all {
		if k.ID == id {
			return k, nil
		}
	}
	return nil, risks.ErrNotFound
}

func (r *RiskRepository) List(_ context.Context, sev risks.Severity) ([]*risks.Risk, error) {
	r.s.mu.RLock()
	rows := append([]risks.Risk(nil), r.s.risks...)
	r.s.mu.RUnlock()
	if r.tx != nil {
		rows = append(rows, r.tx.risks...)
	}
	out := make([]*risks.Risk, 0, len(rows))
	for i := range rows {
		if sev == "" || rows[i].Severity == sev {
			out = append(out, &rows[i])
		}
	}
	return out, nil
}

func (r *RiskRepository) Paginate(ctx context.Context, sev risks.Severity, page, pageSize int) (risks.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	all, err := r.List(ctx, sev)
	if err != nil {
		return risks.PaginatedResult{}, err
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(all) {
		start = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	return risks.PaginatedResult{
		Data:       all[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(len(all)),
		TotalPages: int(math.Ceil(float64(len(all)) / float64(pageSize))),
	}, nil
}

func (r *RiskRepository) Count(ctx context.Context) (int64, error) {
	all, err := r.List(ctx, "")
	return int64(len(all)), err
}

func (r *RiskRepository) Stats(ctx context.Context) (risks.Stats, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return risks.Stats{}, err
	}
	st := risks.Stats{Total: len(all)}
	for _, k := range all {
		switch k.Severity {
		case risks.SeverityHigh:
			st.High++
		case risks.SeverityMedium:
			st.Medium++
		case risks.SeverityLow:
			st.Low++
		}
	}
	return st, nil
}

type ActionRepository struct {
	s  *Store
	tx *staged
}

func (r *ActionRepository) Save(_ context.Context, a *remediation.Action) error {
	a.ID = r.s.nextID(&r.s.lastActionID)
	if r.tx != nil {
		r.tx.actions = append(r.tx.actions, *a)
		return nil
	}
	r.s.mu.Lock()
	r.s.actions = append(r.s.actions, *a)
	r.s.mu.Unlock()
	return nil
}

func (r *ActionRepository) ListByRisk(_ context.Context, riskID int64) ([]*remediation.Action, error) {
	r.s.mu.RLock()
	rows := append([]remediation.Action(nil), r.s.actions...)
	r.s.mu.RUnlock()
	if r.tx != nil {
		rows = append(rows, r.tx.actions...)
	}
	var out []*remediation.Action
	for i := range rows {
		if rows[i].RiskID == riskID {
			out = append(out, &rows[i])
		}
	}
	return out, nil
}
