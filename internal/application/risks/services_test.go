package risks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cloudsec/internal/application"
	"github.com/bryanwahyu/cloudsec/internal/application/detection"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	domain "github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/store"
	"github.com/bryanwahyu/cloudsec/internal/infra/db/memory"
	"github.com/bryanwahyu/cloudsec/internal/metrics"
)

var fixed = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recorder struct {
	metrics.Nop
	mu       sync.Mutex
	detected int
	open     int64
}

func (r *recorder) RisksDetected(n int)  { r.mu.Lock(); r.detected += n; r.mu.Unlock() }
func (r *recorder) SetOpenRisks(n int64) { r.mu.Lock(); r.open = n; r.mu.Unlock() }

type reports struct {
	key  string
	body []byte
	err  error
}

func (r *reports) PutJSON(_ context.Context, key string, body []byte) (string, error) {
	r.key, r.body = key, body
	if r.err != nil {
		return "", r.err
	}
	return "http://minio/" + key, nil
}

func newService(st store.Store, rec metrics.Recorder) *Service {
	clock := application.FixedClock{T: fixed}
	return &Service{
		Store:     st,
		Inventory: st.Repos().Resources,
		Risks:     st.Repos().Risks,
		Detector:  detection.NewService(clock),
		Metrics:   rec,
		Clock:     clock,
	}
}

func TestPerformScan_PersistsRisksAndUpdatesMetrics(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	rec := &recorder{}
	svc := newService(st, rec)

	res, err := svc.PerformScan(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	require.Len(t, res.Risks, 3)
	for _, k := range res.Risks {
		assert.NotZero(t, k.ID)
	}
	assert.Equal(t, domain.Stats{Total: 3, High: 2, Medium: 1}, res.Breakdown())

	_, err = svc.PerformScan(ctx)
	require.NoError(t, err)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, 6, rec.detected)
	assert.Equal(t, int64(6), rec.open)

	inv, err := svc.Resources(ctx, "bucket")
	require.NoError(t, err)
	assert.Len(t, inv, 6)
}

type failingRisks struct{ domain.Repository }

func (failingRisks) Save(context.Context, *domain.Risk) error { return errors.New("insert failed") }

type failingTx struct{ *memory.Store }

func (f failingTx) WithinTx(ctx context.Context, fn func(context.Context, store.Repos) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx store.Repos) error {
		tx.Risks = failingRisks{tx.Risks}
		return fn(ctx, tx)
	})
}

func TestPerformScan_RollsBackResourcesWhenRiskInsertFails(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	rec := &recorder{}
	svc := newService(st, rec)
	svc.Store = failingTx{st}

	_, err := svc.PerformScan(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")

	inv, err := svc.Resources(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, inv)
	n, _ := svc.Count(ctx)
	assert.Zero(t, n)
	assert.Zero(t, rec.detected)
}

func TestPerformScan_ArchivesReport(t *testing.T) {
	st := memory.NewStore()
	svc := newService(st, metrics.Nop{})
	rep := &reports{}
	svc.Reports = rep

	res, err := svc.PerformScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scans/2025/03/01/"+res.ID+".json", rep.key)
	assert.Contains(t, string(rep.body), `"highSeverity":2`)
	assert.Equal(t, "http://minio/"+rep.key, res.ReportURL)
}

func TestPerformScan_ReportFailureDoesNotFailScan(t *testing.T) {
	st := memory.NewStore()
	svc := newService(st, metrics.Nop{})
	svc.Reports = &reports{err: errors.New("minio down")}

	res, err := svc.PerformScan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.ReportURL)
	n, _ := svc.Count(context.Background())
	assert.Equal(t, int64(3), n)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	svc := newService(memory.NewStore(), metrics.Nop{})

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{}, st)

	empty, err := svc.List(ctx, "HIGH")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.PerformScan(ctx)
	require.NoError(t, err)

	high, err := svc.List(ctx, "high")
	require.NoError(t, err)
	assert.Len(t, high, 2)

	_, err = svc.List(ctx, "CRITICAL")
	assert.ErrorIs(t, err, domain.ErrInvalidSeverity)

	_, err = svc.Resources(ctx, "DATABASE")
	assert.ErrorIs(t, err, resources.ErrInvalidType)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := svc.Page(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.TotalPages)

	st, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 3, High: 2, Medium: 1}, st)
}
