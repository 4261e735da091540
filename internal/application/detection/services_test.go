package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cloudsec/internal/application"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/infra/db/memory"
)

var fixed = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestDetect_PersistsInventoryAndFindsThreeRisks(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Repos().Resources
	svc := NewService(application.FixedClock{T: fixed})

	found, err := svc.Detect(ctx, repo)
	require.NoError(t, err)

	saved, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, saved, 7)

	require.Len(t, found, 3)
	bySev := map[risks.Severity]int{}
	for _, k := range found {
		bySev[k.Severity]++
		assert.NotZero(t, k.ResourceID)
		assert.Equal(t, fixed, k.DetectedAt)
	}
	assert.Equal(t, 2, bySev[risks.SeverityHigh])
	assert.Equal(t, 1, bySev[risks.SeverityMedium])
}

func TestDetect_EachScanAddsFreshResources(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Repos().Resources
	svc := NewService(application.SystemClock{})

	_, err := svc.Detect(ctx, repo)
	require.NoError(t, err)
	_, err = svc.Detect(ctx, repo)
	require.NoError(t, err)

	saved, _ := repo.List(ctx, "")
	assert.Len(t, saved, 14)
}

type failingRepo struct{ resources.Repository }

func (failingRepo) Save(context.Context, *resources.Resource) error { return errors.New("disk full") }

func TestDetect_PropagatesSaveError(t *testing.T) {
	svc := NewService(application.SystemClock{})
	_, err := svc.Detect(context.Background(), failingRepo{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEvaluate(t *testing.T) {
	svc := NewService(application.FixedClock{T: fixed})
	tests := []struct {
		name     string
		res      resources.Resource
		wantType risks.Type
		wantSev  risks.Severity
	}{
		{"public bucket", resources.Resource{Type: resources.TypeBucket, Name: "public-assets", Public: true}, risks.TypePublicBucket, risks.SeverityHigh},
		{"private bucket", resources.Resource{Type: resources.TypeBucket, Name: "company-backups"}, "", ""},
		{"open rule", resources.Resource{Type: resources.TypeNetworkRule, Name: "OPEN-PROD-SG"}, risks.TypeOpenNetworkRule, risks.SeverityHigh},
		{"marker is case sensitive", resources.Resource{Type: resources.TypeNetworkRule, Name: "open-dev-sg"}, "", ""},
		{"wildcard policy", resources.Resource{Type: resources.TypeAccessPolicy, Name: "WILDCARD-ASSUME-ROLE"}, risks.TypeWildcardPrincipal, risks.SeverityMedium},
		{"limited policy", resources.Resource{Type: resources.TypeAccessPolicy, Name: "limited-policy"}, "", ""},
		{"public flag ignored for policies", resources.Resource{Type: resources.TypeAccessPolicy, Name: "x", Public: true}, "", ""},
		{"unknown type", resources.Resource{Type: "DATABASE", Name: "OPEN-WILDCARD"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			res.ID = 42
			got := svc.Evaluate(context.Background(), &res)
			if tt.wantType == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantType, got[0].Type)
			assert.Equal(t, tt.wantSev, got[0].Severity)
			assert.Equal(t, int64(42), got[0].ResourceID)
			assert.Contains(t, got[0].Description, res.Name)
		})
	}
}

func TestMockResources(t *testing.T) {
	inv := MockResources(fixed)
	require.Len(t, inv, 7)
	counts := map[resources.Type]int{}
	for _, r := range inv {
		counts[r.Type]++
		assert.Equal(t, fixed, r.CreatedAt)
	}
	assert.Equal(t, 3, counts[resources.TypeBucket])
	assert.Equal(t, 2, counts[resources.TypeNetworkRule])
	assert.Equal(t, 2, counts[resources.TypeAccessPolicy])
}
