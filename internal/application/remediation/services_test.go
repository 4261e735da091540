package remediation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cloudsec/internal/application"
	domain "github.com/bryanwahyu/cloudsec/internal/domain/remediation"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
	"github.com/bryanwahyu/cloudsec/internal/domain/store"
	"github.com/bryanwahyu/cloudsec/internal/infra/db/memory"
	"github.com/bryanwahyu/cloudsec/internal/metrics"
)

var fixed = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) SetBucketPrivate(ctx context.Context, t domain.Target) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockProvider) RevokeOpenRule(ctx context.Context, t domain.Target) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockProvider) RestrictPrincipal(ctx context.Context, t domain.Target) error {
	return m.Called(ctx, t).Error(0)
}

type counter struct {
	metrics.Nop
	ok, failed int
}

func (c *counter) RemediationSucceeded() { c.ok++ }
func (c *counter) RemediationFailed()    { c.failed++ }

type fixture struct {
	svc      *Service
	repos    store.Repos
	provider *mockProvider
	metrics  *counter
}

func newFixture() *fixture {
	repos := memory.NewStore().Repos()
	p := &mockProvider{}
	c := &counter{}
	return &fixture{
		svc: &Service{
			Risks:     repos.Risks,
			Resources: repos.Resources,
			Actions:   repos.Actions,
			Provider:  p,
			Metrics:   c,
			Clock:     application.FixedClock{T: fixed},
		},
		repos:    repos,
		provider: p,
		metrics:  c,
	}
}

func (f *fixture) seed(t *testing.T, rt resources.Type, name string, kt risks.Type) *risks.Risk {
	t.Helper()
	ctx := context.Background()
	res := &resources.Resource{Type: rt, Name: name, Location: "us-west-2"}
	require.NoError(t, f.repos.Resources.Save(ctx, res))
	k := &risks.Risk{ResourceID: res.ID, Type: kt, Severity: risks.SeverityHigh}
	require.NoError(t, f.repos.Risks.Save(ctx, k))
	return k
}

func TestRemediate_PublicBucketSucceeds(t *testing.T) {
	f := newFixture()
	k := f.seed(t, resources.TypeBucket, "public-assets", risks.TypePublicBucket)
	f.provider.On("SetBucketPrivate", mock.Anything, domain.Target{ResourceID: k.ResourceID, Name: "public-assets", Location: "us-west-2"}).Return(nil)

	ok := f.svc.Remediate(context.Background(), k.ID)
	assert.True(t, ok)
	f.provider.AssertExpectations(t)

	hist, err := f.svc.History(context.Background(), k.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.ActionSetPrivate, hist[0].Type)
	assert.Equal(t, domain.StatusSuccess, hist[0].Status)
	assert.Equal(t, fixed, hist[0].Timestamp)
	assert.Equal(t, 1, f.metrics.ok)
}

func TestRemediate_DispatchByRiskType(t *testing.T) {
	tests := []struct {
		rt     resources.Type
		kt     risks.Type
		method string
		want   domain.ActionType
	}{
		{resources.TypeNetworkRule, risks.TypeOpenNetworkRule, "RevokeOpenRule", domain.ActionRevokeOpenRule},
		{resources.TypeAccessPolicy, risks.TypeWildcardPrincipal, "RestrictPrincipal", domain.ActionRestrictPrincipal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kt), func(t *testing.T) {
			f := newFixture()
			k := f.seed(t, tt.rt, "x", tt.kt)
			f.provider.On(tt.method, mock.Anything, mock.Anything).Return(nil)

			assert.True(t, f.svc.Remediate(context.Background(), k.ID))
			hist, _ := f.svc.History(context.Background(), k.ID)
			require.Len(t, hist, 1)
			assert.Equal(t, tt.want, hist[0].Type)
		})
	}
}

func TestRemediate_MissingRiskRecordsNothing(t *testing.T) {
	f := newFixture()

	assert.False(t, f.svc.Remediate(context.Background(), 404))
	hist, err := f.svc.History(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, hist)
	f.provider.AssertNotCalled(t, "SetBucketPrivate", mock.Anything, mock.Anything)
	assert.Zero(t, f.metrics.failed)
}

func TestRemediate_UnknownRiskTypeRecordsFailedAction(t *testing.T) {
	f := newFixture()
	k := f.seed(t, resources.TypeBucket, "weird", risks.Type("ENCRYPTION_DISABLED"))

	assert.False(t, f.svc.Remediate(context.Background(), k.ID))
	hist, _ := f.svc.History(context.Background(), k.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.ActionUnknown, hist[0].Type)
	assert.Equal(t, domain.StatusFailed, hist[0].Status)
	assert.Equal(t, 1, f.metrics.failed)
}

func TestRemediate_ProviderErrorRecordsFailedAction(t *testing.T) {
	f := newFixture()
	k := f.seed(t, resources.TypeBucket, "public-assets", risks.TypePublicBucket)
	f.provider.On("SetBucketPrivate", mock.Anything, mock.Anything).Return(errors.New("access denied"))

	assert.False(t, f.svc.Remediate(context.Background(), k.ID))
	st, err := f.svc.Status(context.Background(), k.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, st.Status)
	assert.Equal(t, 1, st.AttemptCount)
}

func TestRemediate_MissingResourceStillDispatches(t *testing.T) {
	f := newFixture()
	k := &risks.Risk{ResourceID: 77, Type: risks.TypePublicBucket, Severity: risks.SeverityHigh}
	require.NoError(t, f.repos.Risks.Save(context.Background(), k))
	f.provider.On("SetBucketPrivate", mock.Anything, domain.Target{ResourceID: 77}).Return(nil)

	assert.True(t, f.svc.Remediate(context.Background(), k.ID))
	f.provider.AssertExpectations(t)
}

func TestStatus_NoActions(t *testing.T) {
	f := newFixture()
	st, err := f.svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNone, st.Status)
	assert.Nil(t, st.LastAttempt)
	assert.Zero(t, st.AttemptCount)
}

func TestStatus_LastInsertedWinsOverTimestamp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.repos.Actions.Save(ctx, &domain.Action{RiskID: 5, Type: domain.ActionSetPrivate, Status: domain.StatusSuccess, Timestamp: fixed}))
	require.NoError(t, f.repos.Actions.Save(ctx, &domain.Action{RiskID: 5, Type: domain.ActionSetPrivate, Status: domain.StatusSuccess, Timestamp: fixed.Add(time.Minute)}))
	older := fixed.Add(-time.Hour)
	require.NoError(t, f.repos.Actions.Save(ctx, &domain.Action{RiskID: 5, Type: domain.ActionSetPrivate, Status: domain.StatusFailed, Timestamp: older}))

	st, err := f.svc.Status(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, st.AttemptCount)
	assert.Equal(t, domain.StatusFailed, st.Status)
	require.NotNil(t, st.LastAttempt)
	assert.Equal(t, older, *st.LastAttempt)
}

func TestRemediate_RepeatedAttemptsAppend(t *testing.T) {
	f := newFixture()
	k := f.seed(t, resources.TypeBucket, "public-assets", risks.TypePublicBucket)
	f.provider.On("SetBucketPrivate", mock.Anything, mock.Anything).Return(nil)

	for i := 0; i < 3; i++ {
		assert.True(t, f.svc.Remediate(context.Background(), k.ID))
	}
	st, err := f.svc.Status(context.Background(), k.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.AttemptCount)
	assert.Equal(t, domain.StatusSuccess, st.Status)
}

func TestRemediate_PanicKeepsActionType(t *testing.T) {
	tests := []struct {
		rt     resources.Type
		kt     risks.Type
		method string
		want   domain.ActionType
	}{
		{resources.TypeBucket, risks.TypePublicBucket, "SetBucketPrivate", domain.ActionSetPrivate},
		{resources.TypeNetworkRule, risks.TypeOpenNetworkRule, "RevokeOpenRule", domain.ActionRevokeOpenRule},
		{resources.TypeAccessPolicy, risks.TypeWildcardPrincipal, "RestrictPrincipal", domain.ActionRestrictPrincipal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kt), func(t *testing.T) {
			f := newFixture()
			k := f.seed(t, tt.rt, "target", tt.kt)
			f.provider.On(tt.method, mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("nil client") })

			assert.False(t, f.svc.Remediate(context.Background(), k.ID))
			hist, err := f.svc.History(context.Background(), k.ID)
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, tt.want, hist[0].Type)
			assert.Equal(t, domain.StatusFailed, hist[0].Status)
			assert.Equal(t, 1, f.metrics.failed)
		})
	}
}

func TestRemediate_CancelledAttemptIsNotRecorded(t *testing.T) {
	f := newFixture()
	k := f.seed(t, resources.TypeBucket, "public-assets", risks.TypePublicBucket)
	ctx, cancel := context.WithCancel(context.Background())
	f.provider.On("SetBucketPrivate", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled)

	assert.False(t, f.svc.Remediate(ctx, k.ID))

	hist, err := f.svc.History(context.Background(), k.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)
	assert.Zero(t, f.metrics.failed)
	assert.Zero(t, f.metrics.ok)
}
