package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisakit/paisakit/pkg/entitlement"
	"github.com/paisakit/paisakit/pkg/feature"
	"github.com/paisakit/paisakit/pkg/kvcache"
	"github.com/paisakit/paisakit/pkg/payment"
	"github.com/paisakit/paisakit/pkg/trial"
	"github.com/paisakit/paisakit/pkg/usage"
	"github.com/paisakit/paisakit/svc/billing"
)

type memberCounts struct {
	mu      sync.Mutex
	members int64
	pending int64
}

func (m *memberCounts) CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members, nil
}

func (m *memberCounts) CountPendingInvitations(ctx context.Context, orgID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending, nil
}

func testRegistry(t *testing.T) *feature.Registry {
	t.Helper()
	reg, err := feature.NewRegistry(context.Background(), feature.NewInMemSource(feature.DefaultDefinitions()))
	require.NoError(t, err)
	return reg
}

func testCatalog(t *testing.T) *entitlement.Catalog {
	t.Helper()
	catalog, err := entitlement.NewCatalog(context.Background(), entitlement.NewInMemCatalogSource(map[string]entitlement.Plan{
		"free": {
			Slug:   "free",
			Name:   "Free",
			Price:  entitlement.Money{Amount: 0, Currency: "NPR"},
			Cycle:  entitlement.CycleMonthly,
			Active: true,
			Limits: map[feature.Feature]feature.Value{
				feature.FeatureTeamMembers:   feature.LimitValue(3),
				feature.FeatureWorkspaces:    feature.LimitValue(1),
				feature.FeatureMonthlyVisits: feature.LimitValue(10),
			},
		},
		"pro": {
			Slug:   "pro",
			Name:   "Pro",
			Price:  entitlement.Money{Amount: 99900, Currency: "NPR"},
			Cycle:  entitlement.CycleMonthly,
			Active: true,
			Limits: map[feature.Feature]feature.Value{
				feature.FeatureTeamMembers:   feature.LimitValue(10),
				feature.FeatureWorkspaces:    feature.LimitValue(5),
				feature.FeatureMonthlyVisits: feature.LimitValue(100),
				feature.FeatureAPIAccess:     feature.BoolValue(true),
			},
		},
	}))
	require.NoError(t, err)
	return catalog
}

func TestService_PurchaseFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("purchase attaches plan after verification", func(t *testing.T) {
		t.Parallel()
		gateway := payment.NewMockGateway()
		plans := entitlement.NewMemoryStore()
		orgID := uuid.New()

		svc := billing.NewService(testRegistry(t), testCatalog(t), plans, usage.NewMemoryStore(),
			billing.WithGateway(gateway))

		res, err := svc.Purchase(ctx, orgID, "pro", "https://app.test/return", "https://app.test/cancel")
		require.NoError(t, err)
		require.True(t, res.Success)

		attached, err := svc.CompletePurchase(ctx, orgID, "pro", res.TransactionID, nil)
		require.NoError(t, err)
		assert.Equal(t, "pro", attached.PlanSlug)
		assert.Equal(t, entitlement.StatusActive, attached.Status)
		require.NotNil(t, attached.EndsAt)

		active, err := svc.HasActivePlan(ctx, orgID)
		require.NoError(t, err)
		assert.True(t, active)
		assert.True(t, svc.HasFeature(ctx, orgID, feature.FeatureAPIAccess))
	})

	t.Run("failed payment attaches nothing", func(t *testing.T) {
		t.Parallel()
		gateway := payment.NewMockGateway()
		plans := entitlement.NewMemoryStore()
		orgID := uuid.New()

		svc := billing.NewService(testRegistry(t), testCatalog(t), plans, usage.NewMemoryStore(),
			billing.WithGateway(gateway))

		res, err := svc.Purchase(ctx, orgID, "pro", "", "")
		require.NoError(t, err)
		gateway.SetStatus(res.TransactionID, payment.StatusFailed)

		_, err = svc.CompletePurchase(ctx, orgID, "pro", res.TransactionID, nil)
		assert.ErrorIs(t, err, billing.ErrPaymentNotVerified)

		active, err := svc.HasActivePlan(ctx, orgID)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("amount mismatch rejected", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(testRegistry(t), testCatalog(t), entitlement.NewMemoryStore(), usage.NewMemoryStore())

		_, err := svc.AttachPlan(ctx, uuid.New(), "pro", &payment.VerifyResult{
			Success: true,
			Status:  payment.StatusCompleted,
			Amount:  500, // pro costs 99900
		})
		assert.ErrorIs(t, err, billing.ErrAmountMismatch)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		svc := billing.NewService(testRegistry(t), testCatalog(t), entitlement.NewMemoryStore(), usage.NewMemoryStore())
		_, err := svc.Purchase(ctx, uuid.New(), "enterprise", "", "")
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})
}

func TestService_SeatLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plans := entitlement.NewMemoryStore()
	orgID := uuid.New()

	// Free plan caps team_members at 3.
	_, err := plans.AttachPlan(ctx, entitlement.OrganizationPlan{
		OrganizationID: orgID,
		PlanSlug:       "free",
		Status:         entitlement.StatusActive,
		StartedAt:      time.Now().UTC().AddDate(0, -1, 0),
	})
	require.NoError(t, err)

	// One owner, one admin, one pending invitation: three seats taken.
	counts := &memberCounts{members: 2, pending: 1}

	svc := billing.NewService(testRegistry(t), testCatalog(t), plans, usage.NewMemoryStore(),
		billing.WithMembershipCounter(counts))

	used, err := svc.CurrentUsage(ctx, orgID, feature.FeatureTeamMembers, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, used)

	// The fourth seat is denied.
	err = svc.CanUse(ctx, orgID, feature.FeatureTeamMembers, 1, nil)
	assert.ErrorIs(t, err, entitlement.ErrLimitExceeded)

	remaining, err := svc.RemainingQuota(ctx, orgID, feature.FeatureTeamMembers, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)

	// The invitation expires: a seat frees up.
	counts.mu.Lock()
	counts.pending = 0
	counts.mu.Unlock()

	assert.NoError(t, svc.CanUse(ctx, orgID, feature.FeatureTeamMembers, 1, nil))
}

func TestService_TrialLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plans := entitlement.NewMemoryStore()
	orgID := uuid.New()

	var mu sync.Mutex
	now := time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	svc := billing.NewService(testRegistry(t), testCatalog(t), plans, usage.NewMemoryStore(),
		billing.WithClock(clock))

	_, err := svc.StartTrial(ctx, orgID, "pro", 14)
	require.NoError(t, err)

	// During the trial the plan contributes entitlements.
	assert.True(t, svc.HasFeature(ctx, orgID, feature.FeatureAPIAccess))
	limit, err := svc.GetLimit(ctx, orgID, feature.FeatureTeamMembers)
	require.NoError(t, err)
	assert.EqualValues(t, 10, limit)

	// Past trial_end the plan stops contributing, but status is untouched
	// until the sweep runs.
	mu.Lock()
	now = now.AddDate(0, 0, 20)
	mu.Unlock()

	assert.False(t, svc.HasFeature(ctx, orgID, feature.FeatureAPIAccess))
	active, err := svc.HasActivePlan(ctx, orgID)
	require.NoError(t, err)
	assert.True(t, active)

	// The sweep is the only path that flips the status.
	sweeper := trial.NewSweeper(plans,
		trial.WithClock(clock),
		trial.WithExpiredHook(svc.InvalidateOrganization))

	expired, err := sweeper.ExpireTrials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	active, err = svc.HasActivePlan(ctx, orgID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestService_ConsumeAndSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	plans := entitlement.NewMemoryStore()
	orgID := uuid.New()

	_, err := plans.AttachPlan(ctx, entitlement.OrganizationPlan{
		OrganizationID: orgID,
		PlanSlug:       "free",
		Status:         entitlement.StatusActive,
		StartedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	cache := kvcache.NewInMemoryCache()
	defer cache.Close()

	svc := billing.NewService(testRegistry(t), testCatalog(t), plans, usage.NewMemoryStore(),
		billing.WithCache(cache))

	// Free plan allows 10 monthly visits.
	require.NoError(t, svc.Consume(ctx, orgID, feature.FeatureMonthlyVisits, 9, nil))

	// Cache invalidation is synchronous: the next check sees 9 used.
	require.NoError(t, svc.CanUse(ctx, orgID, feature.FeatureMonthlyVisits, 1, nil))
	assert.ErrorIs(t, svc.CanUse(ctx, orgID, feature.FeatureMonthlyVisits, 2, nil), entitlement.ErrLimitExceeded)

	require.NoError(t, svc.Consume(ctx, orgID, feature.FeatureMonthlyVisits, 1, nil))
	assert.ErrorIs(t, svc.Consume(ctx, orgID, feature.FeatureMonthlyVisits, 1, nil), entitlement.ErrLimitExceeded)

	// Compensating action frees quota immediately.
	require.NoError(t, svc.Unconsume(ctx, orgID, feature.FeatureMonthlyVisits, 5, nil))
	remaining, err := svc.RemainingQuota(ctx, orgID, feature.FeatureMonthlyVisits, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, remaining)

	summary, err := svc.UsageSummary(ctx, orgID)
	require.NoError(t, err)

	byFeature := make(map[feature.Feature]billing.FeatureUsage, len(summary))
	for _, row := range summary {
		byFeature[row.Feature] = row
	}
	visits, ok := byFeature[feature.FeatureMonthlyVisits]
	require.True(t, ok)
	assert.EqualValues(t, 10, visits.Limit)
	assert.EqualValues(t, 5, visits.Used)
}
