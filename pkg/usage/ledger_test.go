package usage_test

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
	"github.com/paisakit/paisakit/pkg/usage"
)

func ledgerRegistry(t *testing.T) *feature.Registry {
	t.Helper()
	reg, err := feature.NewRegistry(context.Background(), feature.NewInMemSource(feature.DefaultDefinitions()))
	require.NoError(t, err)
	return reg
}

// allowAll is an entitlement check that always passes.
func allowAll(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	return nil
}

// capCheck allows consumption while usage+amount stays within limit.
func capCheck(l **usage.Ledger, limit int64) usage.CheckFunc {
	return func(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
		used, err := (*l).CurrentUsage(ctx, orgID, f, workspaceID)
		if err != nil {
			return err
		}
		if used+amount > limit {
			return entitlement.ErrLimitExceeded
		}
		return nil
	}
}

type staticMembers struct {
	members int64
	pending int64
}

func (s staticMembers) CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return s.members, nil
}

func (s staticMembers) CountPendingInvitations(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return s.pending, nil
}

func TestLedger_ConsumeUnconsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("consume then unconsume restores usage", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		orgID := uuid.New()

		l := usage.NewLedger(ledgerRegistry(t), store, usage.WithCheck(allowAll))

		require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 4, nil))
		used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 4, used)

		require.NoError(t, l.Unconsume(ctx, orgID, feature.FeatureMonthlyEmails, 4, nil))
		used, err = l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 0, used)
	})

	t.Run("unconsume never goes negative", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		orgID := uuid.New()

		l := usage.NewLedger(ledgerRegistry(t), store, usage.WithCheck(allowAll))

		require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 2, nil))
		// Larger than current usage: silent no-op.
		require.NoError(t, l.Unconsume(ctx, orgID, feature.FeatureMonthlyEmails, 5, nil))

		used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, used)
	})

	t.Run("consume beyond limit fails and leaves usage unchanged", func(t *testing.T) {
		t.Parallel()
		store := usage.NewMemoryStore()
		orgID := uuid.New()

		var l *usage.Ledger
		l = usage.NewLedger(ledgerRegistry(t), store, usage.WithCheck(capCheck(&l, 5)))

		require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 5, nil))
		err := l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 1, nil)
		assert.ErrorIs(t, err, entitlement.ErrLimitExceeded)

		used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 5, used)
	})

	t.Run("unknown feature", func(t *testing.T) {
		t.Parallel()
		l := usage.NewLedger(ledgerRegistry(t), usage.NewMemoryStore(), usage.WithCheck(allowAll))
		assert.ErrorIs(t, l.Consume(ctx, uuid.New(), "nonexistent", 1, nil), usage.ErrFeatureNotDefined)
	})

	t.Run("boolean feature is not countable", func(t *testing.T) {
		t.Parallel()
		l := usage.NewLedger(ledgerRegistry(t), usage.NewMemoryStore(), usage.WithCheck(allowAll))
		assert.ErrorIs(t, l.Consume(ctx, uuid.New(), feature.FeatureAPIAccess, 1, nil), usage.ErrFeatureNotCountable)
	})

	t.Run("no check registered fails closed", func(t *testing.T) {
		t.Parallel()
		l := usage.NewLedger(ledgerRegistry(t), usage.NewMemoryStore())
		assert.ErrorIs(t, l.Consume(ctx, uuid.New(), feature.FeatureMonthlyEmails, 1, nil), usage.ErrNoCheckRegistered)
	})
}

func TestLedger_PeriodIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := usage.NewMemoryStore()
	orgID := uuid.New()

	var mu sync.Mutex
	now := time.Date(2025, time.January, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	l := usage.NewLedger(ledgerRegistry(t), store,
		usage.WithCheck(allowAll),
		usage.WithClock(clock))

	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 10, nil))
	used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 10, used)

	// Next month: a fresh bucket, prior consumption does not carry over.
	mu.Lock()
	now = now.AddDate(0, 1, 0)
	mu.Unlock()

	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, used)

	// The January bucket survives as the historical record.
	assert.Len(t, store.AllBuckets(), 1)

	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 3, nil))
	assert.Len(t, store.AllBuckets(), 2)

	// Lifetime features never reset.
	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureWorkspaces, 1, nil))
	mu.Lock()
	now = now.AddDate(5, 0, 0)
	mu.Unlock()
	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureWorkspaces, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, used)
}

func TestLedger_TeamMembers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := usage.NewMemoryStore()
	orgID := uuid.New()
	wsID := uuid.New()

	l := usage.NewLedger(ledgerRegistry(t), store,
		usage.WithCheck(allowAll),
		usage.WithMembershipCounter(staticMembers{members: 2, pending: 1}))

	// 2 members + 1 pending invitation.
	used, err := l.CurrentUsage(ctx, orgID, feature.FeatureTeamMembers, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, used)

	// Always organization-scoped: the workspace argument is ignored.
	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureTeamMembers, &wsID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, used)

	// Manual lifetime adjustments stack on the directory counts.
	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureTeamMembers, 2, nil))
	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureTeamMembers, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, used)
}

func TestLedger_WorkspaceScope(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := usage.NewMemoryStore()
	orgID := uuid.New()
	wsA := uuid.New()
	wsB := uuid.New()

	l := usage.NewLedger(ledgerRegistry(t), store, usage.WithCheck(allowAll))

	// monthly_visits is workspace-scoped in the registry.
	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyVisits, 7, &wsA))
	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyVisits, 2, &wsB))

	used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyVisits, &wsA)
	require.NoError(t, err)
	assert.EqualValues(t, 7, used)

	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyVisits, &wsB)
	require.NoError(t, err)
	assert.EqualValues(t, 2, used)
}

func TestLedger_CacheInvalidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := usage.NewMemoryStore()
	orgID := uuid.New()

	cache := kvcache.NewInMemoryCache()
	defer cache.Close()

	var hookCalls int
	l := usage.NewLedger(ledgerRegistry(t), store,
		usage.WithCheck(allowAll),
		usage.WithCache(cache),
		usage.WithInvalidateHook(func(ctx context.Context, orgID uuid.UUID, f feature.Feature) {
			hookCalls++
		}))

	// Warm the cache, then consume: the fresh value must be visible
	// immediately because invalidation is synchronous.
	_, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
	require.NoError(t, err)

	require.NoError(t, l.Consume(ctx, orgID, feature.FeatureMonthlyEmails, 1, nil))
	used, err := l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, used)
	assert.Equal(t, 1, hookCalls)

	require.NoError(t, l.Unconsume(ctx, orgID, feature.FeatureMonthlyEmails, 1, nil))
	used, err = l.CurrentUsage(ctx, orgID, feature.FeatureMonthlyEmails, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, used)
	assert.Equal(t, 2, hookCalls)
}

func TestLedger_YearlyAnchor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Register a yearly feature for this test.
	defs := feature.DefaultDefinitions()
	defs["yearly_reports"] = feature.Definition{
		Feature: "yearly_reports", Name: "Yearly reports", Type: feature.TypeLimit,
		TrackingScope: feature.ScopeOrganization, Period: feature.PeriodYearly, Active: true,
	}
	reg, err := feature.NewRegistry(ctx, feature.NewInMemSource(defs))
	require.NoError(t, err)

	store := usage.NewMemoryStore()
	orgID := uuid.New()
	anchor := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	l := usage.NewLedger(reg, store,
		usage.WithCheck(allowAll),
		usage.WithClock(func() time.Time { return now }),
		usage.WithAnchor(func(ctx context.Context, orgID uuid.UUID) (time.Time, error) {
			return anchor, nil
		}))

	require.NoError(t, l.Consume(ctx, orgID, "yearly_reports", 1, nil))

	buckets := store.AllBuckets()
	require.Len(t, buckets, 1)
	require.True(t, buckets[0].Span.Bounded())
	assert.Equal(t, anchor, *buckets[0].Span.StartsAt)
	assert.Equal(t, anchor.AddDate(1, 0, 0), *buckets[0].Span.EndsAt)
}
