package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/feature"
	"github.com/paisakit/paisakit/pkg/kvcache"
)

// UsageFunc returns current consumption for (organization, feature, optional
// workspace). Wired to the usage ledger at startup; the indirection keeps the
// entitlement and usage packages from importing each other.
type UsageFunc func(ctx context.Context, orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) (int64, error)

// defaultEntitlementTTL bounds staleness after a crash between a usage commit
// and cache invalidation. Self-healing within the window.
const defaultEntitlementTTL = 60 * time.Second

// Resolver computes feature availability and effective limits for an
// organization by combining overrides (highest precedence) with the union of
// all currently-active plans.
type Resolver struct {
	registry *feature.Registry
	catalog  *Catalog
	store    Store
	usage    UsageFunc
	cache    kvcache.Cache
	ttl      time.Duration
	now      func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the read-through cache. Defaults to a no-op cache.
func WithCache(c kvcache.Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithCacheTTL overrides the entitlement cache TTL.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithUsageFunc wires the current-usage reader used by CanUse.
func WithUsageFunc(fn UsageFunc) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.usage = fn
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates an entitlement Resolver.
// Panics if required dependencies are nil to fail fast during initialization.
func NewResolver(registry *feature.Registry, catalog *Catalog, store Store, opts ...ResolverOption) *Resolver {
	if registry == nil {
		panic("entitlement: feature registry is required")
	}
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}
	if store == nil {
		panic("entitlement: store is required")
	}

	r := &Resolver{
		registry: registry,
		catalog:  catalog,
		store:    store,
		cache:    kvcache.NewNoOpCache(),
		ttl:      defaultEntitlementTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// HasFeature reports whether the feature is available to the organization.
// Precedence: active override first, then any currently-active plan granting
// the feature. Returns false on any error to fail closed.
func (r *Resolver) HasFeature(ctx context.Context, orgID uuid.UUID, f feature.Feature) bool {
	if !r.registry.Defined(f) {
		return false
	}

	key := hasFeatureKey(orgID, f)
	cached, err := kvcache.GetOrCompute(ctx, r.cache, key, r.ttl, func(ctx context.Context) (string, error) {
		has, err := r.computeHasFeature(ctx, orgID, f)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(has), nil
	})
	if err != nil {
		return false
	}
	return cached == "true"
}

func (r *Resolver) computeHasFeature(ctx context.Context, orgID uuid.UUID, f feature.Feature) (bool, error) {
	now := r.now()

	ov, err := r.store.Override(ctx, orgID, f)
	if err != nil {
		return false, errors.Join(ErrFailedToResolve, err)
	}
	if ov != nil && ov.IsActive(now) {
		return ov.Value.Grants(), nil
	}

	plans, err := r.activePlans(ctx, orgID, now)
	if err != nil {
		return false, err
	}

	for _, plan := range plans {
		if v, ok := plan.Limits[f]; ok && v.Grants() {
			return true, nil
		}
	}
	return false, nil
}

// GetLimit returns the effective limit for a countable feature.
// An active override bypasses aggregation entirely; otherwise limits from all
// currently-active plans combine per the feature's aggregation rule, with
// unlimited dominating. Returns ErrFeatureNotDefined when neither an override
// nor any active plan defines the feature (the caller's "null").
func (r *Resolver) GetLimit(ctx context.Context, orgID uuid.UUID, f feature.Feature) (int64, error) {
	def, ok := r.registry.Get(f)
	if !ok {
		return 0, ErrFeatureNotDefined
	}
	if def.Type != feature.TypeLimit {
		return 0, ErrFeatureNotCountable
	}

	key := limitKey(orgID, f)
	cached, err := kvcache.GetOrCompute(ctx, r.cache, key, r.ttl, func(ctx context.Context) (string, error) {
		limit, err := r.computeLimit(ctx, orgID, f)
		if err != nil {
			// Encode the defined-by-nobody case so it caches like any
			// other result instead of recomputing on every denial.
			if errors.Is(err, ErrFeatureNotDefined) {
				return "undefined", nil
			}
			return "", err
		}
		return strconv.FormatInt(limit, 10), nil
	})
	if err != nil {
		return 0, err
	}
	if cached == "undefined" {
		return 0, ErrFeatureNotDefined
	}

	limit, err := strconv.ParseInt(cached, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrFailedToResolve, fmt.Errorf("corrupt cache entry %q", cached))
	}
	return limit, nil
}

func (r *Resolver) computeLimit(ctx context.Context, orgID uuid.UUID, f feature.Feature) (int64, error) {
	now := r.now()

	ov, err := r.store.Override(ctx, orgID, f)
	if err != nil {
		return 0, errors.Join(ErrFailedToResolve, err)
	}
	if ov != nil && ov.IsActive(now) {
		return ov.Value.Limit(), nil
	}

	plans, err := r.activePlans(ctx, orgID, now)
	if err != nil {
		return 0, err
	}

	var limits []int64
	for _, plan := range plans {
		if v, ok := plan.Limits[f]; ok && v.IsLimit() {
			limits = append(limits, v.Limit())
		}
	}

	limit, ok := feature.Aggregate(f, limits)
	if !ok {
		return 0, ErrFeatureNotDefined
	}
	return limit, nil
}

// CanUse checks whether the organization may consume amount units of the
// feature, optionally within a workspace. Boolean features delegate to
// HasFeature. For countable features a per-workspace allocation, when
// present, replaces the organization aggregate limit.
func (r *Resolver) CanUse(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	def, ok := r.registry.Get(f)
	if !ok {
		return ErrFeatureNotDefined
	}

	if def.Type == feature.TypeBoolean {
		if r.HasFeature(ctx, orgID, f) {
			return nil
		}
		return ErrFeatureDisabled
	}

	limit, err := r.GetLimit(ctx, orgID, f)
	if err != nil {
		return err
	}
	if limit == feature.Unlimited {
		return nil
	}

	if r.usage == nil {
		return errors.Join(ErrFailedToCountUsage, errors.New("no usage reader wired"))
	}
	used, err := r.usage(ctx, orgID, f, workspaceID)
	if err != nil {
		return errors.Join(ErrFailedToCountUsage, err)
	}

	// Workspace allocation replaces the aggregate limit when present.
	if workspaceID != nil && def.TrackingScope == feature.ScopeWorkspace {
		wl, err := r.store.WorkspaceLimit(ctx, *workspaceID, f)
		if err != nil {
			return errors.Join(ErrFailedToResolve, err)
		}
		if wl != nil {
			if used+amount <= wl.Allocated {
				return nil
			}
			return ErrLimitExceeded
		}
	}

	if used+amount <= limit {
		return nil
	}
	return ErrLimitExceeded
}

// CanAllocate checks whether granting a workspace an allocation of requested
// units keeps the organization's total allocations within its aggregate
// limit. allocatedElsewhere is the sum already allocated to the other
// workspaces; the caller computes it since workspace membership lives outside
// this package.
func (r *Resolver) CanAllocate(ctx context.Context, orgID uuid.UUID, f feature.Feature, allocatedElsewhere, requested int64) error {
	limit, err := r.GetLimit(ctx, orgID, f)
	if err != nil {
		return err
	}
	if limit == feature.Unlimited {
		return nil
	}
	if allocatedElsewhere+requested <= limit {
		return nil
	}
	return ErrLimitExceeded
}

// HasActivePlan reports whether any attachment carries active, non-revoked
// status. Deliberately a pure status check: an overdue trial still counts
// until the expiry sweep transitions it, so callers can distinguish
// "plan inactive" from "limit exceeded".
func (r *Resolver) HasActivePlan(ctx context.Context, orgID uuid.UUID) (bool, error) {
	plans, err := r.store.OrganizationPlans(ctx, orgID)
	if err != nil {
		return false, errors.Join(ErrFailedToResolve, err)
	}
	for _, plan := range plans {
		if plan.HasActiveStatus() {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateFeature drops the cached availability and limit for the feature.
// Called synchronously by the usage ledger after consume/unconsume.
func (r *Resolver) InvalidateFeature(ctx context.Context, orgID uuid.UUID, f feature.Feature) {
	r.cache.Delete(ctx, hasFeatureKey(orgID, f))
	r.cache.Delete(ctx, limitKey(orgID, f))
}

// activePlans resolves the organization's attachments to catalog plans,
// keeping only rows contributing entitlements now.
func (r *Resolver) activePlans(ctx context.Context, orgID uuid.UUID, now time.Time) ([]Plan, error) {
	attached, err := r.store.OrganizationPlans(ctx, orgID)
	if err != nil {
		return nil, errors.Join(ErrFailedToResolve, err)
	}

	var plans []Plan
	for _, op := range attached {
		if !op.IsCurrentlyActive(now) {
			continue
		}
		plan, ok := r.catalog.Plan(op.PlanSlug)
		if !ok {
			// Attachment referencing a slug missing from the catalog:
			// skip rather than fail, matching the fail-closed posture.
			continue
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func hasFeatureKey(orgID uuid.UUID, f feature.Feature) string {
	return fmt.Sprintf("org_%s_has_%s", orgID, f)
}

func limitKey(orgID uuid.UUID, f feature.Feature) string {
	return fmt.Sprintf("org_%s_limit_%s", orgID, f)
}
