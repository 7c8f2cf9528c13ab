package usage

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

// CheckFunc is the entitlement pre-check run before every consume.
// Wired to the entitlement resolver's CanUse at startup.
type CheckFunc func(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error

// AnchorFunc returns the yearly-window anchor for an organization: the
// earliest started_at among its active plan attachments. A zero time is a
// valid answer and falls back to calendar-year windows.
type AnchorFunc func(ctx context.Context, orgID uuid.UUID) (time.Time, error)

// InvalidateHook is called synchronously after a successful consume or
// unconsume so dependent caches (entitlement availability/limit) drop their
// entries for the touched feature.
type InvalidateHook func(ctx context.Context, orgID uuid.UUID, f feature.Feature)

const (
	defaultUsageTTL  = 30 * time.Second
	defaultAnchorTTL = time.Hour
)

// Ledger meters feature consumption in period buckets.
type Ledger struct {
	registry *feature.Registry
	store    Store
	members  MembershipCounter
	check    CheckFunc
	anchor   AnchorFunc
	cache    kvcache.Cache
	usageTTL time.Duration
	hooks    []InvalidateHook
	now      func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithCheck wires the entitlement pre-check for Consume.
func WithCheck(fn CheckFunc) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.check = fn
		}
	}
}

// WithMembershipCounter wires the directory counts behind team_members.
func WithMembershipCounter(mc MembershipCounter) LedgerOption {
	return func(l *Ledger) {
		if mc != nil {
			l.members = mc
		}
	}
}

// WithAnchor wires the yearly-window anchor source.
func WithAnchor(fn AnchorFunc) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.anchor = fn
		}
	}
}

// WithCache sets the read-through cache. Defaults to a no-op cache.
func WithCache(c kvcache.Cache) LedgerOption {
	return func(l *Ledger) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithInvalidateHook registers a hook run after consume/unconsume.
func WithInvalidateHook(fn InvalidateHook) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.hooks = append(l.hooks, fn)
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a usage Ledger.
// Panics if required dependencies are nil to fail fast during initialization.
func NewLedger(registry *feature.Registry, store Store, opts ...LedgerOption) *Ledger {
	if registry == nil {
		panic("usage: feature registry is required")
	}
	if store == nil {
		panic("usage: store is required")
	}

	l := &Ledger{
		registry: registry,
		store:    store,
		cache:    kvcache.NewNoOpCache(),
		usageTTL: defaultUsageTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// CurrentUsage returns the organization's consumption of the feature in the
// current period.
//
// team_members is always organization-scoped regardless of the workspace
// argument: seats = membership rows + pending invitations + any manually
// tracked lifetime buckets (the last term allows operator adjustments).
// Other features sum the current-period buckets, scoped per the registry.
func (l *Ledger) CurrentUsage(ctx context.Context, orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) (int64, error) {
	def, ok := l.registry.Get(f)
	if !ok {
		return 0, ErrFeatureNotDefined
	}

	scope := l.scopeWorkspace(def, workspaceID)
	key := usageKey(orgID, f, scope)

	cached, err := kvcache.GetOrCompute(ctx, l.cache, key, l.usageTTL, func(ctx context.Context) (string, error) {
		n, err := l.computeUsage(ctx, orgID, def, scope)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	})
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(cached, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountUsage, fmt.Errorf("corrupt cache entry %q", cached))
	}
	return n, nil
}

func (l *Ledger) computeUsage(ctx context.Context, orgID uuid.UUID, def feature.Definition, scope *uuid.UUID) (int64, error) {
	now := l.now()

	if def.Feature == feature.FeatureTeamMembers {
		return l.computeSeats(ctx, orgID, now)
	}

	buckets, err := l.store.Current(ctx, BucketKey{
		OrganizationID: orgID,
		WorkspaceID:    scope,
		Feature:        def.Feature,
		Period:         def.Period,
	}, now)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountUsage, err)
	}

	var total int64
	for _, b := range buckets {
		total += b.Used
	}
	return total, nil
}

func (l *Ledger) computeSeats(ctx context.Context, orgID uuid.UUID, now time.Time) (int64, error) {
	var total int64

	if l.members != nil {
		members, err := l.members.CountMembers(ctx, orgID)
		if err != nil {
			return 0, errors.Join(ErrFailedToCountUsage, err)
		}
		pending, err := l.members.CountPendingInvitations(ctx, orgID)
		if err != nil {
			return 0, errors.Join(ErrFailedToCountUsage, err)
		}
		total = members + pending
	}

	// Manual lifetime buckets allow operator adjustments on top of the
	// directory counts.
	buckets, err := l.store.Current(ctx, BucketKey{
		OrganizationID: orgID,
		Feature:        feature.FeatureTeamMembers,
		Period:         feature.PeriodLifetime,
	}, now)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountUsage, err)
	}
	for _, b := range buckets {
		total += b.Used
	}

	return total, nil
}

// Consume records amount units of consumption after re-running the
// entitlement pre-check. The pre-check failing returns its sentinel
// unchanged; storage failures return ErrFailedToTrackUsage so callers can
// tell an outage from an exhausted limit. On success the usage, limit and
// availability caches for the feature are invalidated synchronously.
func (l *Ledger) Consume(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	def, ok := l.registry.Get(f)
	if !ok {
		return ErrFeatureNotDefined
	}
	if def.Type != feature.TypeLimit {
		return ErrFeatureNotCountable
	}
	if amount <= 0 {
		return nil
	}

	if l.check == nil {
		return ErrNoCheckRegistered
	}
	if err := l.check(ctx, orgID, f, amount, workspaceID); err != nil {
		return err
	}

	now := l.now()
	span, err := l.window(ctx, orgID, def.Period, now)
	if err != nil {
		return err
	}

	scope := l.scopeWorkspace(def, workspaceID)
	key := BucketKey{OrganizationID: orgID, WorkspaceID: scope, Feature: f, Period: def.Period}
	if err := l.store.Increment(ctx, key, span, amount, now); err != nil {
		return errors.Join(ErrFailedToTrackUsage, err)
	}

	l.invalidate(ctx, orgID, f, scope)
	return nil
}

// Unconsume reverses consumption, compensating a rolled-back or deleted
// metered resource. Decrementing more than the current counter is a silent
// no-op; the counter never goes negative.
func (l *Ledger) Unconsume(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	def, ok := l.registry.Get(f)
	if !ok {
		return ErrFeatureNotDefined
	}
	if def.Type != feature.TypeLimit {
		return ErrFeatureNotCountable
	}
	if amount <= 0 {
		return nil
	}

	scope := l.scopeWorkspace(def, workspaceID)
	key := BucketKey{OrganizationID: orgID, WorkspaceID: scope, Feature: f, Period: def.Period}
	if err := l.store.Decrement(ctx, key, amount, l.now()); err != nil {
		return errors.Join(ErrFailedToTrackUsage, err)
	}

	l.invalidate(ctx, orgID, f, scope)
	return nil
}

// window computes the bucket span for a period, resolving and caching the
// yearly anchor when needed.
func (l *Ledger) window(ctx context.Context, orgID uuid.UUID, p feature.Period, now time.Time) (Span, error) {
	var anchor time.Time

	if p == feature.PeriodYearly && l.anchor != nil {
		cached, err := kvcache.GetOrCompute(ctx, l.cache, anchorKey(orgID), defaultAnchorTTL, func(ctx context.Context) (string, error) {
			a, err := l.anchor(ctx, orgID)
			if err != nil {
				return "", err
			}
			return a.UTC().Format(time.RFC3339), nil
		})
		if err != nil {
			return Span{}, errors.Join(ErrFailedToTrackUsage, err)
		}
		anchor, err = time.Parse(time.RFC3339, cached)
		if err != nil {
			return Span{}, errors.Join(ErrFailedToTrackUsage, err)
		}
	}

	return Window(p, now, anchor), nil
}

// scopeWorkspace returns the workspace key component: nil unless the
// registry scopes the feature per workspace. team_members is forced
// organization-wide.
func (l *Ledger) scopeWorkspace(def feature.Definition, workspaceID *uuid.UUID) *uuid.UUID {
	if def.Feature == feature.FeatureTeamMembers {
		return nil
	}
	if def.TrackingScope != feature.ScopeWorkspace {
		return nil
	}
	return workspaceID
}

func (l *Ledger) invalidate(ctx context.Context, orgID uuid.UUID, f feature.Feature, scope *uuid.UUID) {
	l.cache.Delete(ctx, usageKey(orgID, f, nil))
	if scope != nil {
		l.cache.Delete(ctx, usageKey(orgID, f, scope))
	}
	for _, hook := range l.hooks {
		hook(ctx, orgID, f)
	}
}

func usageKey(orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) string {
	if workspaceID != nil {
		return fmt.Sprintf("org_%s_workspace_%s_usage_%s", orgID, workspaceID, f)
	}
	return fmt.Sprintf("org_%s_usage_%s", orgID, f)
}

func anchorKey(orgID uuid.UUID) string {
	return fmt.Sprintf("org_%s_yearly_anchor", orgID)
}
