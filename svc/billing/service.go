package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/entitlement"
	"github.com/paisakit/paisakit/pkg/feature"
	"github.com/paisakit/paisakit/pkg/kvcache"
	"github.com/paisakit/paisakit/pkg/payment"
	"github.com/paisakit/paisakit/pkg/usage"
)

// PlanStore extends the entitlement read store with the plan attachment
// write path. entitlement.MemoryStore satisfies it.
type PlanStore interface {
	entitlement.Store
	AttachPlan(ctx context.Context, plan entitlement.OrganizationPlan) (entitlement.OrganizationPlan, error)
}

// Domain errors for the billing service.
var (
	ErrPlanNotFound       = errors.New("billing: plan not found in catalog")
	ErrPlanInactive       = errors.New("billing: plan is not purchasable")
	ErrPaymentNotVerified = errors.New("billing: payment not verified")
	ErrAmountMismatch     = errors.New("billing: paid amount does not match plan price")
	ErrNoGateway          = errors.New("billing: no payment gateway configured")
)

// Service wires the entitlement resolver and the usage ledger into one
// billing facade. The resolver's pre-check feeds the ledger's Consume, and
// every successful usage change synchronously invalidates the resolver's
// availability and limit caches.
type Service struct {
	registry *feature.Registry
	catalog  *entitlement.Catalog
	plans    PlanStore
	resolver *entitlement.Resolver
	ledger   *usage.Ledger
	gateway  payment.Gateway
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cache    kvcache.Cache
	members  usage.MembershipCounter
	gateway  payment.Gateway
	logger   *slog.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// WithCache sets the shared read-through cache for entitlements and usage.
func WithCache(c kvcache.Cache) ServiceOption {
	return func(sc *serviceConfig) {
		if c != nil {
			sc.cache = c
		}
	}
}

// WithMembershipCounter wires the directory counts behind team_members.
func WithMembershipCounter(mc usage.MembershipCounter) ServiceOption {
	return func(sc *serviceConfig) {
		if mc != nil {
			sc.members = mc
		}
	}
}

// WithCacheTTL overrides the entitlement cache TTL.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(sc *serviceConfig) {
		if ttl > 0 {
			sc.cacheTTL = ttl
		}
	}
}

// WithGateway wires the payment gateway for the purchase flow.
func WithGateway(g payment.Gateway) ServiceOption {
	return func(sc *serviceConfig) {
		if g != nil {
			sc.gateway = g
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(sc *serviceConfig) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(sc *serviceConfig) {
		if now != nil {
			sc.now = now
		}
	}
}

// NewService builds the billing facade over a plan store and a usage store.
// Panics if required dependencies are nil to fail fast during initialization.
func NewService(registry *feature.Registry, catalog *entitlement.Catalog, plans PlanStore, usageStore usage.Store, opts ...ServiceOption) *Service {
	if registry == nil {
		panic("billing: feature registry is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if plans == nil {
		panic("billing: plan store is required")
	}
	if usageStore == nil {
		panic("billing: usage store is required")
	}

	sc := serviceConfig{
		cache:  kvcache.NewNoOpCache(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&sc)
	}

	s := &Service{
		registry: registry,
		catalog:  catalog,
		plans:    plans,
		gateway:  sc.gateway,
		logger:   sc.logger,
		now:      sc.now,
	}

	// The resolver reads usage through the ledger and the ledger pre-checks
	// through the resolver. Closures over s break the construction cycle.
	resolverOpts := []entitlement.ResolverOption{
		entitlement.WithCache(sc.cache),
		entitlement.WithClock(sc.now),
		entitlement.WithUsageFunc(func(ctx context.Context, orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) (int64, error) {
			return s.ledger.CurrentUsage(ctx, orgID, f, workspaceID)
		}),
	}
	if sc.cacheTTL > 0 {
		resolverOpts = append(resolverOpts, entitlement.WithCacheTTL(sc.cacheTTL))
	}
	s.resolver = entitlement.NewResolver(registry, catalog, plans, resolverOpts...)

	ledgerOpts := []usage.LedgerOption{
		usage.WithCache(sc.cache),
		usage.WithClock(sc.now),
		usage.WithCheck(func(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
			return s.resolver.CanUse(ctx, orgID, f, amount, workspaceID)
		}),
		usage.WithInvalidateHook(s.resolver.InvalidateFeature),
		usage.WithAnchor(s.yearlyAnchor),
	}
	if sc.members != nil {
		ledgerOpts = append(ledgerOpts, usage.WithMembershipCounter(sc.members))
	}
	s.ledger = usage.NewLedger(registry, usageStore, ledgerOpts...)

	return s
}

// Resolver exposes the wired entitlement resolver.
func (s *Service) Resolver() *entitlement.Resolver { return s.resolver }

// Ledger exposes the wired usage ledger.
func (s *Service) Ledger() *usage.Ledger { return s.ledger }

// HasFeature reports whether the organization currently has the feature.
func (s *Service) HasFeature(ctx context.Context, orgID uuid.UUID, f feature.Feature) bool {
	return s.resolver.HasFeature(ctx, orgID, f)
}

// GetLimit returns the organization's effective limit for a countable feature.
func (s *Service) GetLimit(ctx context.Context, orgID uuid.UUID, f feature.Feature) (int64, error) {
	return s.resolver.GetLimit(ctx, orgID, f)
}

// CanUse checks whether amount more units of the feature may be consumed.
func (s *Service) CanUse(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	return s.resolver.CanUse(ctx, orgID, f, amount, workspaceID)
}

// HasActivePlan reports whether any plan attachment carries active status.
func (s *Service) HasActivePlan(ctx context.Context, orgID uuid.UUID) (bool, error) {
	return s.resolver.HasActivePlan(ctx, orgID)
}

// CurrentUsage returns current-period consumption of the feature.
func (s *Service) CurrentUsage(ctx context.Context, orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) (int64, error) {
	return s.ledger.CurrentUsage(ctx, orgID, f, workspaceID)
}

// Consume records consumption after re-running the entitlement check.
func (s *Service) Consume(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	return s.ledger.Consume(ctx, orgID, f, amount, workspaceID)
}

// Unconsume reverses consumption, flooring at zero.
func (s *Service) Unconsume(ctx context.Context, orgID uuid.UUID, f feature.Feature, amount int64, workspaceID *uuid.UUID) error {
	return s.ledger.Unconsume(ctx, orgID, f, amount, workspaceID)
}

// RemainingQuota returns how many units of the feature are left in the
// current period. feature.Unlimited means no cap.
func (s *Service) RemainingQuota(ctx context.Context, orgID uuid.UUID, f feature.Feature, workspaceID *uuid.UUID) (int64, error) {
	limit, err := s.resolver.GetLimit(ctx, orgID, f)
	if err != nil {
		return 0, err
	}
	if limit == feature.Unlimited {
		return feature.Unlimited, nil
	}

	used, err := s.ledger.CurrentUsage(ctx, orgID, f, workspaceID)
	if err != nil {
		return 0, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// FeatureUsage is one row of a usage summary.
type FeatureUsage struct {
	Feature feature.Feature
	Limit   int64 // feature.Unlimited when uncapped
	Used    int64
}

// UsageSummary reports limit and consumption for every countable feature the
// organization is entitled to.
func (s *Service) UsageSummary(ctx context.Context, orgID uuid.UUID) ([]FeatureUsage, error) {
	var summary []FeatureUsage
	for _, f := range s.registry.Features() {
		def, ok := s.registry.Get(f)
		if !ok || def.Type != feature.TypeLimit {
			continue
		}

		limit, err := s.resolver.GetLimit(ctx, orgID, f)
		if err != nil {
			if errors.Is(err, entitlement.ErrFeatureNotDefined) {
				continue
			}
			return nil, err
		}
		used, err := s.ledger.CurrentUsage(ctx, orgID, f, nil)
		if err != nil {
			return nil, err
		}
		summary = append(summary, FeatureUsage{Feature: f, Limit: limit, Used: used})
	}
	return summary, nil
}

// InvalidateOrganization drops every cached entitlement for the organization.
// Wired as the trial sweeper's expiry hook.
func (s *Service) InvalidateOrganization(ctx context.Context, orgID uuid.UUID) {
	for _, f := range s.registry.Features() {
		s.resolver.InvalidateFeature(ctx, orgID, f)
	}
}

// yearlyAnchor returns the earliest started_at among the organization's
// active plan attachments, anchoring yearly usage windows to the original
// purchase date.
func (s *Service) yearlyAnchor(ctx context.Context, orgID uuid.UUID) (time.Time, error) {
	plans, err := s.plans.OrganizationPlans(ctx, orgID)
	if err != nil {
		return time.Time{}, err
	}

	var anchor time.Time
	for _, plan := range plans {
		if !plan.HasActiveStatus() {
			continue
		}
		if anchor.IsZero() || plan.StartedAt.Before(anchor) {
			anchor = plan.StartedAt
		}
	}
	return anchor, nil
}

// Purchase starts a gateway payment for the plan. The returned result holds
// the payment URL (or form fields) to hand to the customer.
func (s *Service) Purchase(ctx context.Context, orgID uuid.UUID, planSlug, returnURL, cancelURL string) (*payment.InitiateResult, error) {
	if s.gateway == nil {
		return nil, ErrNoGateway
	}

	plan, ok := s.catalog.Plan(planSlug)
	if !ok {
		return nil, ErrPlanNotFound
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	res, err := s.gateway.Initiate(ctx, payment.Request{
		TransactionID: fmt.Sprintf("%s:%s:%s", orgID, planSlug, uuid.NewString()),
		Amount:        plan.Price.Amount,
		Currency:      plan.Price.Currency,
		ProductName:   plan.Name,
		ReturnURL:     returnURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment initiated",
		slog.String("organization_id", orgID.String()),
		slog.String("plan_slug", planSlug),
		slog.String("gateway", s.gateway.Name()),
		slog.String("transaction_id", res.TransactionID))
	return res, nil
}

// CompletePurchase verifies the payment with the gateway and attaches the
// plan. The entitlement engine only ever consumes a verified result.
func (s *Service) CompletePurchase(ctx context.Context, orgID uuid.UUID, planSlug, transactionID string, extra map[string]string) (entitlement.OrganizationPlan, error) {
	if s.gateway == nil {
		return entitlement.OrganizationPlan{}, ErrNoGateway
	}

	verified, err := s.gateway.Verify(ctx, transactionID, extra)
	if err != nil {
		return entitlement.OrganizationPlan{}, err
	}

	return s.AttachPlan(ctx, orgID, planSlug, verified)
}

// AttachPlan attaches a plan to the organization given a verified purchase.
// The attachment's period follows the plan's billing cycle; lifetime plans
// never end.
func (s *Service) AttachPlan(ctx context.Context, orgID uuid.UUID, planSlug string, verified *payment.VerifyResult) (entitlement.OrganizationPlan, error) {
	if verified == nil || !verified.Success || verified.Status != payment.StatusCompleted {
		return entitlement.OrganizationPlan{}, ErrPaymentNotVerified
	}

	plan, ok := s.catalog.Plan(planSlug)
	if !ok {
		return entitlement.OrganizationPlan{}, ErrPlanNotFound
	}
	if !plan.Active {
		return entitlement.OrganizationPlan{}, ErrPlanInactive
	}
	if verified.Amount != plan.Price.Amount {
		return entitlement.OrganizationPlan{}, ErrAmountMismatch
	}

	now := s.now()
	attachment := entitlement.OrganizationPlan{
		OrganizationID: orgID,
		PlanSlug:       planSlug,
		Status:         entitlement.StatusActive,
		StartedAt:      now,
		EndsAt:         cycleEnd(plan.Cycle, now),
	}

	attached, err := s.plans.AttachPlan(ctx, attachment)
	if err != nil {
		return entitlement.OrganizationPlan{}, err
	}

	s.invalidatePlanFeatures(ctx, orgID, plan)
	s.logger.InfoContext(ctx, "plan attached",
		slog.String("organization_id", orgID.String()),
		slog.String("plan_slug", planSlug),
		slog.String("transaction_id", verified.TransactionID))
	return attached, nil
}

// StartTrial attaches a plan in a trial window without payment.
func (s *Service) StartTrial(ctx context.Context, orgID uuid.UUID, planSlug string, days int) (entitlement.OrganizationPlan, error) {
	plan, ok := s.catalog.Plan(planSlug)
	if !ok {
		return entitlement.OrganizationPlan{}, ErrPlanNotFound
	}
	if !plan.Active {
		return entitlement.OrganizationPlan{}, ErrPlanInactive
	}

	now := s.now()
	end := now.AddDate(0, 0, days)
	attachment := entitlement.OrganizationPlan{
		OrganizationID: orgID,
		PlanSlug:       planSlug,
		Status:         entitlement.StatusActive,
		TrialStart:     &now,
		TrialEnd:       &end,
		StartedAt:      now,
	}

	attached, err := s.plans.AttachPlan(ctx, attachment)
	if err != nil {
		return entitlement.OrganizationPlan{}, err
	}

	s.invalidatePlanFeatures(ctx, orgID, plan)
	s.logger.InfoContext(ctx, "trial started",
		slog.String("organization_id", orgID.String()),
		slog.String("plan_slug", planSlug),
		slog.Time("trial_end", end))
	return attached, nil
}

func (s *Service) invalidatePlanFeatures(ctx context.Context, orgID uuid.UUID, plan entitlement.Plan) {
	for f := range plan.Limits {
		s.resolver.InvalidateFeature(ctx, orgID, f)
	}
}

func cycleEnd(cycle entitlement.BillingCycle, now time.Time) *time.Time {
	var end time.Time
	switch cycle {
	case entitlement.CycleMonthly:
		end = now.AddDate(0, 1, 0)
	case entitlement.CycleYearly:
		end = now.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &end
}
