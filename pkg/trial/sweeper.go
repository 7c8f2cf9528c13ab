package trial

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/entitlement"
)

// Store provides the plan attachment rows the sweeps operate on.
// entitlement.MemoryStore satisfies it.
type Store interface {
	// ExpiredTrials returns active, non-revoked attachments whose trial
	// window has passed. Attachments without trial dates are never reported.
	ExpiredTrials(ctx context.Context, now time.Time) ([]entitlement.OrganizationPlan, error)

	// TrialsEndingOn returns active trials whose trial_end falls on the
	// given UTC day.
	TrialsEndingOn(ctx context.Context, day time.Time) ([]entitlement.OrganizationPlan, error)

	// MarkExpired transitions an attachment to expired, revoked state.
	MarkExpired(ctx context.Context, planID uuid.UUID, now time.Time) error
}

// Notifier delivers trial expiry warnings. Delivery and any cross-process
// dedup are the implementation's concern; the sweeper only guarantees at most
// one call per organization per sweep.
type Notifier interface {
	TrialExpiring(ctx context.Context, orgID uuid.UUID, planSlug string, trialEnd time.Time) error
}

// ExpiredHook runs after an attachment is expired, letting callers drop
// entitlement caches for the affected organization.
type ExpiredHook func(ctx context.Context, orgID uuid.UUID)

// Domain errors for trial sweeps.
var (
	ErrNoNotifier      = errors.New("trial: no notifier configured")
	ErrSweepIncomplete = errors.New("trial: sweep finished with errors")
)

// Sweeper expires overdue trials and warns organizations ahead of expiry.
// This is the only path that changes plan status outside of payment
// verification. Both sweeps are idempotent: re-running finds nothing to do.
type Sweeper struct {
	store    Store
	notifier Notifier
	hooks    []ExpiredHook
	logger   *slog.Logger
	now      func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithNotifier wires the warning delivery collaborator.
func WithNotifier(n Notifier) SweeperOption {
	return func(s *Sweeper) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithExpiredHook registers a hook run after each expiry.
func WithExpiredHook(fn ExpiredHook) SweeperOption {
	return func(s *Sweeper) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a trial sweeper.
// Panics if store is nil to fail fast during initialization.
func NewSweeper(store Store, opts ...SweeperOption) *Sweeper {
	if store == nil {
		panic("trial: store is required")
	}

	s := &Sweeper{
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ExpireTrials transitions every overdue trial to expired, revoked state and
// returns how many attachments were expired. Attachments without trial dates
// are never touched. Per-row failures are logged and aggregated so one bad
// row does not block the rest of the sweep.
func (s *Sweeper) ExpireTrials(ctx context.Context) (int, error) {
	now := s.now()

	plans, err := s.store.ExpiredTrials(ctx, now)
	if err != nil {
		return 0, err
	}

	var expired int
	var failed bool
	for _, plan := range plans {
		if err := s.store.MarkExpired(ctx, plan.ID, now); err != nil {
			failed = true
			s.logger.ErrorContext(ctx, "failed to expire trial",
				slog.String("plan_id", plan.ID.String()),
				slog.String("organization_id", plan.OrganizationID.String()),
				slog.String("error", err.Error()))
			continue
		}
		expired++
		s.logger.InfoContext(ctx, "trial expired",
			slog.String("plan_id", plan.ID.String()),
			slog.String("organization_id", plan.OrganizationID.String()),
			slog.String("plan_slug", plan.PlanSlug))
		for _, hook := range s.hooks {
			hook(ctx, plan.OrganizationID)
		}
	}

	if failed {
		return expired, ErrSweepIncomplete
	}
	return expired, nil
}

// WarnExpiring notifies organizations whose trial ends exactly daysAhead days
// from now, at most once per organization per sweep. With dryRun set the
// candidates are logged but no notification is sent. Returns the number of
// organizations warned (or that would have been).
func (s *Sweeper) WarnExpiring(ctx context.Context, daysAhead int, dryRun bool) (int, error) {
	if !dryRun && s.notifier == nil {
		return 0, ErrNoNotifier
	}

	day := s.now().AddDate(0, 0, daysAhead)

	plans, err := s.store.TrialsEndingOn(ctx, day)
	if err != nil {
		return 0, err
	}

	// One warning per organization even when several trial plans end the
	// same day.
	seen := make(map[uuid.UUID]bool)
	var warned int
	var failed bool
	for _, plan := range plans {
		if seen[plan.OrganizationID] || plan.TrialEnd == nil {
			continue
		}
		seen[plan.OrganizationID] = true

		if dryRun {
			warned++
			s.logger.InfoContext(ctx, "trial expiry warning (dry run)",
				slog.String("organization_id", plan.OrganizationID.String()),
				slog.String("plan_slug", plan.PlanSlug),
				slog.Time("trial_end", *plan.TrialEnd))
			continue
		}

		if err := s.notifier.TrialExpiring(ctx, plan.OrganizationID, plan.PlanSlug, *plan.TrialEnd); err != nil {
			failed = true
			s.logger.ErrorContext(ctx, "failed to send trial expiry warning",
				slog.String("organization_id", plan.OrganizationID.String()),
				slog.String("error", err.Error()))
			continue
		}
		warned++
	}

	if failed {
		return warned, ErrSweepIncomplete
	}
	return warned, nil
}
