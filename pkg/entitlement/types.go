package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/feature"
)

// Money represents a monetary amount in the smallest currency unit.
// NPR 999.50 would be Amount: 99950, Currency: "NPR".
type Money struct {
	Amount   int64
	Currency string
}

// BillingCycle represents the billing frequency for a plan.
type BillingCycle string

const (
	CycleMonthly  BillingCycle = "monthly"
	CycleYearly   BillingCycle = "yearly"
	CycleLifetime BillingCycle = "lifetime"
)

// PlanStatus represents the state of a plan attachment.
type PlanStatus string

const (
	StatusActive    PlanStatus = "active"
	StatusInactive  PlanStatus = "inactive"
	StatusCancelled PlanStatus = "cancelled"
	StatusExpired   PlanStatus = "expired"
)

// Plan describes a purchasable tier and the entitlement values it grants.
// Limits hold decoded values keyed by feature; the feature registry owns
// type, scope and period.
type Plan struct {
	Slug    string
	Name    string
	Price   Money
	Cycle   BillingCycle
	Active  bool
	Limits  map[feature.Feature]feature.Value
}

// OrganizationPlan records a plan attached to an organization. Multiple rows
// may be simultaneously active (an add-on stacked on a base plan); the
// resolver unions entitlements across all of them. Rows are never hard
// deleted: lifecycle is soft state via Status and Revoked.
type OrganizationPlan struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	PlanSlug       string
	Status         PlanStatus
	Revoked        bool
	TrialStart     *time.Time
	TrialEnd       *time.Time
	StartedAt      time.Time
	EndsAt         *time.Time
	RevokedAt      *time.Time
}

// HasActiveStatus reports whether the row carries active, non-revoked status.
// This is a pure status check: an overdue trial still reports true until the
// expiry sweep transitions it, which is the load-bearing distinction between
// "plan inactive" and "limit exceeded" error reporting.
func (p *OrganizationPlan) HasActiveStatus() bool {
	return p.Status == StatusActive && !p.Revoked
}

// IsCurrentlyActive reports whether the row contributes to entitlements now.
// Rows with trial dates contribute only within [trial_start, trial_end);
// active rows without trial dates always contribute.
func (p *OrganizationPlan) IsCurrentlyActive(now time.Time) bool {
	if !p.HasActiveStatus() {
		return false
	}
	if p.TrialStart != nil && p.TrialEnd != nil {
		return !now.Before(*p.TrialStart) && now.Before(*p.TrialEnd)
	}
	return true
}

// IsInTrial reports whether the row is within its trial window.
func (p *OrganizationPlan) IsInTrial(now time.Time) bool {
	if p.TrialStart == nil || p.TrialEnd == nil {
		return false
	}
	return !now.Before(*p.TrialStart) && now.Before(*p.TrialEnd)
}

// IsTrialExpired reports whether the trial window has passed.
// Always false for rows without trial dates.
func (p *OrganizationPlan) IsTrialExpired(now time.Time) bool {
	if p.TrialEnd == nil {
		return false
	}
	return !now.Before(*p.TrialEnd)
}

// Override is an organization-specific entitlement value that bypasses plan
// aggregation entirely while present and not expired. Created and expired
// manually by operators.
type Override struct {
	OrganizationID uuid.UUID
	Feature        feature.Feature
	Value          feature.Value
	ExpiresAt      *time.Time
}

// IsActive reports whether the override currently applies.
func (o *Override) IsActive(now time.Time) bool {
	return o.ExpiresAt == nil || now.Before(*o.ExpiresAt)
}

// WorkspaceLimit is a per-workspace allocation that replaces the organization
// aggregate limit for workspace-scoped checks.
type WorkspaceLimit struct {
	WorkspaceID uuid.UUID
	Feature     feature.Feature
	Allocated   int64
}
