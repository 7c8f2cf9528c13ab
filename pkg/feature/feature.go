package feature

import (
	"context"
	"errors"
	"fmt"
)

// Feature is the canonical key of an entitlement unit.
// Features are either boolean capabilities or countable resources.
type Feature string

// Predefined feature keys.
const (
	FeatureTeamMembers             Feature = "team_members"
	FeatureWorkspaces              Feature = "workspaces"
	FeatureConnectionsPerWorkspace Feature = "connections_per_workspace"
	FeatureMonthlyVisits           Feature = "monthly_visits"
	FeatureMonthlyEmails           Feature = "monthly_emails"
	FeatureAPIRateLimit            Feature = "api_rate_limit"
	FeatureDataRetentionDays       Feature = "data_retention_days"
	FeatureAPIAccess               Feature = "api_access"
	FeatureCustomBranding          Feature = "custom_branding"
	FeatureWhiteLabel              Feature = "white_label"
	FeatureAnalytics               Feature = "analytics"
	FeaturePrioritySupport         Feature = "priority_support"
)

// Type distinguishes boolean capabilities from countable limits.
type Type string

const (
	TypeBoolean Type = "boolean"
	TypeLimit   Type = "limit"
)

// TrackingScope defines whether usage is metered per organization or per workspace.
type TrackingScope string

const (
	ScopeOrganization TrackingScope = "organization"
	ScopeWorkspace    TrackingScope = "workspace"
)

// Period is the reset cadence of a usage counter.
type Period string

const (
	PeriodLifetime Period = "lifetime"
	PeriodDaily    Period = "daily"
	PeriodWeekly   Period = "weekly"
	PeriodMonthly  Period = "monthly"
	PeriodYearly   Period = "yearly"
)

// Definition is a registry entry describing a single feature.
type Definition struct {
	Feature       Feature
	Name          string
	Type          Type
	TrackingScope TrackingScope
	Period        Period
	Active        bool
}

// Source defines how feature definitions are loaded into the registry.
type Source interface {
	Load(ctx context.Context) (map[Feature]Definition, error)
}

// Registry is the canonical, immutable set of feature definitions.
// It is the single authority for a feature's type, tracking scope and period;
// plan limits and overrides carry values only.
type Registry struct {
	// defs is treated as immutable after initialization for thread safety.
	defs map[Feature]Definition
}

// NewRegistry loads definitions from the source and validates them.
func NewRegistry(ctx context.Context, src Source) (*Registry, error) {
	if src == nil {
		panic("feature: Source is required")
	}

	defs, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadDefinitions, err)
	}

	if defs == nil {
		defs = make(map[Feature]Definition)
	}

	for key, def := range defs {
		if err := validateDefinition(key, def); err != nil {
			return nil, err
		}
	}

	return &Registry{defs: defs}, nil
}

// Get returns the definition for a feature. Inactive and unknown features
// are both reported as absent so callers fail closed.
func (r *Registry) Get(f Feature) (Definition, bool) {
	def, ok := r.defs[f]
	if !ok || !def.Active {
		return Definition{}, false
	}
	return def, true
}

// Defined reports whether the feature has an active registry entry.
func (r *Registry) Defined(f Feature) bool {
	_, ok := r.Get(f)
	return ok
}

// Features returns the keys of all active definitions. Order is unspecified.
func (r *Registry) Features() []Feature {
	result := make([]Feature, 0, len(r.defs))
	for key, def := range r.defs {
		if def.Active {
			result = append(result, key)
		}
	}
	return result
}

func validateDefinition(key Feature, def Definition) error {
	if def.Feature != key {
		return errors.Join(ErrInvalidDefinition,
			fmt.Errorf("definition key mismatch: map key %s != definition feature %s", key, def.Feature))
	}

	switch def.Type {
	case TypeBoolean, TypeLimit:
	default:
		return errors.Join(ErrInvalidDefinition,
			fmt.Errorf("feature %s has unknown type %q", key, def.Type))
	}

	switch def.TrackingScope {
	case ScopeOrganization, ScopeWorkspace:
	default:
		return errors.Join(ErrInvalidDefinition,
			fmt.Errorf("feature %s has unknown tracking scope %q", key, def.TrackingScope))
	}

	switch def.Period {
	case PeriodLifetime, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
	default:
		return errors.Join(ErrInvalidDefinition,
			fmt.Errorf("feature %s has unknown period %q", key, def.Period))
	}

	return nil
}
