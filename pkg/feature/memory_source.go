package feature

import (
	"context"
	"maps"
	"sync"
)

// inMemSource implements the Source interface using an in-memory definition map.
type inMemSource struct {
	mu   sync.RWMutex
	defs map[Feature]Definition
}

// NewInMemSource returns an in-memory Source with a copy of the given definitions.
func NewInMemSource(defs map[Feature]Definition) Source {
	return &inMemSource{defs: maps.Clone(defs)}
}

// Load returns a copy of all definitions from memory.
func (s *inMemSource) Load(ctx context.Context) (map[Feature]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.defs), nil
}

// DefaultDefinitions returns the registry entries for the predefined features.
// Useful as a seed for development and tests.
func DefaultDefinitions() map[Feature]Definition {
	defs := []Definition{
		{Feature: FeatureTeamMembers, Name: "Team members", Type: TypeLimit, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureWorkspaces, Name: "Workspaces", Type: TypeLimit, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureConnectionsPerWorkspace, Name: "Connections per workspace", Type: TypeLimit, TrackingScope: ScopeWorkspace, Period: PeriodLifetime, Active: true},
		{Feature: FeatureMonthlyVisits, Name: "Monthly visits", Type: TypeLimit, TrackingScope: ScopeWorkspace, Period: PeriodMonthly, Active: true},
		{Feature: FeatureMonthlyEmails, Name: "Monthly emails", Type: TypeLimit, TrackingScope: ScopeOrganization, Period: PeriodMonthly, Active: true},
		{Feature: FeatureAPIRateLimit, Name: "API rate limit", Type: TypeLimit, TrackingScope: ScopeOrganization, Period: PeriodDaily, Active: true},
		{Feature: FeatureDataRetentionDays, Name: "Data retention days", Type: TypeLimit, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureAPIAccess, Name: "API access", Type: TypeBoolean, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureCustomBranding, Name: "Custom branding", Type: TypeBoolean, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureWhiteLabel, Name: "White label", Type: TypeBoolean, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeatureAnalytics, Name: "Analytics", Type: TypeBoolean, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
		{Feature: FeaturePrioritySupport, Name: "Priority support", Type: TypeBoolean, TrackingScope: ScopeOrganization, Period: PeriodLifetime, Active: true},
	}

	result := make(map[Feature]Definition, len(defs))
	for _, def := range defs {
		result[def.Feature] = def
	}
	return result
}
