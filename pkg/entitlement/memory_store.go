package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/feature"
)

// MemoryStore is an in-memory Store for tests and development. It also
// carries the write paths the trial sweeper and the purchase flow need, so a
// single fixture backs the whole plan lifecycle.
type MemoryStore struct {
	mu        sync.RWMutex
	plans     map[uuid.UUID]*OrganizationPlan
	overrides map[uuid.UUID]map[feature.Feature]Override
	wsLimits  map[uuid.UUID]map[feature.Feature]WorkspaceLimit
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:     make(map[uuid.UUID]*OrganizationPlan),
		overrides: make(map[uuid.UUID]map[feature.Feature]Override),
		wsLimits:  make(map[uuid.UUID]map[feature.Feature]WorkspaceLimit),
	}
}

// AttachPlan stores a plan attachment, assigning an ID if absent.
func (s *MemoryStore) AttachPlan(ctx context.Context, plan OrganizationPlan) (OrganizationPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	cp := plan
	s.plans[plan.ID] = &cp
	return plan, nil
}

// OrganizationPlans returns copies of all attachments for the organization.
func (s *MemoryStore) OrganizationPlans(ctx context.Context, orgID uuid.UUID) ([]OrganizationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []OrganizationPlan
	for _, plan := range s.plans {
		if plan.OrganizationID == orgID {
			result = append(result, *plan)
		}
	}
	return result, nil
}

// SetOverride stores an organization override.
func (s *MemoryStore) SetOverride(ctx context.Context, ov Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overrides[ov.OrganizationID] == nil {
		s.overrides[ov.OrganizationID] = make(map[feature.Feature]Override)
	}
	s.overrides[ov.OrganizationID][ov.Feature] = ov
	return nil
}

// Override returns the override for (org, feature) or nil.
func (s *MemoryStore) Override(ctx context.Context, orgID uuid.UUID, f feature.Feature) (*Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ov, ok := s.overrides[orgID][f]; ok {
		return &ov, nil
	}
	return nil, nil
}

// SetWorkspaceLimit stores a per-workspace allocation.
func (s *MemoryStore) SetWorkspaceLimit(ctx context.Context, wl WorkspaceLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wsLimits[wl.WorkspaceID] == nil {
		s.wsLimits[wl.WorkspaceID] = make(map[feature.Feature]WorkspaceLimit)
	}
	s.wsLimits[wl.WorkspaceID][wl.Feature] = wl
	return nil
}

// WorkspaceLimit returns the allocation for (workspace, feature) or nil.
func (s *MemoryStore) WorkspaceLimit(ctx context.Context, workspaceID uuid.UUID, f feature.Feature) (*WorkspaceLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if wl, ok := s.wsLimits[workspaceID][f]; ok {
		return &wl, nil
	}
	return nil, nil
}

// ExpiredTrials returns active, non-revoked attachments whose trial window
// has passed. Rows without trial dates are never reported.
func (s *MemoryStore) ExpiredTrials(ctx context.Context, now time.Time) ([]OrganizationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []OrganizationPlan
	for _, plan := range s.plans {
		if plan.HasActiveStatus() && plan.TrialEnd != nil && plan.TrialEnd.Before(now) {
			result = append(result, *plan)
		}
	}
	return result, nil
}

// TrialsEndingOn returns active trials whose trial_end falls on the given day.
func (s *MemoryStore) TrialsEndingOn(ctx context.Context, day time.Time) ([]OrganizationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.UTC().Date()

	var result []OrganizationPlan
	for _, plan := range s.plans {
		if !plan.HasActiveStatus() || plan.TrialEnd == nil {
			continue
		}
		ty, tm, td := plan.TrialEnd.UTC().Date()
		if ty == y && tm == m && td == d {
			result = append(result, *plan)
		}
	}
	return result, nil
}

// MarkExpired transitions an attachment to expired/revoked state.
func (s *MemoryStore) MarkExpired(ctx context.Context, planID uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[planID]
	if !ok {
		return nil
	}
	plan.Status = StatusExpired
	plan.Revoked = true
	plan.RevokedAt = &now
	plan.EndsAt = &now
	return nil
}
