package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/feature"
)

// Store provides the persisted organization entitlement state. Implementations
// decode the legacy string value encoding into feature.Value at this boundary.
type Store interface {
	// OrganizationPlans returns all plan attachments for the organization,
	// regardless of status. The resolver applies activity filtering so that
	// status checks and trial-window checks stay in one place.
	OrganizationPlans(ctx context.Context, orgID uuid.UUID) ([]OrganizationPlan, error)

	// Override returns the organization's override for a feature, or nil.
	// Expiry is evaluated by the caller.
	Override(ctx context.Context, orgID uuid.UUID, f feature.Feature) (*Override, error)

	// WorkspaceLimit returns the per-workspace allocation for a feature, or nil.
	WorkspaceLimit(ctx context.Context, workspaceID uuid.UUID, f feature.Feature) (*WorkspaceLimit, error)
}
