package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// MembershipSource provides the membership rows the resolver decides from.
type MembershipSource interface {
	// OrganizationRole returns the user's role in the organization.
	// The boolean is false when no membership exists.
	OrganizationRole(ctx context.Context, userID, orgID uuid.UUID) (OrgRole, bool, error)

	// WorkspaceRole returns the user's direct role in the workspace.
	// The boolean is false when no direct membership row exists.
	WorkspaceRole(ctx context.Context, userID, workspaceID uuid.UUID) (WorkspaceRole, bool, error)

	// WorkspaceOrganization returns the parent organization of a workspace.
	WorkspaceOrganization(ctx context.Context, workspaceID uuid.UUID) (uuid.UUID, error)

	// WorkspaceRolesInOrganization returns the user's direct workspace roles
	// across all workspaces of the organization.
	WorkspaceRolesInOrganization(ctx context.Context, userID, orgID uuid.UUID) ([]WorkspaceRole, error)
}

// Resolver computes effective roles and answers permission checks.
//
// Permission allow-lists and hierarchy ranks are precomputed into immutable
// maps at construction, so every check is a couple of map lookups.
type Resolver struct {
	source MembershipSource
	grants map[WorkspaceRole]map[Permission]bool
	ranks  map[string]int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	cfg Config
}

// WithConfig replaces the default role configuration.
func WithConfig(cfg Config) ResolverOption {
	return func(rc *resolverConfig) {
		rc.cfg = cfg
	}
}

// NewResolver creates an authorization resolver over the membership source.
// Panics if source is nil to fail fast during initialization.
func NewResolver(source MembershipSource, opts ...ResolverOption) (*Resolver, error) {
	if source == nil {
		panic("authz: membership source is required")
	}

	rc := resolverConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&rc)
	}

	if err := validateConfig(rc.cfg); err != nil {
		return nil, err
	}

	grants := make(map[WorkspaceRole]map[Permission]bool, len(rc.cfg.Grants))
	for role, perms := range rc.cfg.Grants {
		set := make(map[Permission]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		grants[role] = set
	}

	ranks := make(map[string]int, len(rc.cfg.Hierarchy))
	for role, rank := range rc.cfg.Hierarchy {
		ranks[role] = rank
	}

	return &Resolver{source: source, grants: grants, ranks: ranks}, nil
}

// BelongsToWorkspace reports whether the user can access the workspace,
// either through a direct membership row or implicitly as an admin or owner
// of the parent organization.
func (r *Resolver) BelongsToWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	_, ok, err := r.source.WorkspaceRole(ctx, userID, workspaceID)
	if err != nil {
		return false, errors.Join(ErrFailedToResolve, err)
	}
	if ok {
		return true, nil
	}

	orgRole, ok, err := r.orgRoleForWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return false, err
	}
	return ok && orgRole.IsAdministrative(), nil
}

// RoleInWorkspace resolves the user's effective workspace role. A direct
// membership row wins; organization admins and owners without one get the
// implicit manager role. The boolean is false when the user has no access.
func (r *Resolver) RoleInWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (WorkspaceRole, bool, error) {
	role, ok, err := r.source.WorkspaceRole(ctx, userID, workspaceID)
	if err != nil {
		return "", false, errors.Join(ErrFailedToResolve, err)
	}
	if ok {
		return role, true, nil
	}

	orgRole, ok, err := r.orgRoleForWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return "", false, err
	}
	if ok && orgRole.IsAdministrative() {
		return RoleManager, true, nil
	}
	return "", false, nil
}

// Can checks whether the user may exercise the permission in the workspace.
// Organization admins and owners bypass the allow-lists entirely.
func (r *Resolver) Can(ctx context.Context, userID, workspaceID uuid.UUID, permission Permission) error {
	orgRole, ok, err := r.orgRoleForWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if ok && orgRole.IsAdministrative() {
		return nil
	}

	role, ok, err := r.source.WorkspaceRole(ctx, userID, workspaceID)
	if err != nil {
		return errors.Join(ErrFailedToResolve, err)
	}
	if !ok {
		return ErrNoWorkspaceAccess
	}

	if !r.grants[role][permission] {
		return ErrPermissionDenied
	}
	return nil
}

// CanRemoveMember checks whether actor may remove target from the workspace.
// Self-removal is rejected before any hierarchy comparison, the organization
// owner can never be removed, and otherwise the target's resolved role must
// rank strictly below the actor's.
func (r *Resolver) CanRemoveMember(ctx context.Context, actorID, targetID, workspaceID uuid.UUID) error {
	if actorID == targetID {
		return ErrSelfTarget
	}

	if err := r.rejectOwnerTarget(ctx, targetID, workspaceID); err != nil {
		return err
	}

	actorRank, err := r.effectiveRank(ctx, actorID, workspaceID)
	if err != nil {
		return err
	}
	targetRank, err := r.effectiveRank(ctx, targetID, workspaceID)
	if err != nil {
		return err
	}

	if actorRank <= targetRank {
		return ErrInsufficientRank
	}
	return nil
}

// CanChangeRole checks whether actor may set target's workspace role to
// newRole. Changing one's own role is always rejected, the owner's role is
// immutable, and both the target's current role and the new role must rank
// strictly below the actor's.
func (r *Resolver) CanChangeRole(ctx context.Context, actorID, targetID, workspaceID uuid.UUID, newRole WorkspaceRole) error {
	if actorID == targetID {
		return ErrSelfTarget
	}

	if err := r.rejectOwnerTarget(ctx, targetID, workspaceID); err != nil {
		return err
	}

	actorRank, err := r.effectiveRank(ctx, actorID, workspaceID)
	if err != nil {
		return err
	}
	targetRank, err := r.effectiveRank(ctx, targetID, workspaceID)
	if err != nil {
		return err
	}

	if actorRank <= targetRank || actorRank <= r.ranks[string(newRole)] {
		return ErrInsufficientRank
	}
	return nil
}

// CanChangeOrganizationRole checks whether actor may set target's
// organization role. Promotion to owner is rejected unconditionally;
// ownership transfer is a separate explicit operation.
func (r *Resolver) CanChangeOrganizationRole(ctx context.Context, actorID, targetID, orgID uuid.UUID, newRole OrgRole) error {
	if actorID == targetID {
		return ErrSelfTarget
	}
	if newRole == RoleOrgOwner {
		return ErrOwnerPromotion
	}

	actorRole, ok, err := r.source.OrganizationRole(ctx, actorID, orgID)
	if err != nil {
		return errors.Join(ErrFailedToResolve, err)
	}
	if !ok {
		return ErrNotOrganizationMember
	}
	targetRole, ok, err := r.source.OrganizationRole(ctx, targetID, orgID)
	if err != nil {
		return errors.Join(ErrFailedToResolve, err)
	}
	if !ok {
		return ErrNotOrganizationMember
	}

	if targetRole == RoleOrgOwner {
		return ErrOwnerTarget
	}

	actorRank := r.ranks[string(actorRole)]
	if actorRank <= r.ranks[string(targetRole)] || actorRank <= r.ranks[string(newRole)] {
		return ErrInsufficientRank
	}
	return nil
}

// CanInviteAtRole checks whether actor may invite a new workspace member at
// the given role. The invite role must rank strictly below the actor's own
// resolved role.
func (r *Resolver) CanInviteAtRole(ctx context.Context, actorID, workspaceID uuid.UUID, role WorkspaceRole) error {
	actorRank, err := r.effectiveRank(ctx, actorID, workspaceID)
	if err != nil {
		return err
	}
	if actorRank <= r.ranks[string(role)] {
		return ErrInsufficientRank
	}
	return nil
}

// CanInviteToOrganization checks whether actor may invite new users to the
// organization. Admins and owners always may. Workspace managers and editors
// who are plain organization members may as well; the invitation itself is
// validated elsewhere to target only the inviter's own workspace at or below
// the inviter's role.
func (r *Resolver) CanInviteToOrganization(ctx context.Context, actorID, orgID uuid.UUID) error {
	orgRole, ok, err := r.source.OrganizationRole(ctx, actorID, orgID)
	if err != nil {
		return errors.Join(ErrFailedToResolve, err)
	}
	if !ok {
		return ErrNotOrganizationMember
	}
	if orgRole.IsAdministrative() {
		return nil
	}

	roles, err := r.source.WorkspaceRolesInOrganization(ctx, actorID, orgID)
	if err != nil {
		return errors.Join(ErrFailedToResolve, err)
	}
	for _, role := range roles {
		if role == RoleManager || role == RoleEditor {
			return nil
		}
	}
	return ErrPermissionDenied
}

// orgRoleForWorkspace resolves the user's role in the workspace's parent
// organization.
func (r *Resolver) orgRoleForWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (OrgRole, bool, error) {
	orgID, err := r.source.WorkspaceOrganization(ctx, workspaceID)
	if err != nil {
		return "", false, errors.Join(ErrFailedToResolve, err)
	}
	role, ok, err := r.source.OrganizationRole(ctx, userID, orgID)
	if err != nil {
		return "", false, errors.Join(ErrFailedToResolve, err)
	}
	return role, ok, nil
}

// effectiveRank returns the hierarchy rank of the user's strongest role for
// the workspace. Organization owners and admins rank by their organization
// role even when they also hold a weaker direct workspace role.
func (r *Resolver) effectiveRank(ctx context.Context, userID, workspaceID uuid.UUID) (int, error) {
	rank := -1

	orgRole, ok, err := r.orgRoleForWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return 0, err
	}
	if ok && orgRole.IsAdministrative() {
		rank = r.ranks[string(orgRole)]
	}

	role, ok, err := r.source.WorkspaceRole(ctx, userID, workspaceID)
	if err != nil {
		return 0, errors.Join(ErrFailedToResolve, err)
	}
	if ok && r.ranks[string(role)] > rank {
		rank = r.ranks[string(role)]
	}

	if rank < 0 {
		return 0, ErrNoWorkspaceAccess
	}
	return rank, nil
}

// rejectOwnerTarget returns ErrOwnerTarget when target owns the workspace's
// parent organization.
func (r *Resolver) rejectOwnerTarget(ctx context.Context, targetID, workspaceID uuid.UUID) error {
	orgRole, ok, err := r.orgRoleForWorkspace(ctx, targetID, workspaceID)
	if err != nil {
		return err
	}
	if ok && orgRole == RoleOrgOwner {
		return ErrOwnerTarget
	}
	return nil
}
