package authz

import "errors"

// Domain errors for authorization checks. Every denial is an error value so
// callers can distinguish "not allowed" from "could not decide".
var (
	// ErrPermissionDenied is returned when the resolved role lacks the
	// requested permission.
	ErrPermissionDenied = errors.New("authz.permission_denied")

	// ErrNoWorkspaceAccess is returned when the user has neither direct nor
	// implicit access to the workspace.
	ErrNoWorkspaceAccess = errors.New("authz.no_workspace_access")

	// ErrNotOrganizationMember is returned when the user has no role in the
	// organization at all.
	ErrNotOrganizationMember = errors.New("authz.not_organization_member")

	// ErrSelfTarget is returned when a user tries to remove themselves or
	// change their own role. This rejection takes priority over any
	// hierarchy comparison.
	ErrSelfTarget = errors.New("authz.self_target")

	// ErrOwnerTarget is returned when the target of a remove or role change
	// is the organization owner.
	ErrOwnerTarget = errors.New("authz.owner_target")

	// ErrOwnerPromotion is returned when a role change would grant the owner
	// role. Ownership transfer is a separate explicit operation.
	ErrOwnerPromotion = errors.New("authz.owner_promotion")

	// ErrInsufficientRank is returned when the target or requested role is
	// not strictly below the actor's own rank.
	ErrInsufficientRank = errors.New("authz.insufficient_rank")

	// ErrInvalidConfig is returned when the role configuration is incomplete.
	ErrInvalidConfig = errors.New("authz.invalid_config")

	// ErrFailedToResolve wraps membership source failures.
	ErrFailedToResolve = errors.New("authz.failed_to_resolve")

	// ErrActorNotInContext is returned when no actor is found in the context.
	ErrActorNotInContext = errors.New("authz.actor_not_in_context")
)
