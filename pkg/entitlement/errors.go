package entitlement

import "errors"

// Domain errors for entitlement resolution. Deny reasons are distinct
// sentinels so callers can tell "undefined" from "disabled" from "exhausted"
// without inspecting counters.
var (
	ErrFeatureNotDefined   = errors.New("entitlement: feature not defined for organization")
	ErrFeatureNotCountable = errors.New("entitlement: feature is not a countable limit")
	ErrFeatureDisabled     = errors.New("entitlement: feature not available on current plans")
	ErrLimitExceeded       = errors.New("entitlement: limit exceeded")
	ErrNoActivePlan        = errors.New("entitlement: organization has no active plan")

	ErrFailedToLoadCatalog = errors.New("entitlement: failed to load plan catalog")
	ErrInvalidCatalog      = errors.New("entitlement: invalid plan catalog configuration")
	ErrFailedToResolve     = errors.New("entitlement: failed to resolve entitlements")
	ErrFailedToCountUsage  = errors.New("entitlement: failed to count current usage")
)
