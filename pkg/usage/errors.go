package usage

import "errors"

// Domain errors for the usage ledger. Storage failures are distinct from
// entitlement denials so callers never misreport a database outage as
// "limit exceeded".
var (
	ErrFeatureNotDefined   = errors.New("usage: feature not defined in registry")
	ErrFeatureNotCountable = errors.New("usage: feature is not a countable limit")
	ErrFailedToTrackUsage  = errors.New("usage: failed to persist usage change")
	ErrFailedToCountUsage  = errors.New("usage: failed to count current usage")
	ErrNoCheckRegistered   = errors.New("usage: no entitlement check registered")
)
