package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paisakit/paisakit/pkg/feature"
)

// BucketKey identifies a family of usage buckets. WorkspaceID is nil for
// organization-scoped metering.
type BucketKey struct {
	OrganizationID uuid.UUID
	WorkspaceID    *uuid.UUID
	Feature        feature.Feature
	Period         feature.Period
}

// Bucket is one persisted consumption counter. Lifetime buckets are unique
// per key; bounded periods get a fresh bucket per window. Stale buckets are
// never deleted — they are the historical usage record.
type Bucket struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	WorkspaceID    *uuid.UUID
	Feature        feature.Feature
	Period         feature.Period
	Span           Span
	Used           int64
}

// Store persists usage buckets. Increment must be transactional with an
// atomic counter update so two concurrent consumers cannot interleave a
// read-modify-write past the limit; see the pgx implementation.
type Store interface {
	// Current returns buckets for the key that cover now. Lifetime keys
	// return the single unique bucket; bounded keys return buckets whose
	// window end is still in the future.
	Current(ctx context.Context, key BucketKey, now time.Time) ([]Bucket, error)

	// Increment adds amount to the bucket covering now, creating it with
	// the given span when absent.
	Increment(ctx context.Context, key BucketKey, span Span, amount int64, now time.Time) error

	// Decrement subtracts amount from the bucket covering now, flooring at
	// zero. A decrement larger than the current counter is a silent no-op:
	// compensating actions must never error or drive the counter negative.
	Decrement(ctx context.Context, key BucketKey, amount int64, now time.Time) error
}

// MembershipCounter supplies the organization directory counts that feed the
// team_members special case.
type MembershipCounter interface {
	// CountMembers returns the number of organization membership rows.
	CountMembers(ctx context.Context, orgID uuid.UUID) (int64, error)

	// CountPendingInvitations returns pending, non-expired invitations.
	CountPendingInvitations(ctx context.Context, orgID uuid.UUID) (int64, error)
}
