package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and development. The single
// mutex stands in for the database transaction the pgx store uses.
type MemoryStore struct {
	mu      sync.Mutex
	buckets []*Bucket
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func sameKey(b *Bucket, key BucketKey) bool {
	if b.OrganizationID != key.OrganizationID || b.Feature != key.Feature || b.Period != key.Period {
		return false
	}
	if (b.WorkspaceID == nil) != (key.WorkspaceID == nil) {
		return false
	}
	return b.WorkspaceID == nil || *b.WorkspaceID == *key.WorkspaceID
}

// Current returns copies of the buckets covering now.
func (s *MemoryStore) Current(ctx context.Context, key BucketKey, now time.Time) ([]Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Bucket
	for _, b := range s.buckets {
		if sameKey(b, key) && b.Span.CurrentAt(now) {
			result = append(result, *b)
		}
	}
	return result, nil
}

// Increment adds amount to the current bucket, creating it when absent.
func (s *MemoryStore) Increment(ctx context.Context, key BucketKey, span Span, amount int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b := s.findCurrent(key, now); b != nil {
		b.Used += amount
		return nil
	}

	s.buckets = append(s.buckets, &Bucket{
		ID:             uuid.New(),
		OrganizationID: key.OrganizationID,
		WorkspaceID:    key.WorkspaceID,
		Feature:        key.Feature,
		Period:         key.Period,
		Span:           span,
		Used:           amount,
	})
	return nil
}

// Decrement subtracts amount from the current bucket, flooring at zero.
func (s *MemoryStore) Decrement(ctx context.Context, key BucketKey, amount int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.findCurrent(key, now)
	if b == nil || b.Used < amount {
		return nil
	}
	b.Used -= amount
	return nil
}

// AllBuckets returns copies of every bucket including stale periods.
// Test helper for inspecting the historical record.
func (s *MemoryStore) AllBuckets() []Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		result = append(result, *b)
	}
	return result
}

func (s *MemoryStore) findCurrent(key BucketKey, now time.Time) *Bucket {
	for _, b := range s.buckets {
		if sameKey(b, key) && b.Span.CurrentAt(now) {
			return b
		}
	}
	return nil
}
