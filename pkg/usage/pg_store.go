package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the PostgreSQL-backed Store over a pgx pool.
//
// Increment wraps find-or-create-then-increment in a transaction with a
// row-level lock and an atomic counter update, closing the race between a
// limit pre-check and the commit. Exactness under extreme concurrency is
// best-effort given the coarse transaction, not a consensus protocol.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PostgreSQL-backed usage store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("usage: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

// Current returns buckets for the key that cover now.
func (s *PGStore) Current(ctx context.Context, key BucketKey, now time.Time) ([]Bucket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, workspace_id, feature, period_type,
		       period_starts_at, period_ends_at, current_usage
		FROM usage_tracking
		WHERE organization_id = $1
		  AND feature = $2
		  AND period_type = $3
		  AND (workspace_id = $4 OR (workspace_id IS NULL AND $4::uuid IS NULL))
		  AND (period_ends_at IS NULL OR period_ends_at > $5)`,
		key.OrganizationID, key.Feature, key.Period, key.WorkspaceID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.ID, &b.OrganizationID, &b.WorkspaceID, &b.Feature,
			&b.Period, &b.Span.StartsAt, &b.Span.EndsAt, &b.Used); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// Increment adds amount to the current bucket inside a transaction, creating
// the bucket when the period has no row yet.
func (s *PGStore) Increment(ctx context.Context, key BucketKey, span Span, amount int64, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	id, err := s.lockCurrent(ctx, tx, key, now)
	switch {
	case err == nil:
		// Atomic counter update: never read-modify-write in application code.
		if _, err := tx.Exec(ctx,
			`UPDATE usage_tracking SET current_usage = current_usage + $1, updated_at = $2 WHERE id = $3`,
			amount, now, id); err != nil {
			return err
		}
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
			INSERT INTO usage_tracking
				(id, organization_id, workspace_id, feature, period_type,
				 period_starts_at, period_ends_at, current_usage, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			uuid.New(), key.OrganizationID, key.WorkspaceID, key.Feature, key.Period,
			span.StartsAt, span.EndsAt, amount, now); err != nil {
			return err
		}
	default:
		return err
	}

	return tx.Commit(ctx)
}

// Decrement subtracts amount from the current bucket. The guard in the WHERE
// clause makes an oversized decrement a no-op instead of a negative counter.
func (s *PGStore) Decrement(ctx context.Context, key BucketKey, amount int64, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id, err := s.lockCurrent(ctx, tx, key, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE usage_tracking
		SET current_usage = current_usage - $1, updated_at = $2
		WHERE id = $3 AND current_usage >= $1`,
		amount, now, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// lockCurrent finds the current bucket row and locks it for the transaction.
func (s *PGStore) lockCurrent(ctx context.Context, tx pgx.Tx, key BucketKey, now time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM usage_tracking
		WHERE organization_id = $1
		  AND feature = $2
		  AND period_type = $3
		  AND (workspace_id = $4 OR (workspace_id IS NULL AND $4::uuid IS NULL))
		  AND (period_ends_at IS NULL OR period_ends_at > $5)
		ORDER BY period_ends_at DESC NULLS FIRST
		LIMIT 1
		FOR UPDATE`,
		key.OrganizationID, key.Feature, key.Period, key.WorkspaceID, now).Scan(&id)
	return id, err
}
