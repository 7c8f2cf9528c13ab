package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paisakit/paisakit/pkg/feature"
)

// PGStore is the PostgreSQL-backed plan store. Override and workspace limit
// values are persisted as text and decoded once at this boundary using the
// registry's feature types.
type PGStore struct {
	pool     *pgxpool.Pool
	registry *feature.Registry
}

// NewPGStore creates a PostgreSQL-backed entitlement store.
func NewPGStore(pool *pgxpool.Pool, registry *feature.Registry) *PGStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	if registry == nil {
		panic("entitlement: feature registry is required")
	}
	return &PGStore{pool: pool, registry: registry}
}

// AttachPlan inserts a plan attachment, assigning an ID if absent.
func (s *PGStore) AttachPlan(ctx context.Context, plan OrganizationPlan) (OrganizationPlan, error) {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO organization_plans
			(id, organization_id, plan_slug, status, is_revoked,
			 trial_start, trial_end, started_at, ends_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		plan.ID, plan.OrganizationID, plan.PlanSlug, plan.Status, plan.Revoked,
		plan.TrialStart, plan.TrialEnd, plan.StartedAt, plan.EndsAt, plan.RevokedAt)
	if err != nil {
		return OrganizationPlan{}, err
	}
	return plan, nil
}

// OrganizationPlans returns all attachments for the organization.
func (s *PGStore) OrganizationPlans(ctx context.Context, orgID uuid.UUID) ([]OrganizationPlan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, plan_slug, status, is_revoked,
		       trial_start, trial_end, started_at, ends_at, revoked_at
		FROM organization_plans
		WHERE organization_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// Override returns the override for (org, feature) or nil.
func (s *PGStore) Override(ctx context.Context, orgID uuid.UUID, f feature.Feature) (*Override, error) {
	var raw string
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT value, expires_at FROM feature_overrides
		WHERE organization_id = $1 AND feature = $2`, orgID, f).Scan(&raw, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	def, ok := s.registry.Get(f)
	if !ok {
		return nil, nil
	}
	value, err := feature.ParseValue(raw, def.Type)
	if err != nil {
		return nil, err
	}

	return &Override{
		OrganizationID: orgID,
		Feature:        f,
		Value:          value,
		ExpiresAt:      expiresAt,
	}, nil
}

// SetOverride upserts an organization override.
func (s *PGStore) SetOverride(ctx context.Context, ov Override) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feature_overrides (organization_id, feature, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, feature)
		DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		ov.OrganizationID, ov.Feature, ov.Value.Encode(), ov.ExpiresAt)
	return err
}

// WorkspaceLimit returns the allocation for (workspace, feature) or nil.
func (s *PGStore) WorkspaceLimit(ctx context.Context, workspaceID uuid.UUID, f feature.Feature) (*WorkspaceLimit, error) {
	var allocated int64
	err := s.pool.QueryRow(ctx, `
		SELECT allocated FROM workspace_limits
		WHERE workspace_id = $1 AND feature = $2`, workspaceID, f).Scan(&allocated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &WorkspaceLimit{
		WorkspaceID: workspaceID,
		Feature:     f,
		Allocated:   allocated,
	}, nil
}

// SetWorkspaceLimit upserts a per-workspace allocation.
func (s *PGStore) SetWorkspaceLimit(ctx context.Context, wl WorkspaceLimit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workspace_limits (workspace_id, feature, allocated)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, feature)
		DO UPDATE SET allocated = EXCLUDED.allocated`,
		wl.WorkspaceID, wl.Feature, wl.Allocated)
	return err
}

// ExpiredTrials returns active, non-revoked attachments whose trial window
// has passed. Rows without trial dates are never reported.
func (s *PGStore) ExpiredTrials(ctx context.Context, now time.Time) ([]OrganizationPlan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, plan_slug, status, is_revoked,
		       trial_start, trial_end, started_at, ends_at, revoked_at
		FROM organization_plans
		WHERE status = 'active' AND is_revoked = FALSE
		  AND trial_end IS NOT NULL AND trial_end < $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// TrialsEndingOn returns active trials whose trial_end falls on the given
// UTC day.
func (s *PGStore) TrialsEndingOn(ctx context.Context, day time.Time) ([]OrganizationPlan, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)

	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, plan_slug, status, is_revoked,
		       trial_start, trial_end, started_at, ends_at, revoked_at
		FROM organization_plans
		WHERE status = 'active' AND is_revoked = FALSE
		  AND trial_end >= $1 AND trial_end < $2`,
		dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlans(rows)
}

// MarkExpired transitions an attachment to expired, revoked state.
func (s *PGStore) MarkExpired(ctx context.Context, planID uuid.UUID, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE organization_plans
		SET status = 'expired', is_revoked = TRUE, revoked_at = $1, ends_at = $1, updated_at = $1
		WHERE id = $2`, now, planID)
	return err
}

func scanPlans(rows pgx.Rows) ([]OrganizationPlan, error) {
	var plans []OrganizationPlan
	for rows.Next() {
		var p OrganizationPlan
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.PlanSlug, &p.Status, &p.Revoked,
			&p.TrialStart, &p.TrialEnd, &p.StartedAt, &p.EndsAt, &p.RevokedAt); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
