package entitlement

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// CatalogSource defines how the plan catalog is loaded.
type CatalogSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// Catalog is the immutable, seeded set of purchasable plans keyed by slug.
type Catalog struct {
	// plans is treated as immutable after initialization for thread safety.
	plans map[string]Plan
}

// NewCatalog loads and validates the plan catalog.
func NewCatalog(ctx context.Context, src CatalogSource) (*Catalog, error) {
	if src == nil {
		panic("entitlement: CatalogSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	if plans == nil {
		plans = make(map[string]Plan)
	}

	if err := validateCatalog(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Plan returns the plan with the given slug.
func (c *Catalog) Plan(slug string) (Plan, bool) {
	plan, ok := c.plans[slug]
	return plan, ok
}

// Slugs returns all plan slugs in sorted order.
func (c *Catalog) Slugs() []string {
	slugs := slices.Collect(maps.Keys(c.plans))
	slices.Sort(slugs)
	return slugs
}

func validateCatalog(plans map[string]Plan) error {
	for slug, plan := range plans {
		if plan.Slug != slug {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan slug mismatch: map key %s != plan.Slug %s", slug, plan.Slug))
		}

		switch plan.Cycle {
		case CycleMonthly, CycleYearly, CycleLifetime:
		default:
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s has unknown billing cycle %q", slug, plan.Cycle))
		}

		if plan.Price.Amount < 0 {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("plan %s has negative price: %d", slug, plan.Price.Amount))
		}
	}
	return nil
}

// inMemCatalogSource implements CatalogSource using an in-memory plan map.
type inMemCatalogSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemCatalogSource returns an in-memory CatalogSource with a deep copy
// of the given plans.
func NewInMemCatalogSource(plans map[string]Plan) CatalogSource {
	plansCopy := make(map[string]Plan, len(plans))
	for slug, plan := range plans {
		plan.Limits = maps.Clone(plan.Limits)
		plansCopy[slug] = plan
	}
	return &inMemCatalogSource{plans: plansCopy}
}

// Load returns a copy of all plans from memory.
func (s *inMemCatalogSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plansCopy := make(map[string]Plan, len(s.plans))
	for slug, plan := range s.plans {
		plan.Limits = maps.Clone(plan.Limits)
		plansCopy[slug] = plan
	}
	return plansCopy, nil
}
