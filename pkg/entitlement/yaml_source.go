package entitlement

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paisakit/paisakit/pkg/feature"
)

// yamlCatalogSource loads the plan catalog from a YAML file. The catalog is
// seeded and read-mostly, so a file checked into the deployment fits; values
// use the legacy string encoding and are decoded against the registry here,
// at the persistence boundary.
type yamlCatalogSource struct {
	path     string
	registry *feature.Registry
}

// yamlPlan mirrors the on-disk plan shape.
type yamlPlan struct {
	Slug     string            `yaml:"slug"`
	Name     string            `yaml:"name"`
	Price    int64             `yaml:"price"`
	Currency string            `yaml:"currency"`
	Cycle    string            `yaml:"billing_cycle"`
	Active   bool              `yaml:"is_active"`
	Limits   map[string]string `yaml:"limits"`
}

// NewYAMLCatalogSource returns a CatalogSource reading plans from the given
// file. The registry supplies the feature types needed to decode limit values.
func NewYAMLCatalogSource(path string, registry *feature.Registry) CatalogSource {
	if registry == nil {
		panic("entitlement: feature registry is required")
	}
	return &yamlCatalogSource{path: path, registry: registry}
}

// Load parses the YAML catalog into decoded plans.
func (s *yamlCatalogSource) Load(ctx context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var doc struct {
		Plans []yamlPlan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, yp := range doc.Plans {
		if yp.Slug == "" {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("plan with empty slug"))
		}
		if _, exists := plans[yp.Slug]; exists {
			return nil, errors.Join(ErrInvalidCatalog,
				fmt.Errorf("duplicate plan slug %q", yp.Slug))
		}

		limits := make(map[feature.Feature]feature.Value, len(yp.Limits))
		for key, raw := range yp.Limits {
			f := feature.Feature(key)
			def, ok := s.registry.Get(f)
			if !ok {
				return nil, errors.Join(ErrInvalidCatalog,
					fmt.Errorf("plan %s references unknown feature %q", yp.Slug, key))
			}
			v, err := feature.ParseValue(raw, def.Type)
			if err != nil {
				return nil, errors.Join(ErrInvalidCatalog,
					fmt.Errorf("plan %s feature %s: %w", yp.Slug, key, err))
			}
			limits[f] = v
		}

		plans[yp.Slug] = Plan{
			Slug:   yp.Slug,
			Name:   yp.Name,
			Price:  Money{Amount: yp.Price, Currency: yp.Currency},
			Cycle:  BillingCycle(yp.Cycle),
			Active: yp.Active,
			Limits: limits,
		}
	}

	return plans, nil
}
