package feature_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisakit/paisakit/pkg/feature"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("loads default definitions", func(t *testing.T) {
		t.Parallel()

		reg, err := feature.NewRegistry(ctx, feature.NewInMemSource(feature.DefaultDefinitions()))
		require.NoError(t, err)

		def, ok := reg.Get(feature.FeatureTeamMembers)
		require.True(t, ok)
		assert.Equal(t, feature.TypeLimit, def.Type)
		assert.Equal(t, feature.ScopeOrganization, def.TrackingScope)
		assert.Equal(t, feature.PeriodLifetime, def.Period)
	})

	t.Run("rejects key mismatch", func(t *testing.T) {
		t.Parallel()

		defs := map[feature.Feature]feature.Definition{
			"a": {Feature: "b", Type: feature.TypeBoolean, TrackingScope: feature.ScopeOrganization, Period: feature.PeriodLifetime, Active: true},
		}
		_, err := feature.NewRegistry(ctx, feature.NewInMemSource(defs))
		require.Error(t, err)
		assert.True(t, errors.Is(err, feature.ErrInvalidDefinition))
	})

	t.Run("rejects unknown period", func(t *testing.T) {
		t.Parallel()

		defs := map[feature.Feature]feature.Definition{
			"a": {Feature: "a", Type: feature.TypeLimit, TrackingScope: feature.ScopeOrganization, Period: "fortnightly", Active: true},
		}
		_, err := feature.NewRegistry(ctx, feature.NewInMemSource(defs))
		require.Error(t, err)
		assert.True(t, errors.Is(err, feature.ErrInvalidDefinition))
	})

	t.Run("inactive features are absent", func(t *testing.T) {
		t.Parallel()

		defs := map[feature.Feature]feature.Definition{
			"sunset": {Feature: "sunset", Type: feature.TypeBoolean, TrackingScope: feature.ScopeOrganization, Period: feature.PeriodLifetime, Active: false},
		}
		reg, err := feature.NewRegistry(ctx, feature.NewInMemSource(defs))
		require.NoError(t, err)

		assert.False(t, reg.Defined("sunset"))
		assert.Empty(t, reg.Features())
	})
}
