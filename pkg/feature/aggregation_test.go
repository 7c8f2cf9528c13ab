package feature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paisakit/paisakit/pkg/feature"
)

func TestRuleFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, feature.Additive, feature.RuleFor(feature.FeatureMonthlyVisits))
	assert.Equal(t, feature.Additive, feature.RuleFor(feature.FeatureMonthlyEmails))
	assert.Equal(t, feature.Maximum, feature.RuleFor(feature.FeatureTeamMembers))
	assert.Equal(t, feature.Maximum, feature.RuleFor(feature.FeatureAPIRateLimit))

	// Unclassified features default to Maximum.
	assert.Equal(t, feature.Maximum, feature.RuleFor(feature.Feature("never_heard_of_it")))
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		feature feature.Feature
		limits  []int64
		want    int64
		wantOK  bool
	}{
		{
			name:    "maximum takes highest",
			feature: feature.FeatureTeamMembers,
			limits:  []int64{10, 15},
			want:    15,
			wantOK:  true,
		},
		{
			name:    "additive sums",
			feature: feature.FeatureMonthlyVisits,
			limits:  []int64{10, 15},
			want:    25,
			wantOK:  true,
		},
		{
			name:    "unlimited dominates maximum",
			feature: feature.FeatureTeamMembers,
			limits:  []int64{10, feature.Unlimited, 3},
			want:    feature.Unlimited,
			wantOK:  true,
		},
		{
			name:    "unlimited dominates additive",
			feature: feature.FeatureMonthlyVisits,
			limits:  []int64{100, feature.Unlimited},
			want:    feature.Unlimited,
			wantOK:  true,
		},
		{
			name:    "single plan",
			feature: feature.FeatureWorkspaces,
			limits:  []int64{3},
			want:    3,
			wantOK:  true,
		},
		{
			name:    "no contributing plans",
			feature: feature.FeatureWorkspaces,
			limits:  nil,
			want:    0,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := feature.Aggregate(tt.feature, tt.limits)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
