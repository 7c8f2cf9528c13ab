package feature

// AggregationRule is the function used to combine a feature's limit across
// multiple simultaneously active plans.
type AggregationRule uint8

const (
	// Maximum takes the highest limit among the active plans. Default.
	Maximum AggregationRule = iota
	// Additive sums limits across the active plans (stacking add-on plans).
	Additive
)

// aggregationRules is the explicit per-feature classification. Misclassifying
// a feature silently changes billing semantics, so every metered feature is
// listed here even when it carries the default rule. Features absent from the
// table aggregate with Maximum.
var aggregationRules = map[Feature]AggregationRule{
	FeatureMonthlyVisits: Additive,
	FeatureMonthlyEmails: Additive,

	FeatureTeamMembers:             Maximum,
	FeatureWorkspaces:              Maximum,
	FeatureConnectionsPerWorkspace: Maximum,
	FeatureAPIRateLimit:            Maximum,
	FeatureDataRetentionDays:       Maximum,
}

// RuleFor returns the aggregation rule for a feature.
func RuleFor(f Feature) AggregationRule {
	if rule, ok := aggregationRules[f]; ok {
		return rule
	}
	return Maximum
}

// Aggregate combines plan limits according to the feature's rule.
// Unlimited dominates regardless of rule. The second return value is false
// when no plan contributes a limit.
func Aggregate(f Feature, limits []int64) (int64, bool) {
	if len(limits) == 0 {
		return 0, false
	}

	for _, n := range limits {
		if n == Unlimited {
			return Unlimited, true
		}
	}

	switch RuleFor(f) {
	case Additive:
		var sum int64
		for _, n := range limits {
			sum += n
		}
		return sum, true
	default:
		maxLimit := limits[0]
		for _, n := range limits[1:] {
			if n > maxLimit {
				maxLimit = n
			}
		}
		return maxLimit, true
	}
}
