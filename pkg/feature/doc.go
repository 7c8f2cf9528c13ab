// Package feature defines the canonical feature registry and the typed
// entitlement values used across the billing core.
//
// Every feature referenced by a plan limit or an organization override must
// have a registry entry. The registry is the single authority for a feature's
// type (boolean or limit), tracking scope (organization or workspace) and
// reset period; persisted limit rows carry values only, eliminating the
// drift risk of duplicated type columns.
//
// Values use a tagged union decoded once at the persistence boundary:
//
//	v, err := feature.ParseValue("-1", feature.TypeLimit)
//	v.IsUnlimited() // true
//
// The aggregation rule table classifies how each countable feature combines
// across multiple simultaneously active plans: additive features sum,
// maximum features (the default) take the highest value, and an unlimited
// value from any plan dominates both rules.
package feature
