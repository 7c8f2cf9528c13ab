// Package entitlement resolves feature availability and effective limits for
// organizations from the plan catalog, plan attachments and operator
// overrides.
//
// Resolution precedence:
//
//  1. An active, non-expired organization override wins outright and bypasses
//     plan aggregation.
//  2. Otherwise limits from every currently-active plan attachment combine
//     per the feature's aggregation rule (additive features sum, maximum
//     features take the highest value); an unlimited value from any plan
//     dominates.
//
// A plan attachment is currently active when its status is active, it is not
// revoked, and — if it carries trial dates — the clock is within the trial
// window. HasActivePlan deliberately ignores trial dates: status transitions
// happen only through the trial expiry sweep or payment webhooks, never by
// date comparison alone.
//
// Results are cached read-through with a short TTL and invalidated
// synchronously by the usage ledger on every consume/unconsume, so staleness
// is bounded by the TTL even if invalidation is lost to a crash.
package entitlement
