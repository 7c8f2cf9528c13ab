// Package usage meters feature consumption in period buckets.
//
// A Ledger records how much of each countable feature an organization (or a
// workspace within it) has consumed in the current period. Periods reset on
// calendar boundaries except yearly windows, which anchor to the
// organization's earliest plan purchase date. Lifetime features never reset.
//
// Consume re-runs the entitlement pre-check immediately before the
// transactional increment, so a limit granted at check time is re-verified at
// commit time. Unconsume compensates rollbacks and deletions without ever
// driving a counter negative.
//
// team_members is special cased: its usage is always organization-wide and is
// derived from membership rows plus pending invitations rather than tracked
// buckets alone.
package usage
