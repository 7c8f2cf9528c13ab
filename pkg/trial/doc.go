// Package trial expires overdue plan trials and warns organizations ahead of
// expiry.
//
// The expiry sweep is the only path that changes a plan attachment's status
// outside of payment verification. Attachments without trial dates are
// grandfathered and never auto-expired. Both sweeps are idempotent and safe
// to re-run.
package trial
