// Package payment provides gateway adapters for the Nepali payment
// providers eSewa, Khalti and Fonepay, plus a configurable mock.
//
// Each adapter normalizes its provider's initiate and verify flows into the
// Gateway interface. The billing service consumes only a verified purchase
// result; gateway protocol details (form signing, status polling, checksum
// schemes) stay inside this package.
package payment
