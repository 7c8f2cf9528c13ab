// Package billing wires the feature registry, plan catalog, entitlement
// resolver, usage ledger and payment gateway into one service.
//
// The resolver and the ledger depend on each other at runtime (usage reads
// feed limit checks, limit checks gate consumption); the service breaks the
// cycle with function injection so the packages stay independent.
package billing
