// Package pg provides PostgreSQL connectivity: a retrying pool constructor,
// goose migrations bridged from pgx, a health probe, and helpers for
// classifying common query errors.
package pg
