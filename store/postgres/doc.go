// Package postgres is the Postgres-backed driver.Store: pgx/v5 for
// connection pooling and transactions, goqu for building the per-feed
// upsert/delete/count statements. It plays the role
// internal/vulnstore/postgres plays for the updater pipeline, generalized
// from a single vulnerability table to the four feed tables this module
// supports.
package postgres
