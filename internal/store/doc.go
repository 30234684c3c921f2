// Package store keeps indexed documents in SQLite or PostgreSQL and runs
// compiled backend queries against them.
//
// # Schema
//
//   - documents: one row per url and ipath, keyed by a UUIDv7 id and a
//     content hash of the url and ipath (ir.DocumentKey)
//   - postings: one row per indexed word occurrence or boolean value,
//     with its field and position
//
// # Deterministic Results
//
// Searches order by document id with a bytewise collation. Ids are UUIDv7,
// so results come back in indexing order on every run.
//
// # Database Configuration
//
// SQLite (both the pure Go and the cgo driver):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL connects through pgx and records its schema version in the
// schema_version table.
package store
