// Package store provides SQLite-backed durable storage for packages and
// engine runs.
//
// Three tables:
//   - Packages: content-addressed package documents
//   - Rewrite log: one append-only record per attempted rewrite
//   - Mixer telemetry: one record per observed mixer tick
//
// # Patterns
//
// Logical time: all ordering uses seq INTEGER from the engine's logical
// clock, never timestamps, so replay is deterministic regardless of
// wall time.
//
// Deterministic reads: every query orders by seq ASC, id ASC COLLATE
// BINARY, ensuring identical results across replays.
//
// Idempotent appends: UNIQUE(run_token, seq) with ON CONFLICT DO
// NOTHING makes re-running a crashed run safe.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// All content-addressed ids come from internal/ir/hash.go: RFC 8785
// canonical JSON hashed with SHA-256 under a domain prefix.
package store
