// Package store provides SQLite-backed storage for recpurge.
//
// A store database holds two things:
//   - The run journal: one runs row per execution, one outcomes row per id
//   - Sandbox record tables: one table per custom record type, used by the
//     Sandbox backend to rehearse a purge without a live NetSuite account
//
// # Journal Ordering
//
// Outcome queries order by seq ASC, record_id ASC COLLATE BINARY, where seq is
// the 1-based position of the id in the enumeration query result. Runs list
// newest first by started_at, then id.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
