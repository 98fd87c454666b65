// Package store provides SQLite-backed durable storage for read/unread
// progress and save slots.
//
// Tables:
//   - passed_marks: every (script file, save mark) pair ever passed
//   - save_slots: the latest conductor snapshot filed under a slot name
//
// # Critical Patterns
//
// Logical ordering:
//   - Rows carry a seq INTEGER from a store-local counter, NEVER timestamps
//   - Listing queries ORDER BY seq so output is reproducible
//
// Idempotent writes:
//   - PassMark uses ON CONFLICT DO NOTHING; passing twice is a no-op
//   - WriteSaveSlot replaces the slot's previous snapshot
//
// Canonical snapshots:
//   - Snapshots are stored as canonical JSON (sorted keys, NFC strings)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - One open connection: SQLite has a single writer
package store
