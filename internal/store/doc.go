// Package store provides SQLite-backed storage for machine traces.
//
// A trace is an append-only log per session:
//   - Sessions: one recorded run of one machine
//   - Events: transitions, sent frames and deferred drains, keyed by
//     (session_id, seq)
//
// The store records what happened for inspection and golden comparison. It
// never restores machine state.
//
// # Ordering
//
// All ordering uses the seq column (logical clock), never timestamps. Reads
// always ORDER BY seq ASC, so the same run yields the same timeline.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
