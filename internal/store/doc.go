// Package store provides SQLite-backed storage for SCRAWL runs.
//
// Each run is written once, in a single transaction, with everything needed
// to audit or replay it:
//   - runs: the program (as a SYNAPSE frame), the acting agent, the outcome
//     and the digest of the trace
//   - trace_events: the run's audit events in emission order
//   - proposals: the consensus table as the run left it
//
// Writes are idempotent: writing a run whose id is already stored is a
// no-op. Events are always read back ordered by seq; runs by creation time,
// ties broken by id.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: events and proposals cannot outlive their run
package store
