// Package trace is the audit log shared by every opcode handler.
//
// A Log is an append-only buffer of severity-tagged events. Each event is
// stamped from a logical Clock so that sequence order is emission order,
// which within one run is instruction order. Hooks observe events
// synchronously at append time, in registration order, on the emitting
// goroutine. A hook that panics is not recovered.
//
// Audit events are not diagnostics: operational logging goes through
// log/slog, audit records go through a Log.
package trace
