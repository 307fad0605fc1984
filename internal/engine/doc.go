// Package engine implements the SCRAWL virtual machine.
//
// A VM owns one register file, one proposal table and one trace log, and
// runs instruction sequences against them with Execute.
//
// ARCHITECTURE:
//
// Fetch-Decode-Dispatch Loop:
// Execute walks the program strictly in order. Each instruction's operand
// shape is checked against the opcode table, then the instruction is handed
// to the handler registered for its opcode. There are no branches, so every
// run terminates after at most len(program) steps.
//
// Handlers:
//   - exec: halt, yield, nop, load, agent
//   - identity: derive, verify, fingerprint, handshake
//   - consensus: propose, quorum, vote, commit
//   - tensor/attention: norm, compose, scale, route, self
//
// Handlers read and write registers, mutate the proposal table and append
// trace events. They never touch wall-clock time or global state.
//
// Failure Model:
// Three fault kinds abort a run: MALFORMED_INSTRUCTION, INVALID_PARAMETER
// and DUPLICATE_PROPOSAL. A fault emits one ERROR event in the "engine"
// domain and Execute returns a *RuntimeError with no result. Registers keep
// whatever the instructions before the fault wrote.
//
// Everything else (quorum not met, late or ineligible votes, handshake
// mismatch) is an ordinary outcome recorded in registers and trace events.
//
// Concurrency:
// Execute holds a per-VM mutex for the whole run. Distinct VMs share nothing.
package engine
