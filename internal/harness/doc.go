// Package harness runs SCRAWL conformance scenarios.
//
// A scenario is a YAML file holding a rosetta program, the register state it
// starts from and what the run must produce:
//
//	name: supermajority
//	description: "Two of three approve under a 0.66 quorum"
//	agent: 0
//	setup:
//	  scalars:   [{reg: R0, value: 7}]
//	  baselines: [{reg: CR0, seed: 0xBEEF, depth: 8, tamper: 3}]
//	  tensors:   [{reg: TR0, shape: [2, 2], data: [1, 0, 0, 1]}]
//	program: |
//	  consensus.propose(id=1, payload=R0, agents=[0, 1, 2])
//	  ...
//	expect:
//	  error: ""              # runtime error code, empty for success
//	  halted: true
//	  yielded: [1]
//	  registers: {R1: 1}
//	  tensors: {TR1: {shape: [2, 2], data: [1, 0, 0, 1]}}
//	assertions:
//	  - type: trace_contains
//	    event: consensus.tally
//	    message: "-> committed"
//	  - type: proposal_status
//	    proposal: 1
//	    status: committed
//
// # Assertion Types
//
//   - trace_contains: an event with the given domain.event_type appears,
//     optionally with a message substring and an exact severity
//   - trace_count: the event appears exactly count times
//   - trace_order: the events first appear in the given order
//   - proposal_status: the stored proposal ended in status
//
// # Deterministic Testing
//
// Every scenario runs on a fresh VM and a fresh in-memory store, with a
// frozen clock and a run ID derived from the scenario name, so a scenario
// produces byte-identical traces on every run. The trace assertions see is
// read back from the store, so the harness checks persistence too.
package harness
