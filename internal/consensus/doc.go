// Package consensus implements the proposal table and its state machine.
//
// Each proposal moves pending -> committed or pending -> rejected, and
// terminal states are final. Quorum is measured against the full eligible
// set, so an agent that never votes counts against the proposal.
//
// Only malformed requests are errors (a reused proposal id, a threshold
// outside [0,1]). Late votes, ineligible voters, unknown ids and failed
// quorums are ordinary outcomes: they are reported as trace events and, for
// Commit, as the returned result.
package consensus
