// Package identity derives per-agent baselines and verifies them.
//
// A baseline is a pure function of (seed, depth): a 63-bit root taken from a
// domain-separated SHA-256 of the inputs, and a chain of consecutive squares
// chain[i] = (root+i)^2 held as 256-bit integers. Consecutive squares are
// linked by the gnomon identity
//
//	a + a^2 + (a+1) = (a+1)^2
//
// so each link can be checked with two additions. Verifier uses this to
// check a chain incrementally as elements arrive; VerifyFull recomputes the
// chain from the seed and is the reference the incremental path must agree
// with.
//
// Baselines are immutable. Two agents that derive from the same inputs hold
// identical chains and identical fingerprints, which is what the handshake
// compares.
//
// Nothing here is hardened against an adversary who controls the seed.
package identity
