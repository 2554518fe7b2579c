// Package proofs implements the deterministic claim kernel that runs inside the
// proving host: hash primitives, address derivation, compact ECDSA verification,
// the polynomial and identity claim cores, and the ABI encoding of their public
// values.
//
// Every function in this package is pure. Nothing here reads the clock, logs, or
// iterates over maps, because the host replays the same computation when it
// produces a proof and any divergence yields an unverifiable claim.
package proofs
