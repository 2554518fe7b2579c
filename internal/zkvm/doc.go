// Package zkvm models the boundary between a proving host and the guest
// programs it runs: an ordered input stream, a public values buffer that the
// guest commits to, and a registry of programs addressed by name.
package zkvm
