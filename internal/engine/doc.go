// Package engine drives rewrite runs.
//
// A run takes a package, a state, and a diagram, and repeatedly fires
// the first authorized rewrite until the stability analyzer reports a
// fixed point or the step quota runs out. Every attempt, applied or
// rejected, is appended to the audit log with its fingerprints, so a
// finished run can be replayed and verified byte for byte.
//
// Determinism rules:
//   - Rules are evaluated in declaration order; match sites in node
//     order. No randomness anywhere in the loop.
//   - Every record is stamped with a seq from the monotonic logical
//     clock, never a wall-clock timestamp.
//   - The loop is single-threaded. Run must be called from exactly one
//     goroutine per Runner.
package engine
