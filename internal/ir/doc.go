// Package ir provides the core data model for semantic interaction
// diagram (SID) packages.
//
// This package contains type definitions and the structural primitives
// every other internal package builds on. All other internal packages
// import ir; ir imports nothing internal. This ensures ir remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Diagrams are directed acyclic graphs. Acyclicity is verified with
//     an iterative three-color DFS, never recursion, so graph depth is
//     bounded only by available memory, not call-stack size.
//   - Package-load-time facts (DOFs, compartments, CSIs, constraints,
//     rewrite rules) are immutable once loaded. Diagrams and States are
//     superseded by value copies, never mutated in place.
//   - Canonical JSON (RFC 8785) is the ONLY serialization used for
//     content fingerprints. Floats are forbidden in canonical JSON;
//     the numeric field processors never flow through it.
package ir
