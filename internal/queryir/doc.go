// Package queryir defines a small, backend-independent filter IR over
// the store's audit tables.
//
// The IR is a sealed set of types: external packages can build and
// validate queries but never extend the grammar, so every backend
// compiler can switch exhaustively. The portable fragment is
// deliberately narrow: explicit column lists, equality predicates, and
// conjunction. No OR, no subqueries, no SQL functions. Narrowness is
// what keeps every backend's results identical.
package queryir
