// Package harness provides a conformance testing framework for the
// rewrite engine.
//
// A scenario is a YAML file naming a CUE package directory, a
// state/diagram pair, and a list of assertions. Running a scenario
// compiles the package, drives the pair to a fixed point with a fresh
// in-memory store, and evaluates the assertions against the recorded
// rewrite trace and the final stability verdicts.
//
// Determinism: every scenario runs with a fixed run token and a fresh
// clock, rule evaluation follows declaration order, and trace
// snapshots serialize through canonical JSON. The same scenario
// therefore produces byte-identical golden output on every run.
package harness
