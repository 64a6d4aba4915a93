// Package crf is the constraint resolution framework: it labels
// diagram elements with the ternary I/N/U admissibility state,
// resolves constraint conflicts through pure procedures, and
// authorizes rewrites.
//
// Labeling follows the Non-Forcing invariant: U is the default, a
// failing hard constraint is the only thing that produces N, a passing
// hard constraint is the only thing that produces I, and heuristic
// constraints can never move an element out of U. Absence of evidence
// never proves exclusion.
package crf

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// EvalContext carries the entities a predicate may inspect. CSI may be
// nil when the state is not bound to one.
type EvalContext struct {
	State   *ir.State
	Diagram *ir.Diagram
	CSI     *ir.CSI
}

// PredicateFunc evaluates one named predicate against the context.
// It returns pass/fail and a human-readable detail.
type PredicateFunc func(ctx EvalContext) (bool, string)

// predicates is the registry of known predicate names. Constraints
// referencing an unknown predicate produce a warning, never a silent
// pass or fail.
var predicates = map[string]PredicateFunc{
	"no_cross_csi_interaction":      noCrossCSIInteraction,
	"collapse_irreversible":         collapseIrreversible,
	"no_cycles":                     noCycles,
	"valid_compartment_transitions": validCompartmentTransitions,
}

// LookupPredicate returns the registered predicate for name.
func LookupPredicate(name string) (PredicateFunc, bool) {
	p, ok := predicates[name]
	return p, ok
}

// noCrossCSIInteraction verifies every edge between DOF-bearing nodes
// stays inside the CSI's allowed pair set. No CSI, or a CSI with no
// pair list, disables the check.
func noCrossCSIInteraction(ctx EvalContext) (bool, string) {
	if ctx.CSI == nil || len(ctx.CSI.AllowedPairs) == 0 {
		return true, "no allowed_pairs defined; pair check disabled"
	}

	for i := range ctx.Diagram.Edges {
		e := &ctx.Diagram.Edges[i]
		from := ctx.Diagram.FindNode(e.From)
		to := ctx.Diagram.FindNode(e.To)
		if from == nil || to == nil {
			continue
		}
		for _, fd := range from.DOFRefs {
			for _, td := range to.DOFRefs {
				if !ctx.CSI.AllowsPair(fd, td) {
					return false, fmt.Sprintf("edge %s violates csi pair (%s, %s)", e.ID, fd, td)
				}
			}
		}
	}
	return true, "all edges within csi pairs"
}

// collapseIrreversible verifies every O node carries the irreversible
// flag. A missing flag is a violation, not a default.
func collapseIrreversible(ctx EvalContext) (bool, string) {
	for i := range ctx.Diagram.Nodes {
		n := &ctx.Diagram.Nodes[i]
		if n.Op == ir.OpCollapse && !n.Irreversible {
			return false, fmt.Sprintf("collapse node %s must be marked irreversible", n.ID)
		}
	}
	return true, "all collapse nodes irreversible"
}

// noCycles checks diagram acyclicity with the iterative DFS.
func noCycles(ctx EvalContext) (bool, string) {
	if ctx.Diagram.HasCycle() {
		return false, fmt.Sprintf("diagram %s contains a cycle", ctx.Diagram.ID)
	}
	return true, "no cycles detected"
}

// validCompartmentTransitions verifies every T node names a target
// compartment in its metadata.
func validCompartmentTransitions(ctx EvalContext) (bool, string) {
	for i := range ctx.Diagram.Nodes {
		n := &ctx.Diagram.Nodes[i]
		if n.Op != ir.OpTransport {
			continue
		}
		if n.Meta == nil || n.Meta.TargetCompartment == "" {
			return false, fmt.Sprintf("transport node %s missing target_compartment", n.ID)
		}
	}
	return true, "all transport nodes valid"
}
