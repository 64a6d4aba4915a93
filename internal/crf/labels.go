package crf

import (
	"fmt"
	"strings"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// Violation is one failed constraint with enough context for conflict
// resolution to act on it.
type Violation struct {
	ConstraintID string
	Scope        string
	Kind         ir.ConstraintKind
	Detail       string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s failed: %s", v.ConstraintID, v.Detail)
}

// nodeScope extracts the node id from a "node:<id>" scope selector.
func nodeScope(scope string) (string, bool) {
	if id, ok := strings.CutPrefix(scope, "node:"); ok && id != "" {
		return id, true
	}
	return "", false
}

// globalScope reports whether the scope covers the whole diagram.
func globalScope(scope string) bool {
	return scope == ir.ScopeDiagram || scope == ir.ScopeCSI
}

// AssignLabels labels every node and edge of the diagram with I, N,
// or U.
//
// Global (diagram/csi-scoped) hard constraints are evaluated once
// against the whole diagram. The first failing one marks every element
// in its scope N and short-circuits all remaining work for that scope;
// this is what keeps labeling near-linear instead of the
// node x constraint x pattern blow-up. With no global violation,
// node-scoped constraints are evaluated only for their own node.
//
// Label priority per element: hard violation (N) beats hard pass (I)
// beats the default (U). Heuristic constraints never touch labels.
func AssignLabels(constraints []ir.Constraint, ctx EvalContext) map[string]ir.Ternary {
	labels := make(map[string]ir.Ternary, len(ctx.Diagram.Nodes)+len(ctx.Diagram.Edges))
	for i := range ctx.Diagram.Nodes {
		labels[ctx.Diagram.Nodes[i].ID] = ir.TernaryU
	}
	for i := range ctx.Diagram.Edges {
		labels[ctx.Diagram.Edges[i].ID] = ir.TernaryU
	}

	// Phase 1: global constraints, hard ones only. Heuristics cannot
	// move labels in either direction.
	globalAssertI := false
	for i := range constraints {
		c := &constraints[i]
		if !globalScope(c.Scope) || c.Kind != ir.KindHard {
			continue
		}
		pred, ok := LookupPredicate(c.Predicate)
		if !ok {
			continue
		}
		pass, _ := pred(ctx)
		if !pass {
			for id := range labels {
				labels[id] = ir.TernaryN
			}
			return labels
		}
		globalAssertI = true
	}
	if globalAssertI {
		for id := range labels {
			labels[id] = ir.TernaryI
		}
	}

	// Phase 2: node-scoped constraints refine individual elements.
	for i := range constraints {
		c := &constraints[i]
		nodeID, ok := nodeScope(c.Scope)
		if !ok || c.Kind != ir.KindHard {
			continue
		}
		if _, exists := labels[nodeID]; !exists {
			continue
		}
		pred, ok := LookupPredicate(c.Predicate)
		if !ok {
			continue
		}
		if pass, _ := pred(ctx); pass {
			if labels[nodeID] != ir.TernaryN {
				labels[nodeID] = ir.TernaryI
			}
		} else {
			labels[nodeID] = ir.TernaryN
		}
	}

	return labels
}

// AssignLabelsFor labels only the given element ids, with the same
// priority rules as AssignLabels. Global hard constraints are still
// evaluated once each, but no label map is built for elements outside
// ids and node-scoped constraints on other nodes are skipped entirely.
// This is the relabel path for a rewrite, which touches a handful of
// elements in a large diagram.
func AssignLabelsFor(constraints []ir.Constraint, ctx EvalContext, ids []string) map[string]ir.Ternary {
	labels := make(map[string]ir.Ternary, len(ids))
	for _, id := range ids {
		labels[id] = ir.TernaryU
	}

	globalAssertI := false
	for i := range constraints {
		c := &constraints[i]
		if !globalScope(c.Scope) || c.Kind != ir.KindHard {
			continue
		}
		pred, ok := LookupPredicate(c.Predicate)
		if !ok {
			continue
		}
		pass, _ := pred(ctx)
		if !pass {
			for id := range labels {
				labels[id] = ir.TernaryN
			}
			return labels
		}
		globalAssertI = true
	}
	if globalAssertI {
		for id := range labels {
			labels[id] = ir.TernaryI
		}
	}

	for i := range constraints {
		c := &constraints[i]
		nodeID, ok := nodeScope(c.Scope)
		if !ok || c.Kind != ir.KindHard {
			continue
		}
		if _, wanted := labels[nodeID]; !wanted {
			continue
		}
		pred, ok := LookupPredicate(c.Predicate)
		if !ok {
			continue
		}
		if pass, _ := pred(ctx); pass {
			if labels[nodeID] != ir.TernaryN {
				labels[nodeID] = ir.TernaryI
			}
		} else {
			labels[nodeID] = ir.TernaryN
		}
	}

	return labels
}

// EvaluateConstraints runs every constraint once and partitions the
// outcomes: hard failures become violations, heuristic failures and
// unknown predicates become warnings. Nothing is dropped.
func EvaluateConstraints(constraints []ir.Constraint, ctx EvalContext) ([]Violation, []string) {
	var violations []Violation
	var warnings []string

	for i := range constraints {
		c := &constraints[i]
		pred, ok := LookupPredicate(c.Predicate)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown predicate %q in constraint %s", c.Predicate, c.ID))
			continue
		}
		pass, detail := pred(ctx)
		if pass {
			continue
		}
		if c.Kind == ir.KindHard {
			violations = append(violations, Violation{
				ConstraintID: c.ID,
				Scope:        c.Scope,
				Kind:         c.Kind,
				Detail:       detail,
			})
		} else {
			warnings = append(warnings, fmt.Sprintf("%s failed: %s", c.ID, detail))
		}
	}
	return violations, warnings
}

// CheckAdmissible reports whether the state's labels permit rewriting.
// Any N blocks; U does not, since undetermined elements are still open.
func CheckAdmissible(state *ir.State) (bool, string) {
	if state.INULabels == nil {
		return true, "no labels assigned; nothing excluded"
	}
	unresolved := 0
	for id, label := range state.INULabels {
		switch label {
		case ir.TernaryN:
			return false, fmt.Sprintf("element %s is N (excluded)", id)
		case ir.TernaryU:
			unresolved++
		}
	}
	if unresolved > 0 {
		return true, fmt.Sprintf("admissible with %d unresolved (U) elements", unresolved)
	}
	return true, "all elements admissible (I)"
}
