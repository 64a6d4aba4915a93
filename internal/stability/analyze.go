// Package stability decides whether a (state, diagram) pair is a fixed
// point of the rewrite system, and computes post-hoc health metrics.
package stability

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/crf"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/rewrite"
)

// Verdict names for the termination conditions. A pair is stable when
// ANY condition holds.
const (
	VerdictNoRewrites         = "no_rewrites"
	VerdictTransportInvariant = "transport_invariant"
	VerdictIdentityOnly       = "identity_only"
	VerdictLoopConverged      = "loop_converged"
)

// DefaultTolerance bounds the label-change ratio accepted as converged.
const DefaultTolerance = 1e-6

// Condition is one satisfied termination condition.
type Condition struct {
	Verdict string
	Message string
}

// Report is the outcome of one Analyze call.
type Report struct {
	Stable     bool
	Conditions []Condition
	Message    string
}

// Analyze checks the four termination conditions against the pair and
// reports which ones hold. OR semantics: one satisfied condition makes
// the pair stable.
func Analyze(pkg *ir.Package, stateID, diagramID string, tolerance float64) (Report, error) {
	state := pkg.FindState(stateID)
	diagram := pkg.FindDiagram(diagramID)
	if state == nil || diagram == nil {
		return Report{}, fmt.Errorf("state %s or diagram %s not found", stateID, diagramID)
	}
	csi := pkg.FindCSI(state.CSIID)
	if csi == nil {
		return Report{}, fmt.Errorf("csi %s not found", state.CSIID)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var conditions []Condition

	if ok, msg := noAdmissibleRewrites(pkg, *state, diagram, csi); ok {
		conditions = append(conditions, Condition{Verdict: VerdictNoRewrites, Message: msg})
	}
	if ok, msg := invariantUnderTransport(diagram, state, csi, pkg.Constraints); ok {
		conditions = append(conditions, Condition{Verdict: VerdictTransportInvariant, Message: msg})
	}
	if ok, msg := onlyIdentityRewrites(pkg.RewriteRules); ok {
		conditions = append(conditions, Condition{Verdict: VerdictIdentityOnly, Message: msg})
	}
	if ok, msg := loopConverged(state, tolerance); ok {
		conditions = append(conditions, Condition{Verdict: VerdictLoopConverged, Message: msg})
	}

	r := Report{Stable: len(conditions) > 0, Conditions: conditions}
	if r.Stable {
		r.Message = fmt.Sprintf("stable (%d condition(s) met)", len(conditions))
	} else {
		r.Message = "not stable (no termination conditions met)"
	}
	return r, nil
}

// noAdmissibleRewrites holds when no authorized rule matches anything.
func noAdmissibleRewrites(pkg *ir.Package, state ir.State, d *ir.Diagram, csi *ir.CSI) (bool, string) {
	for _, rule := range pkg.RewriteRules {
		auth := crf.AuthorizeRewrite(pkg.Constraints, state, d, csi, rule)
		if !auth.Allowed {
			continue
		}
		matches, err := rewrite.FindMatches(d, rule, 1)
		if err != nil {
			// A malformed pattern cannot fire; it does not block
			// termination.
			continue
		}
		if len(matches) > 0 {
			return false, fmt.Sprintf("rewrite %s is still admissible", rule.ID)
		}
	}
	return true, "no admissible rewrites remain"
}

// invariantUnderTransport holds when transport nodes sit inside the
// admissible region and every previously admissible element is still
// admissible under freshly computed labels. New elements are allowed:
// a transport that adds structure is not a violation. Without any
// transport node the condition is not applicable and cannot terminate
// a run on its own.
func invariantUnderTransport(d *ir.Diagram, state *ir.State, csi *ir.CSI, constraints []ir.Constraint) (bool, string) {
	var transports []string
	for i := range d.Nodes {
		if d.Nodes[i].Op == ir.OpTransport {
			transports = append(transports, d.Nodes[i].ID)
		}
	}
	if len(transports) == 0 {
		return false, "no transport operations present"
	}

	scratch := state.Clone()
	computed := crf.AssignLabels(constraints, crf.EvalContext{
		State: &scratch, Diagram: d, CSI: csi,
	})

	for _, id := range transports {
		if computed[id] == ir.TernaryN {
			return false, fmt.Sprintf("transport node %s is excluded from the admissible region", id)
		}
	}
	for id, label := range state.INULabels {
		if label == ir.TernaryI && computed[id] != ir.TernaryI {
			return false, fmt.Sprintf("previously admissible element %s is no longer admissible", id)
		}
	}
	return true, "admissible region invariant under transport"
}

// onlyIdentityRewrites holds when every rule rewrites a pattern to
// itself. Vacuously true for an empty rule set.
func onlyIdentityRewrites(rules []ir.RewriteRule) (bool, string) {
	for _, rule := range rules {
		if !rule.IsIdentity() {
			return false, fmt.Sprintf("non-identity rewrite %s present", rule.ID)
		}
	}
	return true, "only identity rewrites authorized"
}

// loopConverged holds when the label-change ratio between the two most
// recent recorded label maps is below tolerance. Only elements present
// in both snapshots are compared: ids a rewrite created or removed are
// structural churn, not label movement.
func loopConverged(state *ir.State, tolerance float64) (bool, string) {
	n := len(state.LabelHistory)
	if n < 2 {
		return false, "insufficient label history for convergence check"
	}
	prev, curr := state.LabelHistory[n-2], state.LabelHistory[n-1]

	shared := 0
	changes := 0
	for k, prevLabel := range prev {
		currLabel, ok := curr[k]
		if !ok {
			continue
		}
		shared++
		if prevLabel != currLabel {
			changes++
		}
	}
	if shared == 0 {
		return false, "no persistent elements to compare"
	}
	if changes == 0 {
		return true, "loop has fully converged (no changes)"
	}
	ratio := float64(changes) / float64(shared)
	if ratio < tolerance {
		return true, fmt.Sprintf("loop converged (change ratio %.6f)", ratio)
	}
	return false, fmt.Sprintf("loop not converged (change ratio %.6f)", ratio)
}
