package crf

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// Authorization is the outcome of a rewrite authorization check. State
// is the (possibly label-initialized) state the rewrite should proceed
// from; the caller's state is never mutated.
type Authorization struct {
	Allowed  bool
	State    ir.State
	Errors   []string
	Warnings []string
}

// AuthorizeRewrite decides whether the rule may fire against the
// (state, diagram) pair. Labels are lazily initialized on a copy if
// the state arrives without them; callers must never assume a state
// has labels.
func AuthorizeRewrite(constraints []ir.Constraint, state ir.State, d *ir.Diagram, csi *ir.CSI, rule ir.RewriteRule) Authorization {
	next := state.Clone()
	ctx := EvalContext{State: &next, Diagram: d, CSI: csi}

	if next.INULabels == nil {
		next.INULabels = AssignLabels(constraints, ctx)
	}

	violations, warnings := EvaluateConstraints(constraints, ctx)
	if len(violations) > 0 {
		errs := make([]string, len(violations))
		for i, v := range violations {
			errs[i] = v.String()
		}
		return Authorization{Allowed: false, State: next, Errors: errs, Warnings: warnings}
	}

	for _, pre := range rule.Preconditions {
		switch pre {
		case "admissible":
			if ok, detail := CheckAdmissible(&next); !ok {
				return Authorization{
					Allowed:  false,
					State:    next,
					Errors:   []string{fmt.Sprintf("%s precondition failed: %s", rule.ID, detail)},
					Warnings: warnings,
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown precondition %q on rule %s", pre, rule.ID))
		}
	}

	return Authorization{Allowed: true, State: next, Warnings: warnings}
}
