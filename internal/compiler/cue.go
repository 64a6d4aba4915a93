package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// CompileError is a CUE compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompilePackage parses a CUE value into a package. The value is the
// package document itself:
//
//	dof: X: {group: "position"}
//	compartment: c0: {index: 0}
//	csi: main: {allow: ["X"], pairs: [["X", "X"]]}
//	diagram: d1: {compartment: "c0", expr: "O(C(P(X), P(X)))"}
//	state: s1: {diagram: "d1", csi: "main", compartment: "c0"}
//	constraint: k1: {scope: "diagram", kind: "hard", predicate: "no_cycles"}
//	rule: r1: {pattern: "C($a, $b)", replacement: "C($b, $a)"}
//
// Diagram expressions are parsed and translated here, so a compiled
// package arrives with real graphs, not expression strings. The result
// is NOT yet validated; run ValidatePackage on it.
func CompilePackage(v cue.Value) (*ir.Package, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Package{}
	var err error

	if p.DOFs, err = parseDOFs(v); err != nil {
		return nil, err
	}
	if p.Compartments, err = parseCompartments(v); err != nil {
		return nil, err
	}
	if p.CSIs, err = parseCSIs(v); err != nil {
		return nil, err
	}
	if p.Diagrams, err = parseDiagrams(v); err != nil {
		return nil, err
	}
	if p.States, err = parseStates(v); err != nil {
		return nil, err
	}
	if p.Constraints, err = parseConstraints(v); err != nil {
		return nil, err
	}
	if p.RewriteRules, err = parseRules(v); err != nil {
		return nil, err
	}
	return p, nil
}

// fields iterates a struct-valued path, calling fn with each label and
// value in sorted label order. A missing path is not an error; every
// top-level section is optional in the document.
func fields(v cue.Value, path string, fn func(label string, fv cue.Value) error) error {
	section := v.LookupPath(cue.ParsePath(path))
	if !section.Exists() {
		return nil
	}
	iter, err := section.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	type entry struct {
		label string
		value cue.Value
	}
	var entries []entry
	for iter.Next() {
		entries = append(entries, entry{iter.Label(), iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].label < entries[j].label })

	for _, e := range entries {
		if err := fn(e.label, e.value); err != nil {
			return err
		}
	}
	return nil
}

func requiredString(v cue.Value, field, owner string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   owner,
			Message: fmt.Sprintf("%s is required", field),
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseDOFs(v cue.Value) ([]ir.DOF, error) {
	var dofs []ir.DOF
	err := fields(v, "dof", func(label string, fv cue.Value) error {
		group, err := optionalString(fv, "group")
		if err != nil {
			return err
		}
		dofs = append(dofs, ir.DOF{ID: label, OrthogonalGroup: group})
		return nil
	})
	return dofs, err
}

func parseCompartments(v cue.Value) ([]ir.Compartment, error) {
	var compartments []ir.Compartment
	err := fields(v, "compartment", func(label string, fv cue.Value) error {
		idxVal := fv.LookupPath(cue.ParsePath("index"))
		if !idxVal.Exists() {
			return &CompileError{
				Field:   "compartment." + label,
				Message: "index is required",
				Pos:     fv.Pos(),
			}
		}
		idx, err := idxVal.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		compartments = append(compartments, ir.Compartment{ID: label, Index: idx})
		return nil
	})
	// Sort by index so declaration label order never changes stage order.
	sort.Slice(compartments, func(i, j int) bool {
		return compartments[i].Index < compartments[j].Index
	})
	return compartments, err
}

func parseCSIs(v cue.Value) ([]ir.CSI, error) {
	var csis []ir.CSI
	err := fields(v, "csi", func(label string, fv cue.Value) error {
		allow, err := stringList(fv, "allow")
		if err != nil {
			return err
		}
		csi := ir.CSI{ID: label, AllowedDOFs: allow}

		pairsVal := fv.LookupPath(cue.ParsePath("pairs"))
		if pairsVal.Exists() {
			iter, err := pairsVal.List()
			if err != nil {
				return formatCUEError(err)
			}
			for iter.Next() {
				pairIter, err := iter.Value().List()
				if err != nil {
					return formatCUEError(err)
				}
				var pair []string
				for pairIter.Next() {
					s, err := pairIter.Value().String()
					if err != nil {
						return formatCUEError(err)
					}
					pair = append(pair, s)
				}
				if len(pair) != 2 {
					return &CompileError{
						Field:   "csi." + label + ".pairs",
						Message: fmt.Sprintf("pair must have exactly 2 elements, got %d", len(pair)),
						Pos:     iter.Value().Pos(),
					}
				}
				csi.AllowedPairs = append(csi.AllowedPairs, ir.DOFPair{pair[0], pair[1]})
			}
		}
		csis = append(csis, csi)
		return nil
	})
	return csis, err
}

func parseDiagrams(v cue.Value) ([]ir.Diagram, error) {
	var diagrams []ir.Diagram
	err := fields(v, "diagram", func(label string, fv cue.Value) error {
		compartment, err := optionalString(fv, "compartment")
		if err != nil {
			return err
		}
		expr, err := requiredString(fv, "expr", "diagram."+label)
		if err != nil {
			return err
		}
		d, err := TranslateSource(expr, label, compartment)
		if err != nil {
			return &CompileError{
				Field:   "diagram." + label + ".expr",
				Message: err.Error(),
				Pos:     fv.Pos(),
			}
		}
		diagrams = append(diagrams, d)
		return nil
	})
	return diagrams, err
}

func parseStates(v cue.Value) ([]ir.State, error) {
	var states []ir.State
	err := fields(v, "state", func(label string, fv cue.Value) error {
		diagram, err := requiredString(fv, "diagram", "state."+label)
		if err != nil {
			return err
		}
		csi, err := optionalString(fv, "csi")
		if err != nil {
			return err
		}
		compartment, err := optionalString(fv, "compartment")
		if err != nil {
			return err
		}
		states = append(states, ir.State{
			ID:            label,
			DiagramID:     diagram,
			CSIID:         csi,
			CompartmentID: compartment,
		})
		return nil
	})
	return states, err
}

func parseConstraints(v cue.Value) ([]ir.Constraint, error) {
	var constraints []ir.Constraint
	err := fields(v, "constraint", func(label string, fv cue.Value) error {
		scope, err := requiredString(fv, "scope", "constraint."+label)
		if err != nil {
			return err
		}
		kind, err := requiredString(fv, "kind", "constraint."+label)
		if err != nil {
			return err
		}
		if k := ir.ConstraintKind(kind); k != ir.KindHard && k != ir.KindHeuristic {
			return &CompileError{
				Field:   "constraint." + label + ".kind",
				Message: fmt.Sprintf("kind must be %q or %q, got %q", ir.KindHard, ir.KindHeuristic, kind),
				Pos:     fv.Pos(),
			}
		}
		predicate, err := requiredString(fv, "predicate", "constraint."+label)
		if err != nil {
			return err
		}
		constraints = append(constraints, ir.Constraint{
			ID:        label,
			Scope:     scope,
			Kind:      ir.ConstraintKind(kind),
			Predicate: predicate,
		})
		return nil
	})
	return constraints, err
}

func parseRules(v cue.Value) ([]ir.RewriteRule, error) {
	var rules []ir.RewriteRule
	err := fields(v, "rule", func(label string, fv cue.Value) error {
		pattern, err := requiredString(fv, "pattern", "rule."+label)
		if err != nil {
			return err
		}
		replacement, err := requiredString(fv, "replacement", "rule."+label)
		if err != nil {
			return err
		}
		preconditions, err := stringList(fv, "preconditions")
		if err != nil {
			return err
		}
		rules = append(rules, ir.RewriteRule{
			ID:              label,
			PatternExpr:     pattern,
			ReplacementExpr: replacement,
			Preconditions:   preconditions,
		})
		return nil
	})
	return rules, err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
