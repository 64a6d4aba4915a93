package compiler

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/parser"
)

// Validation error codes (E100-E199).
const (
	// Identity and reference errors (E100-E109)
	ErrDuplicateID        = "E100" // id declared more than once
	ErrUnresolvedRef      = "E101" // reference to an undeclared entity
	ErrUnknownOperator    = "E102" // node carries an unknown operator tag
	ErrCollapseReversible = "E103" // O node without irreversible flag

	// Graph structure errors (E110-E119)
	ErrDuplicateInput = "E110" // node lists the same input twice
	ErrDuplicateEdge  = "E111" // duplicate (from, to, label) edge
	ErrCyclicDiagram  = "E112" // diagram contains a directed cycle

	// Rewrite rule errors (E120-E129)
	ErrRuleBadPattern      = "E120" // pattern expression does not parse
	ErrRuleBadReplacement  = "E121" // replacement expression does not parse
	ErrRuleBadPrecondition = "E122" // unknown precondition name

	// State errors (E130-E139)
	ErrInvalidLabel = "E130" // label outside {I, N, U}
)

// knownPreconditions are the rule preconditions the rewrite engine
// understands.
var knownPreconditions = map[string]bool{
	"admissible": true,
}

// ValidationError is one structural defect found in a package. The
// validator aggregates every defect it finds; it never fails fast.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePackage checks the package's structural invariants and
// returns every violation found. Checks run cheapest-first: id
// uniqueness, then reference resolution, then per-node invariants,
// then graph acyclicity, then rewrite-rule well-formedness. Rule
// checking is linear in the number of rules; it never touches states
// or attempts admissibility, which is the labeler's job.
//
// An empty result means the package is structurally sound. The caller
// decides whether a non-empty result is fatal.
func ValidatePackage(p *ir.Package) []ValidationError {
	var errs []ValidationError
	errs = append(errs, checkUniqueIDs(p)...)
	errs = append(errs, checkReferences(p)...)
	for i := range p.Diagrams {
		errs = append(errs, validateDiagramAt(&p.Diagrams[i], fmt.Sprintf("diagrams[%d]", i))...)
	}
	errs = append(errs, checkStates(p)...)
	errs = append(errs, checkRules(p)...)
	return errs
}

// ValidateDiagram checks one diagram in isolation: internal reference
// resolution, collapse irreversibility, port consistency, acyclicity.
// Used by the translator to re-validate before handing a diagram back.
func ValidateDiagram(d *ir.Diagram) []ValidationError {
	return validateDiagramAt(d, "diagram")
}

func checkUniqueIDs(p *ir.Package) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]string)

	claim := func(id, where string) {
		if id == "" {
			errs = append(errs, ValidationError{
				Field: where, Message: "id must be non-empty", Code: ErrDuplicateID,
			})
			return
		}
		if prev, ok := seen[id]; ok {
			errs = append(errs, ValidationError{
				Field:   where,
				Message: fmt.Sprintf("duplicate id %q, first declared at %s", id, prev),
				Code:    ErrDuplicateID,
			})
			return
		}
		seen[id] = where
	}

	for i := range p.DOFs {
		claim(p.DOFs[i].ID, fmt.Sprintf("dofs[%d]", i))
	}
	for i := range p.Compartments {
		claim(p.Compartments[i].ID, fmt.Sprintf("compartments[%d]", i))
	}
	for i := range p.CSIs {
		claim(p.CSIs[i].ID, fmt.Sprintf("csis[%d]", i))
	}
	for i := range p.Diagrams {
		claim(p.Diagrams[i].ID, fmt.Sprintf("diagrams[%d]", i))
	}
	for i := range p.States {
		claim(p.States[i].ID, fmt.Sprintf("states[%d]", i))
	}
	for i := range p.Constraints {
		claim(p.Constraints[i].ID, fmt.Sprintf("constraints[%d]", i))
	}
	for i := range p.RewriteRules {
		claim(p.RewriteRules[i].ID, fmt.Sprintf("rewrite_rules[%d]", i))
	}
	return errs
}

func checkReferences(p *ir.Package) []ValidationError {
	var errs []ValidationError

	dofs := make(map[string]bool, len(p.DOFs))
	for i := range p.DOFs {
		dofs[p.DOFs[i].ID] = true
	}
	compartments := make(map[string]bool, len(p.Compartments))
	for i := range p.Compartments {
		compartments[p.Compartments[i].ID] = true
	}

	unresolved := func(field, kind, id string) ValidationError {
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s %q is not declared", kind, id),
			Code:    ErrUnresolvedRef,
		}
	}

	for i := range p.CSIs {
		csi := &p.CSIs[i]
		for _, id := range csi.AllowedDOFs {
			if !dofs[id] {
				errs = append(errs, unresolved(fmt.Sprintf("csis[%d].allowed_dofs", i), "dof", id))
			}
		}
		for _, pair := range csi.AllowedPairs {
			for _, id := range pair {
				if !dofs[id] {
					errs = append(errs, unresolved(fmt.Sprintf("csis[%d].allowed_pairs", i), "dof", id))
				}
			}
		}
	}

	for i := range p.Diagrams {
		d := &p.Diagrams[i]
		field := fmt.Sprintf("diagrams[%d]", i)
		if d.CompartmentID != "" && !compartments[d.CompartmentID] {
			errs = append(errs, unresolved(field+".compartment_id", "compartment", d.CompartmentID))
		}
		for j := range d.Nodes {
			for _, ref := range d.Nodes[j].DOFRefs {
				if !dofs[ref] {
					errs = append(errs, unresolved(fmt.Sprintf("%s.nodes[%d].dof_refs", field, j), "dof", ref))
				}
			}
			if tc := d.Nodes[j].Meta; tc != nil && tc.TargetCompartment != "" && !compartments[tc.TargetCompartment] {
				errs = append(errs, unresolved(fmt.Sprintf("%s.nodes[%d].meta.target_compartment", field, j), "compartment", tc.TargetCompartment))
			}
		}
	}

	for i := range p.States {
		s := &p.States[i]
		field := fmt.Sprintf("states[%d]", i)
		if p.FindDiagram(s.DiagramID) == nil {
			errs = append(errs, unresolved(field+".diagram_id", "diagram", s.DiagramID))
		}
		if s.CSIID != "" && p.FindCSI(s.CSIID) == nil {
			errs = append(errs, unresolved(field+".csi_id", "csi", s.CSIID))
		}
		if s.CompartmentID != "" && !compartments[s.CompartmentID] {
			errs = append(errs, unresolved(field+".compartment_id", "compartment", s.CompartmentID))
		}
	}

	return errs
}

func validateDiagramAt(d *ir.Diagram, field string) []ValidationError {
	var errs []ValidationError
	nodeIDs := d.NodeIDSet()

	for i := range d.Nodes {
		n := &d.Nodes[i]
		nf := fmt.Sprintf("%s.nodes[%d]", field, i)

		if !n.Op.Valid() {
			errs = append(errs, ValidationError{
				Field:   nf + ".op",
				Message: fmt.Sprintf("unknown operator %q", string(n.Op)),
				Code:    ErrUnknownOperator,
			})
		}
		if n.Op == ir.OpCollapse && !n.Irreversible {
			errs = append(errs, ValidationError{
				Field:   nf,
				Message: fmt.Sprintf("collapse node %q must be irreversible", n.ID),
				Code:    ErrCollapseReversible,
			})
		}

		seen := make(map[string]bool, len(n.Inputs))
		for _, in := range n.Inputs {
			if !nodeIDs[in] {
				errs = append(errs, ValidationError{
					Field:   nf + ".inputs",
					Message: fmt.Sprintf("node %q is not declared", in),
					Code:    ErrUnresolvedRef,
				})
			}
			if seen[in] {
				errs = append(errs, ValidationError{
					Field:   nf + ".inputs",
					Message: fmt.Sprintf("node %q appears at more than one input position", in),
					Code:    ErrDuplicateInput,
				})
			}
			seen[in] = true
		}
	}

	seenEdges := make(map[string]bool, len(d.Edges))
	for i := range d.Edges {
		e := &d.Edges[i]
		ef := fmt.Sprintf("%s.edges[%d]", field, i)
		if !nodeIDs[e.From] {
			errs = append(errs, ValidationError{
				Field: ef + ".from", Message: fmt.Sprintf("node %q is not declared", e.From), Code: ErrUnresolvedRef,
			})
		}
		if !nodeIDs[e.To] {
			errs = append(errs, ValidationError{
				Field: ef + ".to", Message: fmt.Sprintf("node %q is not declared", e.To), Code: ErrUnresolvedRef,
			})
		}
		key := e.From + "\x00" + e.To + "\x00" + e.Label
		if seenEdges[key] {
			errs = append(errs, ValidationError{
				Field:   ef,
				Message: fmt.Sprintf("duplicate edge %s -> %s", e.From, e.To),
				Code:    ErrDuplicateEdge,
			})
		}
		seenEdges[key] = true
	}

	// Acyclicity last: it is the most expensive check and pointless to
	// report alongside unresolved node references.
	if d.HasCycle() {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("diagram %q contains a directed cycle", d.ID),
			Code:    ErrCyclicDiagram,
		})
	}
	return errs
}

func checkStates(p *ir.Package) []ValidationError {
	var errs []ValidationError
	for i := range p.States {
		for element, label := range p.States[i].INULabels {
			if !label.Valid() {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("states[%d].inu_labels[%q]", i, element),
					Message: fmt.Sprintf("label %q is not one of I, N, U", string(label)),
					Code:    ErrInvalidLabel,
				})
			}
		}
	}
	return errs
}

// checkRules verifies each rule is individually well-formed: both
// expressions parse (the parser enforces arity) and preconditions are
// known. O(rules), never cross-multiplied against states.
func checkRules(p *ir.Package) []ValidationError {
	var errs []ValidationError
	for i := range p.RewriteRules {
		r := &p.RewriteRules[i]
		field := fmt.Sprintf("rewrite_rules[%d]", i)
		if _, err := parser.Parse(r.PatternExpr); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".pattern_expr",
				Message: err.Error(),
				Code:    ErrRuleBadPattern,
			})
		}
		if _, err := parser.Parse(r.ReplacementExpr); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".replacement_expr",
				Message: err.Error(),
				Code:    ErrRuleBadReplacement,
			})
		}
		for _, pre := range r.Preconditions {
			if !knownPreconditions[pre] {
				errs = append(errs, ValidationError{
					Field:   field + ".preconditions",
					Message: fmt.Sprintf("unknown precondition %q", pre),
					Code:    ErrRuleBadPrecondition,
				})
			}
		}
	}
	return errs
}
