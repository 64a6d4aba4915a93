package rewrite

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/crf"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/parser"
)

// Result tags.
const (
	// TagWouldIntroduceCycle marks a rewrite rejected because the
	// mutated graph would be cyclic. The original diagram and state
	// are returned unchanged.
	TagWouldIntroduceCycle = "would_introduce_cycle"

	// TagPreconditionFailed marks a rewrite whose rule preconditions
	// did not hold against the current labels.
	TagPreconditionFailed = "precondition_failed"
)

// Result is the immutable outcome of one Apply call. Diagram and
// State are value copies; messages are reachable only through the
// copying accessor, so a Result can never be altered by its holder.
type Result struct {
	Diagram ir.Diagram
	State   ir.State

	// Applied is false when the rewrite was rejected; Tag then says
	// why. A rejection is ordinary control flow, not an error.
	Applied bool
	Tag     string

	messages []string
}

// Messages returns a copy of the diagnostic messages.
func (r *Result) Messages() []string {
	return append([]string(nil), r.messages...)
}

// Apply applies one matched rule to the diagram.
//
//  1. Preconditions are checked against the state's labels, which are
//     lazily initialized on a copy if absent.
//  2. The diagram is deep-copied; the caller's values are never
//     touched.
//  3. Replacement nodes and edges take fresh ids from the allocator's
//     two independent counters.
//  4. Acyclicity is re-verified on the mutated graph; a would-be cycle
//     rejects the rewrite and returns the originals unchanged.
//  5. Labels are recomputed only for the elements the rewrite touched.
func Apply(d *ir.Diagram, state ir.State, match Match, rule ir.RewriteRule, alloc *IDAllocator, constraints []ir.Constraint, csi *ir.CSI) (Result, error) {
	replacement, err := parser.Parse(rule.ReplacementExpr)
	if err != nil {
		return Result{}, &RuleError{Code: ErrCodeBadExpression, RuleID: rule.ID, Message: err.Error()}
	}

	// Precondition gate. Labels live on a copy of the state; the
	// caller's state is never populated behind its back.
	nextState := state.Clone()
	if nextState.INULabels == nil {
		nextState.INULabels = crf.AssignLabels(constraints, crf.EvalContext{
			State: &nextState, Diagram: d, CSI: csi,
		})
	}
	for _, pre := range rule.Preconditions {
		if pre != "admissible" {
			continue
		}
		if nextState.INULabels[match.Root] == ir.TernaryN {
			return Result{
				Diagram:  *d,
				State:    state,
				Applied:  false,
				Tag:      TagPreconditionFailed,
				messages: []string{fmt.Sprintf("matched root %s is N (excluded)", match.Root)},
			}, nil
		}
	}

	next := d.Clone()

	// Build the replacement subtree.
	b := &replacementBuilder{
		diagram:  &next,
		alloc:    alloc,
		bindings: match.Bindings,
		ruleID:   rule.ID,
	}
	newRoot, err := b.build(replacement)
	if err != nil {
		return Result{}, err
	}

	// Redirect the match root's consumers onto the replacement root.
	touched := map[string]bool{newRoot: true}
	for _, id := range b.created {
		touched[id] = true
	}
	if newRoot != match.Root {
		for i := range next.Edges {
			if next.Edges[i].From == match.Root {
				next.Edges[i].From = newRoot
				touched[next.Edges[i].ID] = true
			}
		}
		for i := range next.Nodes {
			for j, in := range next.Nodes[i].Inputs {
				if in == match.Root {
					next.Nodes[i].Inputs[j] = newRoot
					touched[next.Nodes[i].ID] = true
				}
			}
		}
	}

	removed := collectGarbage(&next, match, b.reused)

	// The mutated graph must still be a DAG. Verified on the copy, so
	// rejection leaves the caller's diagram byte-for-byte intact.
	if next.HasCycle() {
		return Result{
			Diagram:  *d,
			State:    state,
			Applied:  false,
			Tag:      TagWouldIntroduceCycle,
			messages: []string{fmt.Sprintf("rule %s at %s would introduce a cycle", rule.ID, match.Root)},
		}, nil
	}

	// Incremental relabel: only elements the rewrite touched are
	// re-evaluated. Labels of untouched elements carry over as-is.
	touchedIDs := make([]string, 0, len(touched))
	for id := range touched {
		touchedIDs = append(touchedIDs, id)
	}
	labels := crf.AssignLabelsFor(constraints, crf.EvalContext{
		State: &nextState, Diagram: &next, CSI: csi,
	}, touchedIDs)
	for id, label := range labels {
		nextState.INULabels[id] = label
	}
	for _, id := range removed {
		delete(nextState.INULabels, id)
	}

	return Result{
		Diagram: next,
		State:   nextState,
		Applied: true,
		messages: []string{
			fmt.Sprintf("applied rule %s at %s", rule.ID, match.Root),
		},
	}, nil
}

type replacementBuilder struct {
	diagram  *ir.Diagram
	alloc    *IDAllocator
	bindings map[string]Binding
	ruleID   string

	created []string
	reused  map[string]bool
}

// build emits the replacement expression into the diagram and returns
// the id of its root node. Variables resolve through the match
// bindings: a DOF binding substitutes the name, a subtree binding
// reuses the existing node.
func (b *replacementBuilder) build(expr parser.Expr) (string, error) {
	switch e := expr.(type) {
	case parser.Atom:
		if IsVariable(e.Name) {
			bind, ok := b.bindings[e.Name]
			if !ok {
				return "", &RuleError{
					Code:    ErrCodeUnboundVariable,
					RuleID:  b.ruleID,
					Message: fmt.Sprintf("replacement variable %q is not bound by the pattern", e.Name),
				}
			}
			if bind.NodeID != "" {
				b.markReused(bind.NodeID)
				return bind.NodeID, nil
			}
			return b.newPresence(bind.DOF), nil
		}
		return b.newPresence(e.Name), nil

	case parser.OpExpr:
		node := ir.Node{
			ID:           b.alloc.NodeID(),
			Op:           e.Op,
			Irreversible: e.Op == ir.OpCollapse,
		}
		b.created = append(b.created, node.ID)

		var childIDs []string
		for _, arg := range e.Args {
			if atom, ok := arg.(parser.Atom); ok {
				dof, reusedNode, err := b.resolveAtom(atom)
				if err != nil {
					return "", err
				}
				if dof != "" {
					node.DOFRefs = append(node.DOFRefs, dof)
					continue
				}
				childIDs = append(childIDs, reusedNode)
				continue
			}
			childID, err := b.build(arg)
			if err != nil {
				return "", err
			}
			childIDs = append(childIDs, childID)
		}

		node.Inputs = childIDs
		b.diagram.Nodes = append(b.diagram.Nodes, node)
		for _, childID := range childIDs {
			edge := ir.Edge{
				ID:    b.alloc.EdgeID(),
				From:  childID,
				To:    node.ID,
				Label: ir.EdgeLabelArg,
			}
			b.diagram.Edges = append(b.diagram.Edges, edge)
			b.created = append(b.created, edge.ID)
		}
		return node.ID, nil
	}
	return "", &RuleError{Code: ErrCodeBadExpression, RuleID: b.ruleID, Message: "unknown replacement expression"}
}

// resolveAtom resolves an atom argument: either a DOF name to attach,
// or a reused subtree node id.
func (b *replacementBuilder) resolveAtom(a parser.Atom) (dof, nodeID string, err error) {
	if !IsVariable(a.Name) {
		return a.Name, "", nil
	}
	bind, ok := b.bindings[a.Name]
	if !ok {
		return "", "", &RuleError{
			Code:    ErrCodeUnboundVariable,
			RuleID:  b.ruleID,
			Message: fmt.Sprintf("replacement variable %q is not bound by the pattern", a.Name),
		}
	}
	if bind.DOF != "" {
		return bind.DOF, "", nil
	}
	b.markReused(bind.NodeID)
	return "", bind.NodeID, nil
}

func (b *replacementBuilder) newPresence(dofName string) string {
	node := ir.Node{
		ID:      b.alloc.NodeID(),
		Op:      ir.OpPresence,
		DOFRefs: []string{dofName},
		Meta:    &ir.NodeMeta{AtomOnly: true},
	}
	b.diagram.Nodes = append(b.diagram.Nodes, node)
	b.created = append(b.created, node.ID)
	return node.ID
}

func (b *replacementBuilder) markReused(nodeID string) {
	if b.reused == nil {
		b.reused = make(map[string]bool)
	}
	b.reused[nodeID] = true
}

// collectGarbage removes matched nodes the replacement no longer
// references, plus their dangling edges. A matched node survives when
// it was reused through a binding or still feeds something outside the
// deleted set. Returns the removed node and edge ids.
func collectGarbage(d *ir.Diagram, match Match, reused map[string]bool) []string {
	candidates := make(map[string]bool, len(match.Nodes))
	for _, id := range match.Nodes {
		if !reused[id] {
			candidates[id] = true
		}
	}

	deleted := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for id := range candidates {
			if deleted[id] {
				continue
			}
			if !referenced(d, id, deleted) {
				deleted[id] = true
				changed = true
			}
		}
	}
	if len(deleted) == 0 {
		return nil
	}

	var removed []string
	var nodes []ir.Node
	for i := range d.Nodes {
		if deleted[d.Nodes[i].ID] {
			removed = append(removed, d.Nodes[i].ID)
			continue
		}
		nodes = append(nodes, d.Nodes[i])
	}
	var edges []ir.Edge
	for i := range d.Edges {
		e := d.Edges[i]
		if deleted[e.From] || deleted[e.To] {
			removed = append(removed, e.ID)
			continue
		}
		edges = append(edges, e)
	}
	d.Nodes = nodes
	d.Edges = edges
	return removed
}

// referenced reports whether any surviving element still consumes the
// node.
func referenced(d *ir.Diagram, id string, deleted map[string]bool) bool {
	for i := range d.Edges {
		if d.Edges[i].From == id && !deleted[d.Edges[i].To] {
			return true
		}
	}
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if deleted[n.ID] || n.ID == id {
			continue
		}
		for _, in := range n.Inputs {
			if in == id {
				return true
			}
		}
	}
	return false
}
