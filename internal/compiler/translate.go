// Package compiler turns parsed expressions into diagrams and checks
// package documents for structural validity. It also compiles packages
// authored in CUE into the ir object model.
package compiler

import (
	"fmt"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/parser"
)

// builder allocates node and edge ids while a diagram is under
// construction. The two counters are independent: node and edge id
// sequences never share a number space.
type builder struct {
	diagram ir.Diagram
	nodeSeq int
	edgeSeq int
}

func (b *builder) nextNodeID() string {
	b.nodeSeq++
	return fmt.Sprintf("n%d", b.nodeSeq)
}

func (b *builder) nextEdgeID() string {
	b.edgeSeq++
	return fmt.Sprintf("e%d", b.edgeSeq)
}

// Translate walks the AST bottom-up and builds a diagram: one node per
// operator application, one edge per argument position. Every edge
// carries the same argument label regardless of operator, so no
// downstream consumer special-cases edge labels by operator.
//
// Atom arguments attach to the node itself as DOF references; for
// non-S± operators the atom names are additionally kept on the node's
// metadata, so nothing the source text said is discarded. Expression
// arguments become child nodes wired by argument edges. A bare atom
// expression is sugar for P(atom).
//
// The result is re-validated structurally before it is returned; a
// diagram is never handed back in a known-invalid state.
func Translate(expr parser.Expr, diagramID, compartmentID string) (ir.Diagram, error) {
	b := &builder{diagram: ir.Diagram{ID: diagramID, CompartmentID: compartmentID}}
	if _, err := b.build(expr); err != nil {
		return ir.Diagram{}, err
	}
	if errs := ValidateDiagram(&b.diagram); len(errs) > 0 {
		return ir.Diagram{}, fmt.Errorf("translated diagram %s is invalid: %s", diagramID, errs[0].Error())
	}
	return b.diagram, nil
}

// build returns the id of the node representing expr.
func (b *builder) build(expr parser.Expr) (string, error) {
	switch e := expr.(type) {
	case parser.Atom:
		return b.buildAtom(e), nil
	case parser.OpExpr:
		return b.buildOp(e)
	default:
		return "", fmt.Errorf("unknown expression type %T", expr)
	}
}

// buildAtom emits the P-sugar node for a bare atom.
func (b *builder) buildAtom(a parser.Atom) string {
	id := b.nextNodeID()
	b.diagram.Nodes = append(b.diagram.Nodes, ir.Node{
		ID:      id,
		Op:      ir.OpPresence,
		DOFRefs: []string{a.Name},
		Meta:    &ir.NodeMeta{AtomOnly: true},
	})
	return id
}

// buildOp emits one node per operator application. Atom arguments
// attach as DOF references; superpositions reference many DOFs, every
// other operator keeps the atom names on metadata too. Expression
// arguments become children wired by argument edges.
func (b *builder) buildOp(e parser.OpExpr) (string, error) {
	node := ir.Node{Op: e.Op, Irreversible: e.Op == ir.OpCollapse}
	superposition := e.Op == ir.OpSuperPos || e.Op == ir.OpSuperNeg
	meta := &ir.NodeMeta{}

	var childIDs []string
	for _, arg := range e.Args {
		if atom, ok := arg.(parser.Atom); ok {
			node.DOFRefs = append(node.DOFRefs, atom.Name)
			if !superposition {
				meta.AtomArgs = append(meta.AtomArgs, atom.Name)
			}
			continue
		}
		childID, err := b.build(arg)
		if err != nil {
			return "", err
		}
		childIDs = append(childIDs, childID)
	}

	node.ID = b.nextNodeID()
	node.Inputs = childIDs
	if len(meta.AtomArgs) > 0 {
		node.Meta = meta
	}
	b.diagram.Nodes = append(b.diagram.Nodes, node)
	for _, childID := range childIDs {
		b.addArgEdge(childID, node.ID)
	}
	return node.ID, nil
}

func (b *builder) addArgEdge(from, to string) {
	b.diagram.Edges = append(b.diagram.Edges, ir.Edge{
		ID:    b.nextEdgeID(),
		From:  from,
		To:    to,
		Label: ir.EdgeLabelArg,
	})
}

// TranslateSource parses and translates in one step.
func TranslateSource(src, diagramID, compartmentID string) (ir.Diagram, error) {
	expr, err := parser.Parse(src)
	if err != nil {
		return ir.Diagram{}, err
	}
	return Translate(expr, diagramID, compartmentID)
}
