package rewrite

import (
	"strings"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/parser"
)

// Binding is one bound pattern variable. A variable sitting in an
// argument slot binds either a DOF name or a node id, depending on
// what the matched node carries in that slot.
type Binding struct {
	// NodeID is set when the variable bound a subtree.
	NodeID string
	// DOF is set when the variable bound a DOF reference.
	DOF string
}

// Match is one site where a rule pattern matched.
type Match struct {
	RuleID   string
	Root     string
	Bindings map[string]Binding
	// Nodes lists every node id the pattern consumed, root included.
	Nodes []string
}

// IsVariable reports whether a pattern atom is a bound variable:
// "$"-prefixed, or a bare single lowercase letter.
func IsVariable(name string) bool {
	if strings.HasPrefix(name, "$") && len(name) > 1 {
		return true
	}
	return len(name) == 1 && name[0] >= 'a' && name[0] <= 'z'
}

// FindMatches enumerates sites where rule.PatternExpr matches a
// sub-structure of d, in node declaration order.
//
// A candidate node matches only when its total argument count is
// EXACTLY the pattern's declared argument count. Equality, not a lower
// bound, is the soundness condition: a node with more inputs than the
// pattern expects must never match, or the rewrite would silently drop
// the surplus arguments.
//
// Enumeration stops once maxMatches candidates have been collected;
// maxMatches <= 0 means unbounded.
func FindMatches(d *ir.Diagram, rule ir.RewriteRule, maxMatches int) ([]Match, error) {
	pattern, err := parser.Parse(rule.PatternExpr)
	if err != nil {
		return nil, &RuleError{Code: ErrCodeBadExpression, RuleID: rule.ID, Message: err.Error()}
	}

	var matches []Match
	for i := range d.Nodes {
		if maxMatches > 0 && len(matches) >= maxMatches {
			break
		}
		m := matcher{diagram: d, bindings: map[string]Binding{}}
		if m.matchNode(&d.Nodes[i], pattern) {
			matches = append(matches, Match{
				RuleID:   rule.ID,
				Root:     d.Nodes[i].ID,
				Bindings: m.bindings,
				Nodes:    m.consumed,
			})
		}
	}
	return matches, nil
}

type matcher struct {
	diagram  *ir.Diagram
	bindings map[string]Binding
	consumed []string
}

// matchNode matches one pattern expression against one node.
func (m *matcher) matchNode(n *ir.Node, pattern parser.Expr) bool {
	switch p := pattern.(type) {
	case parser.Atom:
		// A bare atom pattern is P-sugar: it matches a presence node
		// over that DOF, or binds the whole subtree when a variable.
		if IsVariable(p.Name) {
			return m.bind(p.Name, Binding{NodeID: n.ID})
		}
		if n.Op != ir.OpPresence || len(n.DOFRefs) != 1 || len(n.Inputs) != 0 {
			return false
		}
		if n.DOFRefs[0] != p.Name {
			return false
		}
		m.consumed = append(m.consumed, n.ID)
		return true

	case parser.OpExpr:
		if n.Op != p.Op {
			return false
		}
		// Exact arity: every argument the node carries, DOF refs and
		// inputs together, must be accounted for by the pattern.
		if len(n.DOFRefs)+len(n.Inputs) != len(p.Args) {
			return false
		}
		return m.matchArgs(n, p.Args)
	}
	return false
}

// matchArgs aligns pattern arguments against the node's DOF refs and
// inputs. Expression arguments consume inputs in order; literal atoms
// consume DOF refs in order; variable atoms consume a DOF ref when one
// remains, otherwise a subtree input.
func (m *matcher) matchArgs(n *ir.Node, args []parser.Expr) bool {
	dofIdx, inputIdx := 0, 0
	for _, arg := range args {
		switch a := arg.(type) {
		case parser.Atom:
			if dofIdx < len(n.DOFRefs) {
				dof := n.DOFRefs[dofIdx]
				dofIdx++
				if IsVariable(a.Name) {
					if !m.bind(a.Name, Binding{DOF: dof}) {
						return false
					}
				} else if a.Name != dof {
					return false
				}
				continue
			}
			if inputIdx >= len(n.Inputs) {
				return false
			}
			child := m.diagram.FindNode(n.Inputs[inputIdx])
			inputIdx++
			if child == nil {
				return false
			}
			if IsVariable(a.Name) {
				if !m.bind(a.Name, Binding{NodeID: child.ID}) {
					return false
				}
				continue
			}
			if !m.matchNode(child, a) {
				return false
			}

		case parser.OpExpr:
			if inputIdx >= len(n.Inputs) {
				return false
			}
			child := m.diagram.FindNode(n.Inputs[inputIdx])
			inputIdx++
			if child == nil || !m.matchNode(child, a) {
				return false
			}
		}
	}
	if dofIdx != len(n.DOFRefs) || inputIdx != len(n.Inputs) {
		return false
	}
	m.consumed = append(m.consumed, n.ID)
	return true
}

// bind records a variable binding, rejecting inconsistent rebinds.
func (m *matcher) bind(name string, b Binding) bool {
	if prev, ok := m.bindings[name]; ok {
		return prev == b
	}
	m.bindings[name] = b
	return true
}
