package ir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCycle_Acyclic(t *testing.T) {
	d := Diagram{
		ID: "d1",
		Nodes: []Node{
			{ID: "n1", Op: OpPresence, DOFRefs: []string{"x"}},
			{ID: "n2", Op: OpPresence, DOFRefs: []string{"y"}},
			{ID: "n3", Op: OpCoupling, Inputs: []string{"n1", "n2"}},
		},
		Edges: []Edge{
			{ID: "e1", From: "n1", To: "n3", Label: EdgeLabelArg},
			{ID: "e2", From: "n2", To: "n3", Label: EdgeLabelArg},
		},
	}
	assert.False(t, d.HasCycle())
}

func TestHasCycle_SelfLoop(t *testing.T) {
	d := Diagram{
		ID:    "d1",
		Nodes: []Node{{ID: "n1", Op: OpPresence}},
		Edges: []Edge{{ID: "e1", From: "n1", To: "n1", Label: EdgeLabelArg}},
	}
	assert.True(t, d.HasCycle())
}

func TestHasCycle_TwoNodeCycle(t *testing.T) {
	d := Diagram{
		ID: "d1",
		Nodes: []Node{
			{ID: "n1", Op: OpPresence},
			{ID: "n2", Op: OpCollapse, Irreversible: true},
		},
		Edges: []Edge{
			{ID: "e1", From: "n1", To: "n2", Label: EdgeLabelArg},
			{ID: "e2", From: "n2", To: "n1", Label: EdgeLabelArg},
		},
	}
	assert.True(t, d.HasCycle())
}

// A deep chain exercises the iterative DFS: recursion would overflow
// the goroutine stack long before 200k frames.
func TestHasCycle_DeepChain(t *testing.T) {
	const depth = 200_000
	d := Diagram{ID: "deep"}
	d.Nodes = make([]Node, depth)
	d.Edges = make([]Edge, depth-1)
	for i := 0; i < depth; i++ {
		d.Nodes[i] = Node{ID: fmt.Sprintf("n%d", i), Op: OpPresence}
		if i > 0 {
			d.Edges[i-1] = Edge{
				ID:    fmt.Sprintf("e%d", i),
				From:  fmt.Sprintf("n%d", i-1),
				To:    fmt.Sprintf("n%d", i),
				Label: EdgeLabelArg,
			}
		}
	}
	assert.False(t, d.HasCycle())

	// Close the chain into a loop.
	d.Edges = append(d.Edges, Edge{
		ID:    "e-back",
		From:  fmt.Sprintf("n%d", depth-1),
		To:    "n0",
		Label: EdgeLabelArg,
	})
	assert.True(t, d.HasCycle())
}

func TestDiagramClone_Independent(t *testing.T) {
	d := Diagram{
		ID: "d1",
		Nodes: []Node{
			{ID: "n1", Op: OpSuperPos, DOFRefs: []string{"a", "b"}},
		},
		Edges: []Edge{{ID: "e1", From: "n1", To: "n1", Label: EdgeLabelArg}},
	}
	cp := d.Clone()
	cp.Nodes[0].DOFRefs[0] = "changed"
	cp.Edges[0].From = "changed"

	assert.Equal(t, "a", d.Nodes[0].DOFRefs[0])
	assert.Equal(t, "n1", d.Edges[0].From)
}

func TestInputsOf_PrefersNodeOrdering(t *testing.T) {
	d := Diagram{
		ID: "d1",
		Nodes: []Node{
			{ID: "a", Op: OpPresence},
			{ID: "b", Op: OpPresence},
			{ID: "c", Op: OpCoupling, Inputs: []string{"b", "a"}},
		},
		Edges: []Edge{
			{ID: "e1", From: "a", To: "c", Label: EdgeLabelArg},
			{ID: "e2", From: "b", To: "c", Label: EdgeLabelArg},
		},
	}
	// Node ordering wins over edge declaration order.
	assert.Equal(t, []string{"b", "a"}, d.InputsOf("c"))
	assert.Equal(t, []string{"c"}, d.OutputsOf("a"))
}

func TestStateClone_DeepCopiesLabels(t *testing.T) {
	s := State{
		ID:        "s1",
		DiagramID: "d1",
		INULabels: map[string]Ternary{"n1": TernaryI},
		DeferredConflicts: []ConflictRecord{
			{Type: "defer", ConstraintID: "c1", Elements: []string{"n1"}},
		},
	}
	cp := s.Clone()
	cp.INULabels["n1"] = TernaryN
	cp.DeferredConflicts[0].Elements[0] = "other"

	assert.Equal(t, TernaryI, s.INULabels["n1"])
	assert.Equal(t, "n1", s.DeferredConflicts[0].Elements[0])
}

func TestOperatorArity_Table(t *testing.T) {
	for _, op := range Operators() {
		_, ok := OperatorArity[op]
		require.True(t, ok, "missing arity for %s", op)
	}
	assert.Equal(t, Arity{Min: 2, Max: 2}, OperatorArity[OpCoupling])
	assert.Equal(t, Arity{Min: 1, Max: -1}, OperatorArity[OpSuperPos])
	assert.Equal(t, Arity{Min: 1, Max: 1}, OperatorArity[OpCollapse])
}
