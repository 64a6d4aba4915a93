package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/compiler"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func swapRule() ir.RewriteRule {
	return ir.RewriteRule{
		ID:              "swap",
		PatternExpr:     "C($a, $b)",
		ReplacementExpr: "C($b, $a)",
		Preconditions:   []string{"admissible"},
	}
}

func applyFirst(t *testing.T, d *ir.Diagram, state ir.State, rule ir.RewriteRule) Result {
	t.Helper()
	matches, err := FindMatches(d, rule, 1)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	alloc := NewIDAllocator(d)
	res, err := Apply(d, state, matches[0], rule, alloc, nil, nil)
	require.NoError(t, err)
	return res
}

func TestApply_SwapArguments(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	state := ir.State{ID: "s1", DiagramID: "d1"}

	res := applyFirst(t, &d, state, swapRule())
	require.True(t, res.Applied)

	// The new coupling's inputs are the two presences, swapped.
	var coupling *ir.Node
	for i := range res.Diagram.Nodes {
		if res.Diagram.Nodes[i].Op == ir.OpCoupling {
			coupling = &res.Diagram.Nodes[i]
		}
	}
	require.NotNil(t, coupling)
	require.Len(t, coupling.Inputs, 2)

	first := res.Diagram.FindNode(coupling.Inputs[0])
	second := res.Diagram.FindNode(coupling.Inputs[1])
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, []string{"Y"}, first.DOFRefs)
	assert.Equal(t, []string{"X"}, second.DOFRefs)

	// The old coupling node is gone, the presences survived.
	assert.Len(t, res.Diagram.Nodes, 3)
	assert.Len(t, res.Diagram.Edges, 2)
	assert.False(t, res.Diagram.HasCycle())
}

func TestApply_NeverMutatesInputs(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	state := ir.State{ID: "s1", DiagramID: "d1"}
	before := d.Clone()

	res := applyFirst(t, &d, state, swapRule())
	require.True(t, res.Applied)

	assert.Equal(t, before, d, "caller's diagram must be unchanged")
	assert.Nil(t, state.INULabels, "caller's state must not gain labels")
}

// Across any sequence of accepted rewrites, node and edge ids stay
// pairwise distinct within and across kinds.
func TestApply_IDUniquenessAcrossRewrites(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	state := ir.State{ID: "s1", DiagramID: "d1"}
	rule := swapRule()

	alloc := NewIDAllocator(&d)
	current := d
	seen := map[string]bool{}

	for step := 0; step < 4; step++ {
		matches, err := FindMatches(&current, rule, 1)
		require.NoError(t, err)
		require.NotEmpty(t, matches)

		res, err := Apply(&current, state, matches[0], rule, alloc, nil, nil)
		require.NoError(t, err)
		require.True(t, res.Applied)

		ids := map[string]bool{}
		for _, n := range res.Diagram.Nodes {
			assert.False(t, ids[n.ID], "duplicate id %s at step %d", n.ID, step)
			ids[n.ID] = true
		}
		for _, e := range res.Diagram.Edges {
			assert.False(t, ids[e.ID], "edge id %s collides at step %d", e.ID, step)
			ids[e.ID] = true
		}

		current = res.Diagram
		state = res.State
		_ = seen
	}
}

func TestApply_RejectedCycleLeavesOriginalUntouched(t *testing.T) {
	// n1 feeds n2 feeds n3. A fabricated match whose replacement wires
	// n3 back underneath n1's consumers creates a cycle.
	d := ir.Diagram{
		ID: "d1",
		Nodes: []ir.Node{
			{ID: "n1", Op: ir.OpPresence, DOFRefs: []string{"X"}},
			{ID: "n2", Op: ir.OpCollapse, Inputs: []string{"n1"}, Irreversible: true},
			{ID: "n3", Op: ir.OpTransport, Inputs: []string{"n2"}, Meta: &ir.NodeMeta{TargetCompartment: "c1"}},
		},
		Edges: []ir.Edge{
			{ID: "e1", From: "n1", To: "n2", Label: ir.EdgeLabelArg},
			{ID: "e2", From: "n2", To: "n3", Label: ir.EdgeLabelArg},
		},
	}
	state := ir.State{ID: "s1", DiagramID: "d1"}
	rule := ir.RewriteRule{ID: "loop", PatternExpr: "P($a)", ReplacementExpr: "O($a)"}

	match := Match{
		RuleID:   "loop",
		Root:     "n1",
		Bindings: map[string]Binding{"$a": {NodeID: "n3"}},
		Nodes:    []string{"n1"},
	}

	beforeFP := ir.MustDiagramFingerprint(&d)
	alloc := NewIDAllocator(&d)
	res, err := Apply(&d, state, match, rule, alloc, nil, nil)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Equal(t, TagWouldIntroduceCycle, res.Tag)
	assert.Equal(t, beforeFP, ir.MustDiagramFingerprint(&res.Diagram), "original diagram returned byte-for-byte")
	assert.Equal(t, beforeFP, ir.MustDiagramFingerprint(&d), "caller's diagram untouched")
	assert.Equal(t, state.ID, res.State.ID)
}

func TestApply_PreconditionBlocksOnN(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	matches, err := FindMatches(&d, swapRule(), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	state := ir.State{
		ID:        "s1",
		DiagramID: "d1",
		INULabels: map[string]ir.Ternary{matches[0].Root: ir.TernaryN},
	}

	alloc := NewIDAllocator(&d)
	res, err := Apply(&d, state, matches[0], swapRule(), alloc, nil, nil)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Equal(t, TagPreconditionFailed, res.Tag)
	require.Len(t, res.Messages(), 1)
	assert.Contains(t, res.Messages()[0], "excluded")
}

func TestApply_RelabelsTouchedElements(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	state := ir.State{ID: "s1", DiagramID: "d1"}

	res := applyFirst(t, &d, state, swapRule())
	require.True(t, res.Applied)

	for _, n := range res.Diagram.Nodes {
		label, ok := res.State.INULabels[n.ID]
		assert.True(t, ok, "node %s must be labeled", n.ID)
		assert.Equal(t, ir.TernaryU, label, "no constraints: default U")
	}
	// Labels of removed elements are gone.
	assert.Len(t, res.State.INULabels, len(res.Diagram.Nodes)+len(res.Diagram.Edges))
}

func TestApply_UntouchedLabelsCarryOver(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	matches, err := FindMatches(&d, swapRule(), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// Pre-labeled presences stay put: the relabel only covers the
	// elements the rewrite touched.
	state := ir.State{
		ID:        "s1",
		DiagramID: "d1",
		INULabels: map[string]ir.Ternary{"n1": ir.TernaryI, "n2": ir.TernaryI},
	}

	alloc := NewIDAllocator(&d)
	res, err := Apply(&d, state, matches[0], swapRule(), alloc, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Applied)

	assert.Equal(t, ir.TernaryI, res.State.INULabels["n1"])
	assert.Equal(t, ir.TernaryI, res.State.INULabels["n2"])
	newRoot := ""
	for _, n := range res.Diagram.Nodes {
		if n.ID != "n1" && n.ID != "n2" {
			newRoot = n.ID
		}
	}
	require.NotEmpty(t, newRoot)
	assert.Equal(t, ir.TernaryU, res.State.INULabels[newRoot], "fresh elements get the default label")
}

func TestApply_UnboundReplacementVariable(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	rule := ir.RewriteRule{ID: "bad", PatternExpr: "C($a, $b)", ReplacementExpr: "C($a, $zz)"}

	matches, err := FindMatches(&d, rule, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	alloc := NewIDAllocator(&d)
	_, err = Apply(&d, ir.State{ID: "s1"}, matches[0], rule, alloc, nil, nil)
	require.Error(t, err)
	assert.True(t, IsUnboundVariable(err))
}

func TestApply_ResultMessagesAreCopies(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	res := applyFirst(t, &d, ir.State{ID: "s1"}, swapRule())

	msgs := res.Messages()
	require.NotEmpty(t, msgs)
	msgs[0] = "tampered"
	assert.NotEqual(t, "tampered", res.Messages()[0])
}

func TestIDAllocator_IndependentCounters(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))") // n1..n3, e1..e2
	alloc := NewIDAllocator(&d)

	assert.Equal(t, "n4", alloc.NodeID())
	assert.Equal(t, "e3", alloc.EdgeID())
	assert.Equal(t, "n5", alloc.NodeID())
	assert.Equal(t, "e4", alloc.EdgeID())
}

func TestApply_IdentityRuleKeepsShape(t *testing.T) {
	d := mustDiagram(t, "C(P(X), P(Y))")
	rule := ir.RewriteRule{ID: "id", PatternExpr: "C($a, $b)", ReplacementExpr: "C($a, $b)"}
	assert.True(t, rule.IsIdentity())

	res := applyFirst(t, &d, ir.State{ID: "s1"}, rule)
	require.True(t, res.Applied)
	assert.Len(t, res.Diagram.Nodes, 3)
	assert.Len(t, res.Diagram.Edges, 2)

	var coupling *ir.Node
	for i := range res.Diagram.Nodes {
		if res.Diagram.Nodes[i].Op == ir.OpCoupling {
			coupling = &res.Diagram.Nodes[i]
		}
	}
	require.NotNil(t, coupling)
	first := res.Diagram.FindNode(coupling.Inputs[0])
	assert.Equal(t, []string{"X"}, first.DOFRefs)

	res2, err := compiler.TranslateSource("C(P(X), P(Y))", "ref", "c0")
	require.NoError(t, err)
	assert.Equal(t, len(res2.Nodes), len(res.Diagram.Nodes))
}
