package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestTranslate_BareAtom(t *testing.T) {
	d, err := TranslateSource("X", "d1", "c0")
	require.NoError(t, err)

	require.Len(t, d.Nodes, 1)
	n := d.Nodes[0]
	assert.Equal(t, ir.OpPresence, n.Op)
	assert.Equal(t, []string{"X"}, n.DOFRefs)
	require.NotNil(t, n.Meta)
	assert.True(t, n.Meta.AtomOnly)
	assert.Empty(t, d.Edges)
}

func TestTranslate_Superposition(t *testing.T) {
	d, err := TranslateSource("S+(a, b, c)", "d1", "c0")
	require.NoError(t, err)

	require.Len(t, d.Nodes, 1)
	n := d.Nodes[0]
	assert.Equal(t, ir.OpSuperPos, n.Op)
	assert.Equal(t, []string{"a", "b", "c"}, n.DOFRefs)
	assert.Empty(t, d.Edges, "atom args of superpositions become dof refs, not edges")
}

func TestTranslate_CouplingOfPresences(t *testing.T) {
	d, err := TranslateSource("C(P(X), P(Y))", "d1", "c0")
	require.NoError(t, err)

	require.Len(t, d.Nodes, 3, "2 presences + coupling")
	require.Len(t, d.Edges, 2)

	var coupling *ir.Node
	for i := range d.Nodes {
		if d.Nodes[i].Op == ir.OpCoupling {
			coupling = &d.Nodes[i]
		}
	}
	require.NotNil(t, coupling)
	assert.Len(t, coupling.Inputs, 2)

	for _, e := range d.Edges {
		assert.Equal(t, ir.EdgeLabelArg, e.Label, "argument edges carry one uniform label")
	}
}

func TestTranslate_CollapseIsIrreversible(t *testing.T) {
	d, err := TranslateSource("O(P(X))", "d1", "c0")
	require.NoError(t, err)

	found := false
	for _, n := range d.Nodes {
		if n.Op == ir.OpCollapse {
			found = true
			assert.True(t, n.Irreversible)
		}
	}
	assert.True(t, found)
}

func TestTranslate_AtomArgsPreservedAsMeta(t *testing.T) {
	d, err := TranslateSource("C(X, Y)", "d1", "c0")
	require.NoError(t, err)

	var coupling *ir.Node
	for i := range d.Nodes {
		if d.Nodes[i].Op == ir.OpCoupling {
			coupling = &d.Nodes[i]
		}
	}
	require.NotNil(t, coupling)
	require.NotNil(t, coupling.Meta)
	assert.Equal(t, []string{"X", "Y"}, coupling.Meta.AtomArgs)
	assert.Equal(t, []string{"X", "Y"}, coupling.DOFRefs)
	assert.Len(t, d.Nodes, 1, "atom args stay on the node, no implicit children")
}

func TestTranslate_NodeAndEdgeCountersIndependent(t *testing.T) {
	d, err := TranslateSource("O(C(P(X), P(Y)))", "d1", "c0")
	require.NoError(t, err)

	nodeIDs := d.NodeIDSet()
	edgeIDs := d.EdgeIDSet()
	assert.True(t, nodeIDs["n1"])
	assert.True(t, edgeIDs["e1"], "edge ids start at e1 regardless of node count")
	for id := range edgeIDs {
		assert.NotContains(t, nodeIDs, id)
	}
}

func TestTranslate_ResultIsAcyclic(t *testing.T) {
	d, err := TranslateSource("T(O(C(S+(a, b), S-(c))))", "d1", "c0")
	require.NoError(t, err)
	assert.False(t, d.HasCycle())
	assert.Empty(t, ValidateDiagram(&d))
}
