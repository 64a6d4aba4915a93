package stability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popslovesmusic/airs-sub008/internal/compiler"
	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

func TestComputeMetrics_Counts(t *testing.T) {
	d, err := compiler.TranslateSource("O(C(P(X), P(Y)))", "d1", "c0")
	require.NoError(t, err)

	state := &ir.State{
		ID: "s1",
		INULabels: map[string]ir.Ternary{
			"n1": ir.TernaryI,
			"n2": ir.TernaryI,
			"n3": ir.TernaryI,
			"n4": ir.TernaryU,
		},
	}

	m := ComputeMetrics(state, &d)
	assert.Equal(t, 3, m.AdmissibleVolume)
	assert.InDelta(t, 0.75, m.AdmissibleRatio, 1e-12)
	assert.Equal(t, 1, m.CollapseCount)
	assert.InDelta(t, 0.25, m.CollapseRatio, 1e-12)
	assert.Equal(t, 1, m.CouplingCount)
	assert.InDelta(t, 0.25, m.GradientCoherence, 1e-12)
	assert.Equal(t, 0, m.TransportCount)
	assert.Nil(t, m.TransportFidelity, "undefined without transports, not perfect")
	assert.Nil(t, m.LoopGain, "undefined without history")
}

func TestComputeMetrics_TransportFidelity(t *testing.T) {
	d := ir.Diagram{
		ID: "d1",
		Nodes: []ir.Node{
			{ID: "n1", Op: ir.OpPresence, DOFRefs: []string{"X"}},
			{ID: "n2", Op: ir.OpTransport, Inputs: []string{"n1"}, Meta: &ir.NodeMeta{TargetCompartment: "c1"}},
			{ID: "n3", Op: ir.OpTransport, Inputs: []string{"n2"}},
		},
	}
	m := ComputeMetrics(&ir.State{ID: "s1"}, &d)
	assert.Equal(t, 2, m.TransportCount)
	require.NotNil(t, m.TransportFidelity)
	assert.InDelta(t, 0.5, *m.TransportFidelity, 1e-12)
}

func TestComputeMetrics_LoopGainFromHistory(t *testing.T) {
	d, err := compiler.TranslateSource("C(P(X), P(Y))", "d1", "c0")
	require.NoError(t, err)

	state := &ir.State{ID: "s1"}
	RecordLabels(state, map[string]ir.Ternary{"n1": ir.TernaryU, "n2": ir.TernaryU, "n3": ir.TernaryU, "n4": ir.TernaryU})
	RecordLabels(state, map[string]ir.Ternary{"n1": ir.TernaryI, "n2": ir.TernaryU, "n3": ir.TernaryU, "n4": ir.TernaryN})

	m := ComputeMetrics(state, &d)
	require.NotNil(t, m.LoopGain)
	assert.InDelta(t, 0.5, *m.LoopGain, 1e-12)
}
