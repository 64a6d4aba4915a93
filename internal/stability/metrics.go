package stability

import "github.com/popslovesmusic/airs-sub008/internal/ir"

// Metrics are quantitative health figures computed after the verdict.
// Pointer fields are nil when the metric is undefined for the pair,
// never silently perfect.
type Metrics struct {
	AdmissibleVolume int     `json:"admissible_volume"`
	AdmissibleRatio  float64 `json:"admissible_ratio"`

	CollapseCount int     `json:"collapse_count"`
	CollapseRatio float64 `json:"collapse_ratio"`

	CouplingCount     int     `json:"coupling_count"`
	GradientCoherence float64 `json:"gradient_coherence"`

	TransportCount    int      `json:"transport_count"`
	TransportFidelity *float64 `json:"transport_fidelity"`

	LoopGain *float64 `json:"loop_gain"`
}

// ComputeMetrics derives the metric set from the pair's labels, node
// population, and recorded label history.
func ComputeMetrics(state *ir.State, d *ir.Diagram) Metrics {
	var m Metrics

	for _, label := range state.INULabels {
		if label == ir.TernaryI {
			m.AdmissibleVolume++
		}
	}
	if len(state.INULabels) > 0 {
		m.AdmissibleRatio = float64(m.AdmissibleVolume) / float64(len(state.INULabels))
	}

	transportsWithTarget := 0
	for i := range d.Nodes {
		switch d.Nodes[i].Op {
		case ir.OpCollapse:
			m.CollapseCount++
		case ir.OpCoupling:
			m.CouplingCount++
		case ir.OpTransport:
			m.TransportCount++
			if meta := d.Nodes[i].Meta; meta != nil && meta.TargetCompartment != "" {
				transportsWithTarget++
			}
		}
	}
	if len(d.Nodes) > 0 {
		total := float64(len(d.Nodes))
		m.CollapseRatio = float64(m.CollapseCount) / total
		m.GradientCoherence = float64(m.CouplingCount) / total
	}
	if m.TransportCount > 0 {
		fidelity := float64(transportsWithTarget) / float64(m.TransportCount)
		m.TransportFidelity = &fidelity
	}

	// Symbolic loop gain: fraction of elements whose label changed
	// between the two most recent recorded maps.
	if n := len(state.LabelHistory); n >= 2 {
		prev, curr := state.LabelHistory[n-2], state.LabelHistory[n-1]
		keys := make(map[string]bool, len(prev)+len(curr))
		for k := range prev {
			keys[k] = true
		}
		for k := range curr {
			keys[k] = true
		}
		gain := 0.0
		if len(keys) > 0 {
			changes := 0
			for k := range keys {
				if prev[k] != curr[k] {
					changes++
				}
			}
			gain = float64(changes) / float64(len(keys))
		}
		m.LoopGain = &gain
	}
	return m
}
