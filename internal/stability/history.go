package stability

import "github.com/popslovesmusic/airs-sub008/internal/ir"

// MaxLabelHistory bounds the recorded label maps per state. Older
// entries fall off the front.
const MaxLabelHistory = 100

// RecordLabels appends a copy of the labels to the state's history,
// evicting the oldest entry once the bound is reached. The caller's
// label map stays independent of the stored copy.
func RecordLabels(state *ir.State, labels map[string]ir.Ternary) {
	cp := make(map[string]ir.Ternary, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	state.LabelHistory = append(state.LabelHistory, cp)
	if len(state.LabelHistory) > MaxLabelHistory {
		state.LabelHistory = state.LabelHistory[len(state.LabelHistory)-MaxLabelHistory:]
	}
}
