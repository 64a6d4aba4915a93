package ssp

import "fmt"

// CollapseMask is the dual admissibility mask over a U field. The two
// masks are disjoint in the weighted sense: MaskI[i]+MaskN[i] <= 1 for
// every cell.
type CollapseMask struct {
	MaskI []float64
	MaskN []float64
}

// NewCollapseMask allocates a zeroed mask pair of the given length.
func NewCollapseMask(fieldLen int) CollapseMask {
	return CollapseMask{
		MaskI: make([]float64, fieldLen),
		MaskN: make([]float64, fieldLen),
	}
}

// Validate checks the mask ranges and the disjointness constraint.
func (m CollapseMask) Validate() error {
	if len(m.MaskI) != len(m.MaskN) {
		return fmt.Errorf("ssp: mask length mismatch (I %d, N %d)", len(m.MaskI), len(m.MaskN))
	}
	for i := range m.MaskI {
		if m.MaskI[i] < 0 || m.MaskI[i] > 1 {
			return fmt.Errorf("ssp: mask_I[%d]=%g outside [0,1]", i, m.MaskI[i])
		}
		if m.MaskN[i] < 0 || m.MaskN[i] > 1 {
			return fmt.Errorf("ssp: mask_N[%d]=%g outside [0,1]", i, m.MaskN[i])
		}
		if m.MaskI[i]+m.MaskN[i] > 1 {
			return fmt.Errorf("ssp: mask_I[%d]+mask_N[%d]=%g exceeds 1", i, i, m.MaskI[i]+m.MaskN[i])
		}
	}
	return nil
}
