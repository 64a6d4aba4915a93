package mixer

import (
	"errors"
	"fmt"
)

// ConservationFault reports a producer overshoot the correction pass
// could not absorb: the excess over the conserved total exceeded the
// mass remaining in U. Never ignored silently; the caller decides how
// to recover.
type ConservationFault struct {
	Total     float64
	Target    float64
	Excess    float64
	Undecided float64
}

func (f *ConservationFault) Error() string {
	return fmt.Sprintf("conservation fault: total %g exceeds target %g by %g, only %g undecided mass available",
		f.Total, f.Target, f.Excess, f.Undecided)
}

// IsConservationFault reports whether err carries a ConservationFault.
func IsConservationFault(err error) bool {
	var f *ConservationFault
	return errors.As(err, &f)
}
