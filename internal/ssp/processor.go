// Package ssp implements the per-role semantic state processor: one
// fixed-length non-negative field per ternary role, with derived
// metrics recomputed once per committed step. The roles share the
// I/N/U vocabulary with the symbolic pipeline but carry numeric mass
// instead of labels.
package ssp

import (
	"fmt"
	"math"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
)

// MaxScaleFactor caps the multiplicative scale any single corrective
// operation may apply to a field. Guards against blow-up when a
// denominator is near zero.
const MaxScaleFactor = 10.0

// Metrics are the per-field figures recomputed by CommitStep.
type Metrics struct {
	// Stability is the semantic headroom 1 - clamp01(total/capacity).
	Stability float64 `json:"stability"`
	// Coherence is the field uniformity 1/(1+variance).
	Coherence float64 `json:"coherence"`
	// Divergence is the mean absolute neighbor difference.
	Divergence float64 `json:"divergence"`
}

// Processor owns one role's field. The field is exclusively owned by
// one external producer during its write phase; mutual exclusion with
// the Mixer's collapse on the U field is the caller's contract, not
// handled here.
type Processor struct {
	role     ir.Ternary
	step     uint64
	capacity float64
	field    []float64
	metrics  Metrics
}

// NewProcessor allocates a zeroed field of the given length.
func NewProcessor(role ir.Ternary, fieldLen int, capacity float64) (*Processor, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("ssp: invalid role %q", role)
	}
	if fieldLen <= 0 {
		return nil, fmt.Errorf("ssp: field length must be positive, got %d", fieldLen)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("ssp: capacity must be non-negative, got %g", capacity)
	}
	return &Processor{
		role:     role,
		capacity: capacity,
		field:    make([]float64, fieldLen),
	}, nil
}

func (p *Processor) Role() ir.Ternary { return p.role }
func (p *Processor) Step() uint64     { return p.step }
func (p *Processor) FieldLen() int    { return len(p.field) }
func (p *Processor) Capacity() float64 {
	return p.capacity
}

// Metrics returns the figures computed by the most recent CommitStep.
func (p *Processor) Metrics() Metrics { return p.metrics }

// Field exposes the backing field for the producer's write phase.
func (p *Processor) Field() []float64 { return p.field }

// SetField swaps the backing storage for a host-supplied buffer of the
// same length.
func (p *Processor) SetField(buf []float64) error {
	if len(buf) != len(p.field) {
		return fmt.Errorf("ssp: buffer length %d does not match field length %d", len(buf), len(p.field))
	}
	p.field = buf
	return nil
}

// TotalMass sums the field.
func (p *Processor) TotalMass() float64 {
	sum := 0.0
	for _, v := range p.field {
		sum += v
	}
	return sum
}

// CommitStep recomputes the metrics and advances the step counter.
func (p *Processor) CommitStep() {
	p.computeMetrics()
	p.step++
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func (p *Processor) computeMetrics() {
	n := len(p.field)
	sum := p.field[0]
	sumSq := p.field[0] * p.field[0]
	div := 0.0
	for i := 1; i < n; i++ {
		sum += p.field[i]
		sumSq += p.field[i] * p.field[i]
		div += math.Abs(p.field[i] - p.field[i-1])
	}

	load := 1.0
	if p.capacity > 0 {
		load = sum / p.capacity
	}
	p.metrics.Stability = 1.0 - clamp01(load)

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0 // numerical safety
	}
	p.metrics.Coherence = 1.0 / (1.0 + variance)

	if n > 1 {
		p.metrics.Divergence = div / float64(n-1)
	} else {
		p.metrics.Divergence = 0
	}
}

// RouteFromField adds alpha*mask[i]*src[i] per cell. Negative deltas
// are clamped to zero so a corrupt source can never drain this field.
func (p *Processor) RouteFromField(src, mask []float64, alpha float64) error {
	if len(src) != len(p.field) || len(mask) != len(p.field) {
		return fmt.Errorf("ssp: route length mismatch (src %d, mask %d, field %d)", len(src), len(mask), len(p.field))
	}
	if alpha < 0 {
		return fmt.Errorf("ssp: route alpha must be non-negative, got %g", alpha)
	}
	for i := range p.field {
		if mask[i] < 0 || mask[i] > 1 {
			return fmt.Errorf("ssp: route mask[%d]=%g outside [0,1]", i, mask[i])
		}
		delta := alpha * mask[i] * src[i]
		if delta < 0 {
			delta = 0
		}
		p.field[i] += delta
	}
	return nil
}

// RouteFromSSP routes from another processor's field.
func (p *Processor) RouteFromSSP(src *Processor, mask []float64, alpha float64) error {
	return p.RouteFromField(src.field, mask, alpha)
}

// ApplyCollapse subtracts clamp(mask[i]*amount, 0, field[i]) per cell.
// Legal only on role U. There is no inverse operation: mass removed
// here never returns.
func (p *Processor) ApplyCollapse(mask []float64, amount float64) error {
	if p.role != ir.TernaryU {
		return fmt.Errorf("ssp: apply collapse requires role U, have %q", p.role)
	}
	if len(mask) != len(p.field) {
		return fmt.Errorf("ssp: collapse mask length %d does not match field length %d", len(mask), len(p.field))
	}
	for i := range p.field {
		if mask[i] < 0 || mask[i] > 1 {
			return fmt.Errorf("ssp: collapse mask[%d]=%g outside [0,1]", i, mask[i])
		}
		delta := mask[i] * amount
		if delta < 0 {
			delta = 0
		}
		if delta > p.field[i] {
			delta = p.field[i]
		}
		p.field[i] -= delta
	}
	return nil
}

// ApplyCollapseMask subtracts alpha*(maskI[i]+maskN[i])*field[i] per
// cell, clamped so no cell underflows. Legal only on role U.
func (p *Processor) ApplyCollapseMask(mask CollapseMask, alpha float64) error {
	if p.role != ir.TernaryU {
		return fmt.Errorf("ssp: apply collapse requires role U, have %q", p.role)
	}
	if len(mask.MaskI) != len(p.field) || len(mask.MaskN) != len(p.field) {
		return fmt.Errorf("ssp: collapse mask length does not match field length %d", len(p.field))
	}
	if err := mask.Validate(); err != nil {
		return err
	}
	if alpha < 0 {
		return fmt.Errorf("ssp: collapse alpha must be non-negative, got %g", alpha)
	}
	if alpha > 1 {
		alpha = 1
	}
	for i := range p.field {
		total := mask.MaskI[i] + mask.MaskN[i]
		if total > 1 {
			total = 1
		}
		delta := alpha * total * p.field[i]
		if delta > p.field[i] {
			delta = p.field[i]
		}
		p.field[i] -= delta
	}
	return nil
}

// ScaleAll multiplies every cell by scale. The scale is capped by
// MaxScaleFactor.
func (p *Processor) ScaleAll(scale float64) error {
	if scale < 0 {
		return fmt.Errorf("ssp: scale must be non-negative, got %g", scale)
	}
	if scale > MaxScaleFactor {
		return fmt.Errorf("ssp: scale factor %g exceeds cap %g", scale, MaxScaleFactor)
	}
	for i := range p.field {
		p.field[i] *= scale
	}
	return nil
}

// AddUniform adds the same amount of mass to every cell.
func (p *Processor) AddUniform(amountPerCell float64) error {
	if amountPerCell < 0 {
		return fmt.Errorf("ssp: uniform amount must be non-negative, got %g", amountPerCell)
	}
	for i := range p.field {
		p.field[i] += amountPerCell
	}
	return nil
}
