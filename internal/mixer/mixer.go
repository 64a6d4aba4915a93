// Package mixer arbitrates the three role fields. The Mixer owns no
// field data: Step is a read-only observation pass, and RequestCollapse
// is the single mutating entry point, the only place mass ever leaves
// U. I->U, N->U, and I<->N transfers have no API at all.
package mixer

import (
	"fmt"
	"math"

	"github.com/popslovesmusic/airs-sub008/internal/ir"
	"github.com/popslovesmusic/airs-sub008/internal/ssp"
)

// Config are the mixer tuning parameters.
type Config struct {
	// EpsConservation tolerates |I+N+U - C| up to this bound.
	EpsConservation float64
	// EpsDelta tolerates per-tick |dI| and |dU| up to this bound.
	EpsDelta float64
	// K is the number of consecutive clean ticks required before
	// transport_ready raises.
	K int
	// EMAAlpha smooths the loop gain.
	EMAAlpha float64
}

// DefaultConfig returns the standard tolerances: K=5 and tolerances
// scaled later to the conserved mass.
func DefaultConfig() Config {
	return Config{
		EpsConservation: 1e-6,
		EpsDelta:        1e-6,
		K:               5,
		EMAAlpha:        0.1,
	}
}

// Metrics is the observable state emitted each step.
type Metrics struct {
	LoopGain          float64 `json:"loop_gain"`
	AdmissibleVolume  float64 `json:"admissible_volume"`
	ExcludedVolume    float64 `json:"excluded_volume"`
	UndecidedVolume   float64 `json:"undecided_volume"`
	CollapseRatio     float64 `json:"collapse_ratio"`
	ConservationError float64 `json:"conservation_error"`
	TransportReady    bool    `json:"transport_ready"`
}

// Mixer tracks the conservation invariant over the three processors.
type Mixer struct {
	c   float64
	cfg Config

	initialized bool
	u0          float64
	prevI       float64
	prevU       float64
	stableCount int

	metrics Metrics
}

// New builds a mixer for the conserved total mass C. The default
// tolerances scale with max(C, 1).
func New(totalMass float64, cfg Config) (*Mixer, error) {
	if totalMass <= 0 {
		return nil, fmt.Errorf("mixer: total mass must be positive, got %g", totalMass)
	}
	if cfg.EpsConservation < 0 || cfg.EpsDelta < 0 {
		return nil, fmt.Errorf("mixer: tolerances must be non-negative")
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("mixer: K must be positive, got %d", cfg.K)
	}
	if cfg.EMAAlpha < 0 || cfg.EMAAlpha > 1 {
		return nil, fmt.Errorf("mixer: ema alpha %g outside [0,1]", cfg.EMAAlpha)
	}
	scale := math.Max(totalMass, 1)
	if cfg.EpsConservation == 1e-6 {
		cfg.EpsConservation = 1e-6 * scale
	}
	if cfg.EpsDelta == 1e-6 {
		cfg.EpsDelta = 1e-6 * scale
	}
	return &Mixer{c: totalMass, cfg: cfg}, nil
}

// Metrics returns the figures from the most recent step.
func (m *Mixer) Metrics() Metrics { return m.metrics }

// Config returns the effective (scaled) tuning parameters.
func (m *Mixer) Config() Config { return m.cfg }

func (m *Mixer) checkTriple(sspI, sspN, sspU *ssp.Processor) error {
	if sspI.Role() != ir.TernaryI || sspN.Role() != ir.TernaryN || sspU.Role() != ir.TernaryU {
		return fmt.Errorf("mixer: role mismatch (%q, %q, %q)", sspI.Role(), sspN.Role(), sspU.Role())
	}
	if sspI.FieldLen() != sspU.FieldLen() || sspN.FieldLen() != sspU.FieldLen() {
		return fmt.Errorf("mixer: field length mismatch (%d, %d, %d)", sspI.FieldLen(), sspN.FieldLen(), sspU.FieldLen())
	}
	return nil
}

// Step is a read-only observation pass. It never writes any field;
// correcting an overshoot is RequestCollapse's job.
func (m *Mixer) Step(sspI, sspN, sspU *ssp.Processor) error {
	if err := m.checkTriple(sspI, sspN, sspU); err != nil {
		return err
	}

	i := sspI.TotalMass()
	n := sspN.TotalMass()
	u := sspU.TotalMass()
	total := i + n + u

	m.metrics.AdmissibleVolume = i
	m.metrics.ExcludedVolume = n
	m.metrics.UndecidedVolume = u
	m.metrics.ConservationError = math.Abs(total - m.c)

	if !m.initialized {
		m.initialized = true
		m.u0 = u
		m.prevI = i
		m.prevU = u
		m.stableCount = 0
		m.metrics.LoopGain = 0
		m.metrics.CollapseRatio = 0
		m.metrics.TransportReady = false
		return nil
	}

	// Collapse ratio is the fraction of the initial U mass permanently
	// committed; it never decreases.
	if m.u0 > 0 {
		ratio := (m.u0 - u) / m.u0
		if ratio > m.metrics.CollapseRatio {
			m.metrics.CollapseRatio = ratio
		}
	}

	dI := i - m.prevI
	dU := m.prevU - u
	denom := math.Max(math.Abs(dU), 1e-12)
	instGain := dI / denom
	m.metrics.LoopGain = (1-m.cfg.EMAAlpha)*m.metrics.LoopGain + m.cfg.EMAAlpha*instGain

	// Hysteresis, not a one-shot threshold: transport_ready needs K
	// consecutive clean ticks, and one violation resets the streak.
	stableNow := m.metrics.ConservationError <= m.cfg.EpsConservation &&
		math.Abs(dI) <= m.cfg.EpsDelta &&
		math.Abs(u-m.prevU) <= m.cfg.EpsDelta
	if stableNow {
		m.stableCount++
	} else {
		m.stableCount = 0
	}
	m.metrics.TransportReady = m.stableCount >= m.cfg.K

	m.prevI = i
	m.prevU = u
	return nil
}

// RequestCollapse routes alpha*M_I(x)*U(x) to I and alpha*M_N(x)*U(x)
// to N, then permanently removes exactly the routed mass from U. On a
// producer overshoot (I+N+U > C) it additionally sinks the excess out
// of U; an excess larger than U's remaining mass surfaces as a
// ConservationFault. On an undershoot the deficit is restored into U,
// scaled up within the processor's cap, or added uniformly when U is
// empty.
func (m *Mixer) RequestCollapse(sspI, sspN, sspU *ssp.Processor, mask ssp.CollapseMask, alpha float64) error {
	if err := m.checkTriple(sspI, sspN, sspU); err != nil {
		return err
	}
	if err := mask.Validate(); err != nil {
		return err
	}
	if len(mask.MaskI) != sspU.FieldLen() {
		return fmt.Errorf("mixer: mask length %d does not match field length %d", len(mask.MaskI), sspU.FieldLen())
	}
	if alpha < 0 {
		return fmt.Errorf("mixer: alpha must be non-negative, got %g", alpha)
	}
	if alpha > 1 {
		alpha = 1
	}

	if err := sspI.RouteFromSSP(sspU, mask.MaskI, alpha); err != nil {
		return err
	}
	if err := sspN.RouteFromSSP(sspU, mask.MaskN, alpha); err != nil {
		return err
	}
	if err := sspU.ApplyCollapseMask(mask, alpha); err != nil {
		return err
	}

	// Conservation correction pass.
	total := sspI.TotalMass() + sspN.TotalMass() + sspU.TotalMass()
	excess := total - m.c
	switch {
	case excess > m.cfg.EpsConservation:
		u := sspU.TotalMass()
		if excess > u {
			return &ConservationFault{Total: total, Target: m.c, Excess: excess, Undecided: u}
		}
		correction := ssp.CollapseMask{
			MaskI: onesMask(sspU.FieldLen()),
			MaskN: make([]float64, sspU.FieldLen()),
		}
		return sspU.ApplyCollapseMask(correction, excess/u)
	case excess < -m.cfg.EpsConservation:
		// Undershoot: restore the deficit into U. I and N are committed
		// mass and are never touched.
		deficit := -excess
		u := sspU.TotalMass()
		if u == 0 {
			return sspU.AddUniform(deficit / float64(sspU.FieldLen()))
		}
		scale := (u + deficit) / u
		if scale > ssp.MaxScaleFactor {
			scale = ssp.MaxScaleFactor
		}
		return sspU.ScaleAll(scale)
	}
	return nil
}

func onesMask(n int) []float64 {
	m := make([]float64, n)
	for i := range m {
		m[i] = 1
	}
	return m
}
