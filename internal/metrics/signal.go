package metrics

import (
	"math"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// Stability is the fraction of steps on which a probed signal stayed
// within ±threshold.
type Stability struct {
	name       string
	probe      func() float64
	threshold  float64
	violations int
	samples    int
}

func NewStability(name string, probe func() float64, threshold float64) *Stability {
	return &Stability{
		name:      name + "_stability",
		probe:     probe,
		threshold: threshold,
	}
}

func (s *Stability) Name() string { return s.name }

func (s *Stability) Observe(dynsys.SystemStateInfo, time.Duration) {
	s.samples++
	if v := s.probe(); math.IsNaN(v) || math.Abs(v) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// ControlEffort is the mean absolute value of a probed command.
type ControlEffort struct {
	name    string
	probe   func() float64
	sum     float64
	samples int
}

func NewControlEffort(name string, probe func() float64) *ControlEffort {
	return &ControlEffort{name: name + "_effort", probe: probe}
}

func (c *ControlEffort) Name() string { return c.name }

func (c *ControlEffort) Observe(dynsys.SystemStateInfo, time.Duration) {
	c.sum += math.Abs(c.probe())
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// TrackingError is the RMS distance between a probed signal and a target.
type TrackingError struct {
	name    string
	probe   func() float64
	target  float64
	sumSq   float64
	samples int
}

func NewTrackingError(name string, probe func() float64, target float64) *TrackingError {
	return &TrackingError{name: name + "_rms_error", probe: probe, target: target}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(dynsys.SystemStateInfo, time.Duration) {
	d := e.probe() - e.target
	e.sumSq += d * d
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.samples))
}

func (e *TrackingError) Reset() {
	e.sumSq = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation of a probed energy from
// its first sample.
type EnergyDrift struct {
	probe    func() (float64, bool)
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(probe func() (float64, bool)) *EnergyDrift {
	return &EnergyDrift{probe: probe}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(dynsys.SystemStateInfo, time.Duration) {
	energy, ok := e.probe()
	if !ok {
		return
	}
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
