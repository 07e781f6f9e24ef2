package metrics

import (
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// StepLatency is the mean step duration in milliseconds.
type StepLatency struct {
	total   time.Duration
	max     time.Duration
	samples int
}

func NewStepLatency() *StepLatency { return &StepLatency{} }

func (l *StepLatency) Name() string { return "step_latency_ms" }

func (l *StepLatency) Observe(_ dynsys.SystemStateInfo, took time.Duration) {
	l.total += took
	if took > l.max {
		l.max = took
	}
	l.samples++
}

func (l *StepLatency) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return float64(l.total) / float64(l.samples) / float64(time.Millisecond)
}

// Max returns the slowest step seen.
func (l *StepLatency) Max() time.Duration { return l.max }

func (l *StepLatency) Reset() { *l = StepLatency{} }

// OverrunRatio is the fraction of steps that took longer than the interval.
type OverrunRatio struct {
	interval time.Duration
	overruns int
	samples  int
}

func NewOverrunRatio(interval time.Duration) *OverrunRatio {
	return &OverrunRatio{interval: interval}
}

func (o *OverrunRatio) Name() string { return "overrun_ratio" }

func (o *OverrunRatio) Observe(_ dynsys.SystemStateInfo, took time.Duration) {
	o.samples++
	if took > o.interval {
		o.overruns++
	}
}

func (o *OverrunRatio) Value() float64 {
	if o.samples == 0 {
		return 0
	}
	return float64(o.overruns) / float64(o.samples)
}

func (o *OverrunRatio) Reset() {
	o.overruns = 0
	o.samples = 0
}

// TickJitter is the largest gap, in ticks, between consecutive steps minus
// one. It stays 0 unless ticks were skipped.
type TickJitter struct {
	last    uint64
	max     uint64
	samples int
}

func NewTickJitter() *TickJitter { return &TickJitter{} }

func (j *TickJitter) Name() string { return "tick_jitter" }

func (j *TickJitter) Observe(ssi dynsys.SystemStateInfo, _ time.Duration) {
	if j.samples > 0 && ssi.Tick > j.last+1 {
		if gap := ssi.Tick - j.last - 1; gap > j.max {
			j.max = gap
		}
	}
	j.last = ssi.Tick
	j.samples++
}

func (j *TickJitter) Value() float64 { return float64(j.max) }

func (j *TickJitter) Reset() { *j = TickJitter{} }
