// Package metrics scores a run from the runner's per-step notifications.
package metrics

import (
	"sort"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// Metric accumulates one figure over a run.
type Metric interface {
	Name() string
	Observe(ssi dynsys.SystemStateInfo, took time.Duration)
	Value() float64
	Reset()
}

// Set forwards runner notifications to a group of metrics. It implements
// dynsys.StepObserver.
type Set struct {
	metrics []Metric
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

func (s *Set) Add(m Metric) { s.metrics = append(s.metrics, m) }

func (s *Set) OnStep(ssi dynsys.SystemStateInfo, took time.Duration) {
	for _, m := range s.metrics {
		m.Observe(ssi, took)
	}
}

// Values returns every metric's current value by name.
func (s *Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Names returns the metric names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.metrics))
	for _, m := range s.metrics {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

func (s *Set) Reset() {
	for _, m := range s.metrics {
		m.Reset()
	}
}
