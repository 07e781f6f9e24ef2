package plant

import (
	"fmt"
	"math"
	"sort"
)

// bound is the admissible range of a physical parameter.
type bound int

const (
	anyValue bound = iota
	nonNegative
	positive
)

func (b bound) admits(v float64) bool {
	switch b {
	case positive:
		return v > 0
	case nonNegative:
		return v >= 0
	}
	return true
}

func (b bound) String() string {
	switch b {
	case positive:
		return "> 0"
	case nonNegative:
		return ">= 0"
	}
	return "finite"
}

// param ties a parameter name to the model field it sets.
type param struct {
	name  string
	field *float64
	bound bound
}

// paramTable backs Configurable for the built-in models.
type paramTable []param

func (t paramTable) values() map[string]float64 {
	m := make(map[string]float64, len(t))
	for _, p := range t {
		m[p.name] = *p.field
	}
	return m
}

func (t paramTable) set(name string, v float64) error {
	for _, p := range t {
		if p.name != name {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || !p.bound.admits(v) {
			return fmt.Errorf("%w: %s = %g, want %s", ErrInvalidParam, name, v, p.bound)
		}
		*p.field = v
		return nil
	}
	return fmt.Errorf("%w: %s (available: %v)", ErrUnknownParam, name, t.names())
}

func (t paramTable) names() []string {
	names := make([]string, len(t))
	for i, p := range t {
		names[i] = p.name
	}
	sort.Strings(names)
	return names
}

// saturate clamps an actuator input to ±limit. A zero limit is unbounded.
func saturate(u Control, i int, limit float64) float64 {
	if i >= len(u) {
		return 0
	}
	if limit > 0 {
		return math.Max(-limit, math.Min(limit, u[i]))
	}
	return u[i]
}
