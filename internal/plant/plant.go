// Package plant simulates the physical processes a control system is wired
// to, so block graphs can be exercised on a host without hardware.
package plant

import (
	"errors"
	"math"
)

var (
	ErrInvalidState      = errors.New("plant: invalid state (NaN or Inf detected)")
	ErrDimensionMismatch = errors.New("plant: dimension mismatch between state and model")
	ErrUnknownParam      = errors.New("plant: unknown parameter")
	ErrInvalidParam      = errors.New("plant: parameter out of range")
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// Model is a continuous-time plant dx/dt = f(x, u, t).
type Model interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Hamiltonian models report their total energy.
type Hamiltonian interface {
	Energy(x State) float64
}

// Configurable models expose named physical parameters.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

// Labeled models name their state components and control inputs. The names
// double as block names when a plant is wired into a control loop.
type Labeled interface {
	StateNames() []string
	ControlNames() []string
}

type Integrator interface {
	Step(m Model, x State, u Control, t, dt float64) State
}
