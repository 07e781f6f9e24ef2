package plant

import (
	"fmt"
	"sync"
)

// World advances a model in real or logical time. Sensor and actuator
// drivers read the state and set the control input through it; the control
// input is held constant between advances.
type World struct {
	mu    sync.Mutex
	model Model
	integ Integrator
	x     State
	u     Control
	t     float64
	// h is the largest integration sub-step in seconds.
	h float64
}

// NewWorld returns a world at x0 with zero control. h bounds the
// integration sub-step in seconds.
func NewWorld(model Model, integ Integrator, x0 State, h float64) (*World, error) {
	if len(x0) != model.StateDim() {
		return nil, fmt.Errorf("%w: state has %d components, model needs %d",
			ErrDimensionMismatch, len(x0), model.StateDim())
	}
	if h <= 0 {
		return nil, fmt.Errorf("sub-step must be positive, got %f", h)
	}
	if integ == nil {
		integ = NewRK4()
	}
	return &World{
		model: model,
		integ: integ,
		x:     x0.Clone(),
		u:     make(Control, model.ControlDim()),
		h:     h,
	}, nil
}

func (w *World) Model() Model { return w.model }

// State returns a copy of the current state.
func (w *World) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.x.Clone()
}

// Component returns state component i.
func (w *World) Component(i int) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.x[i]
}

func (w *World) Time() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

// SetControl sets control input i.
func (w *World) SetControl(i int, v float64) {
	w.mu.Lock()
	w.u[i] = v
	w.mu.Unlock()
}

func (w *World) Control() Control {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := make(Control, len(w.u))
	copy(c, w.u)
	return c
}

// AdvanceTo integrates until time target in seconds. A target in the past
// is a no-op.
func (w *World) AdvanceTo(target float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.t < target {
		dt, next := target-w.t, target
		if dt > w.h {
			dt, next = w.h, w.t+w.h
		}
		w.x = w.integ.Step(w.model, w.x, w.u, w.t, dt)
		w.t = next
		if !w.x.IsValid() {
			return fmt.Errorf("%w at t=%.4f", ErrInvalidState, w.t)
		}
	}
	return nil
}

// Energy returns the total energy, or false when the model has none.
func (w *World) Energy() (float64, bool) {
	h, ok := w.model.(Hamiltonian)
	if !ok {
		return 0, false
	}
	return h.Energy(w.State()), true
}
