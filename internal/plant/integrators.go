package plant

type Euler struct{}

func (Euler) Step(m Model, x State, u Control, t, dt float64) State {
	dx := m.Derive(x, u, t)
	next := make(State, len(x))
	for i := range x {
		next[i] = x[i] + dt*dx[i]
	}
	return next
}

// RK4 is the classic fourth-order Runge-Kutta method. Scratch buffers are
// reused between steps, so an RK4 must not be shared between goroutines.
type RK4 struct {
	k1, k2, k3, k4 State
	scratch        State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(State, n)
		r.k2 = make(State, n)
		r.k3 = make(State, n)
		r.k4 = make(State, n)
		r.scratch = make(State, n)
	}
}

func (r *RK4) stage(m Model, x, k State, u Control, t, h float64, out State) {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	copy(out, m.Derive(r.scratch, u, t+h))
}

func (r *RK4) Step(m Model, x State, u Control, t, dt float64) State {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, m.Derive(x, u, t))
	r.stage(m, x, r.k1, u, t, dt*0.5, r.k2)
	r.stage(m, x, r.k2, u, t, dt*0.5, r.k3)
	r.stage(m, x, r.k3, u, t, dt, r.k4)

	result := make(State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result
}
