package plant

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a carriage on a damped spring pushed by a linear actuator
// whose force is limited to MaxForce. A position sensor reports the
// carriage displacement. State is [position, velocity].
type SpringMass struct {
	Mass      float64
	Stiffness float64
	Damping   float64
	// MaxForce is the actuator force limit in N; 0 leaves it unbounded.
	MaxForce float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Damping:   DefaultDamping,
	}
}

func (s *SpringMass) StateDim() int   { return 2 }
func (s *SpringMass) ControlDim() int { return 1 }

func (s *SpringMass) StateNames() []string   { return []string{"position", "velocity"} }
func (s *SpringMass) ControlNames() []string { return []string{"force"} }

// Force is the force the actuator delivers for command u.
func (s *SpringMass) Force(u Control) float64 { return saturate(u, 0, s.MaxForce) }

func (s *SpringMass) Derive(x State, u Control, t float64) State {
	pos, vel := x[0], x[1]
	return State{vel, (s.Force(u) - s.Stiffness*pos - s.Damping*vel) / s.Mass}
}

func (s *SpringMass) Energy(x State) float64 {
	return 0.5*s.Mass*x[1]*x[1] + 0.5*s.Stiffness*x[0]*x[0]
}

// Equilibrium is the rest position under a constant command u.
func (s *SpringMass) Equilibrium(u Control) float64 { return s.Force(u) / s.Stiffness }

func (s *SpringMass) params() paramTable {
	return paramTable{
		{"mass", &s.Mass, positive},
		{"stiffness", &s.Stiffness, positive},
		{"damping", &s.Damping, nonNegative},
		{"max_force", &s.MaxForce, nonNegative},
	}
}

func (s *SpringMass) Params() map[string]float64 { return s.params().values() }

func (s *SpringMass) SetParam(name string, value float64) error {
	return s.params().set(name, value)
}
