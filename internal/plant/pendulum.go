package plant

import "math"

// Pendulum is an arm swinging about a motor shaft. The motor applies a
// torque limited to MaxTorque, viscous friction acts at the shaft, and the
// encoder reports the arm angle. State is [angle, rate].
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
	// MaxTorque is the motor stall torque in N·m; 0 leaves it unbounded.
	MaxTorque float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }

func (p *Pendulum) StateNames() []string   { return []string{"angle", "rate"} }
func (p *Pendulum) ControlNames() []string { return []string{"torque"} }

// inertia is the arm's moment of inertia about the shaft, as a point mass.
func (p *Pendulum) inertia() float64 { return p.Mass * p.Length * p.Length }

// Torque is the shaft torque the motor delivers for command u.
func (p *Pendulum) Torque(u Control) float64 { return saturate(u, 0, p.MaxTorque) }

func (p *Pendulum) Derive(x State, u Control, t float64) State {
	angle, rate := x[0], x[1]
	gravity := p.Mass * p.Gravity * p.Length * math.Sin(angle)
	return State{rate, (p.Torque(u) - p.Damping*rate - gravity) / p.inertia()}
}

func (p *Pendulum) Energy(x State) float64 {
	kinetic := 0.5 * p.inertia() * x[1] * x[1]
	potential := p.Mass * p.Gravity * p.Length * (1 - math.Cos(x[0]))
	return kinetic + potential
}

// HoldingTorque is the static torque needed to hold the arm at angle.
func (p *Pendulum) HoldingTorque(angle float64) float64 {
	return p.Mass * p.Gravity * p.Length * math.Sin(angle)
}

func (p *Pendulum) params() paramTable {
	return paramTable{
		{"mass", &p.Mass, positive},
		{"length", &p.Length, positive},
		{"damping", &p.Damping, nonNegative},
		{"gravity", &p.Gravity, anyValue},
		{"max_torque", &p.MaxTorque, nonNegative},
	}
}

func (p *Pendulum) Params() map[string]float64 { return p.params().values() }

func (p *Pendulum) SetParam(name string, value float64) error {
	return p.params().set(name, value)
}
