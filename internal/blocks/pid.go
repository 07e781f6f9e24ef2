package blocks

import "github.com/san-kum/flowmbed/internal/dynsys"

// PIDGains holds the tuning of a PID block. Limit clamps the command to
// ±Limit when positive.
type PIDGains struct {
	Kp, Ki, Kd dynsys.Float
	Setpoint   dynsys.Float
	Limit      dynsys.Float
}

// PID drives Measurement toward Setpoint. The integral is not accumulated
// while the command is saturated.
type PID struct {
	dynsys.BlockBase
	Kp, Ki, Kd  *dynsys.Parameter[dynsys.Float]
	Setpoint    *dynsys.Parameter[dynsys.Float]
	Limit       *dynsys.Parameter[dynsys.Float]
	Measurement *dynsys.Input[dynsys.Float]
	Command     *dynsys.Output[dynsys.Float]

	integral *dynsys.DiscreteState[dynsys.Float]
	prevErr  *dynsys.DiscreteState[dynsys.Float]
	primed   *dynsys.DiscreteState[dynsys.Bool]
}

func NewPID(bb *dynsys.BlockBuilder, g PIDGains) *PID {
	return &PID{
		BlockBase:   dynsys.NewBlockBase(bb),
		Kp:          dynsys.NewParameter(bb, "kp", g.Kp),
		Ki:          dynsys.NewParameter(bb, "ki", g.Ki),
		Kd:          dynsys.NewParameter(bb, "kd", g.Kd),
		Setpoint:    dynsys.NewParameter(bb, "setpoint", g.Setpoint),
		Limit:       dynsys.NewParameter(bb, "limit", g.Limit),
		Measurement: dynsys.NewInput[dynsys.Float](bb, "measurement", 0),
		Command:     dynsys.NewOutput[dynsys.Float](bb, "command"),
		integral:    dynsys.NewDiscreteState[dynsys.Float](bb, "integral"),
		prevErr:     dynsys.NewDiscreteState[dynsys.Float](bb, "prev_err"),
		primed:      dynsys.NewDiscreteState[dynsys.Bool](bb, "primed"),
	}
}

func (p *PID) Init() error {
	for _, s := range []*dynsys.DiscreteState[dynsys.Float]{p.integral, p.prevErr} {
		if err := s.Initialize(0); err != nil {
			return err
		}
	}
	if err := p.primed.Initialize(false); err != nil {
		return err
	}
	return p.Command.Initialize(0)
}

func (p *PID) Step(ssi *dynsys.SystemStateInfo) error {
	e := p.Setpoint.Get() - p.Measurement.Get()

	if !p.primed.Get() {
		p.primed.Update(true)
		p.prevErr.Update(e)
		p.Command.Update(p.clamp(p.Kp.Get()*e), ssi)
		return nil
	}

	dt := dynsys.Float(ssi.Dt.Seconds())
	if dt <= 0 {
		p.Command.Update(p.clamp(p.Kp.Get()*e), ssi)
		return nil
	}

	integral := p.integral.Get() + e*dt
	derivative := (e - p.prevErr.Get()) / dt
	u := p.Kp.Get()*e + p.Ki.Get()*integral + p.Kd.Get()*derivative

	clamped := p.clamp(u)
	if clamped == u {
		p.integral.Update(integral)
	}
	p.prevErr.Update(e)
	p.Command.Update(clamped, ssi)
	return nil
}

func (p *PID) clamp(u dynsys.Float) dynsys.Float {
	limit := p.Limit.Get()
	if limit <= 0 {
		return u
	}
	if u > limit {
		return limit
	}
	if u < -limit {
		return -limit
	}
	return u
}
