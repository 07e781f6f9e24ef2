package app

import (
	"io"
	"math"

	"github.com/san-kum/flowmbed/internal/blocks"
	"github.com/san-kum/flowmbed/internal/config"
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/hal/simhal"
	"github.com/san-kum/flowmbed/internal/metrics"
	"github.com/san-kum/flowmbed/internal/plant"
	"github.com/san-kum/flowmbed/internal/trace"
)

func pendulumPID(cfg *config.Config, env Env) (*Rig, map[string]any, error) {
	return plantLoop(cfg, plant.NewPendulum(), plant.State{cfg.Plant.Theta, cfg.Plant.Omega}, math.Pi)
}

func springPID(cfg *config.Config, env Env) (*Rig, map[string]any, error) {
	return plantLoop(cfg, plant.NewSpringMass(), plant.State{cfg.Plant.Pos, cfg.Plant.Vel}, 10)
}

type configurableModel interface {
	plant.Model
	plant.Configurable
	plant.Labeled
}

// plantLoop wires env -> sensor -> controller{filter -> pid} -> actuator
// around a simulated plant. The controller is a nested subsystem. The sensor
// and actuator blocks take the names of the plant's first state component
// and control input.
func plantLoop(cfg *config.Config, model configurableModel, x0 plant.State, bound float64) (*Rig, map[string]any, error) {
	measured, actuated := model.StateNames()[0], model.ControlNames()[0]
	for name, v := range cfg.Plant.Params {
		if err := model.SetParam(name, v); err != nil {
			return nil, nil, err
		}
	}
	world, err := plant.NewWorld(model, plant.NewRK4(), x0, cfg.Plant.Substep)
	if err != nil {
		return nil, nil, err
	}
	sensor, err := simhal.NewPlantSensor(world, 0)
	if err != nil {
		return nil, nil, err
	}
	actuator, err := simhal.NewPlantActuator(world, 0)
	if err != nil {
		return nil, nil, err
	}
	actuator.Limit = cfg.Plant.Limit

	c := cfg.Control
	sys := dynsys.NewSystem(cfg.System)
	env := simhal.NewWorldBlock(sys.Block("env"))
	sense := blocks.NewAnalogSensor(sys.Block(measured), 1, 0)

	ctrl := sys.Subsystem("controller")
	filter := blocks.NewLowPass(ctrl.Block("filter"), dynsys.Float(c.Alpha))
	pid := blocks.NewPID(ctrl.Block("pid"), blocks.PIDGains{
		Kp:       dynsys.Float(c.Kp),
		Ki:       dynsys.Float(c.Ki),
		Kd:       dynsys.Float(c.Kd),
		Setpoint: dynsys.Float(c.Setpoint),
		Limit:    dynsys.Float(c.Limit),
	})
	act := blocks.NewActuator(sys.Block(actuated), 0)

	if err := addAll(ctrl, filter, pid); err != nil {
		return nil, nil, err
	}
	if err := addAll(sys, env, sense, ctrl, act); err != nil {
		return nil, nil, err
	}
	if err := firstErr(
		dynsys.Connect(sys, sense.Output, filter.Input),
		dynsys.Connect(ctrl, filter.Output, pid.Measurement),
		dynsys.Connect(sys, pid.Command, act.Command),
	); err != nil {
		return nil, nil, err
	}

	read := func() float64 { return world.Component(0) }
	command := trace.Output("command", pid.Command)
	rig := &Rig{
		System: sys,
		World:  world,
		Probes: []trace.Probe{
			trace.Func(measured, read),
			trace.Output("filtered", filter.Output),
			command,
		},
		Metrics: metrics.NewSet(
			metrics.NewStability(measured, read, bound),
			metrics.NewTrackingError(measured, read, c.Setpoint),
			metrics.NewControlEffort(actuated, command.Read),
			metrics.NewEnergyDrift(world.Energy),
		),
	}
	drivers := map[string]any{
		"env.world":          world,
		measured + ".sensor": sensor,
		actuated + ".sink":   actuator,
	}
	return rig, drivers, nil
}

func oneShot(cfg *config.Config, env Env) (*Rig, map[string]any, error) {
	sys := dynsys.NewSystem(cfg.System)
	button := blocks.NewOneShotDigital(sys.Block("button"))
	edges := blocks.NewEdgeCounter(sys.Block("edges"))
	if err := addAll(sys, button, edges); err != nil {
		return nil, nil, err
	}
	if err := dynsys.Connect(sys, button.Output, edges.Input); err != nil {
		return nil, nil, err
	}

	rig := &Rig{
		System: sys,
		Probes: []trace.Probe{
			trace.Output("button", button.Output),
			trace.Output("edges", edges.Count),
		},
		Metrics: metrics.NewSet(),
	}
	return rig, map[string]any{"button.sensor": simhal.NewSequenceDigital(cfg.Inputs.Sequence...)}, nil
}

func multiChannel(cfg *config.Config, env Env) (*Rig, map[string]any, error) {
	waves := make([]simhal.Wave, len(cfg.Inputs.Waves))
	for i, w := range cfg.Inputs.Waves {
		waves[i] = simhal.Wave{Amplitude: w.Amplitude, Frequency: w.Frequency, Phase: w.Phase, Offset: w.Offset}
	}
	adc := simhal.NewWaveADC(env.Clock, waves...)

	serial := env.Serial
	if serial == nil {
		serial = io.Discard
	}

	sys := dynsys.NewSystem(cfg.System)
	daq := blocks.NewMultiChannelSensor(sys.Block("adc"), len(waves))
	filter := blocks.NewLowPass(sys.Block("filter"), dynsys.Float(cfg.Control.Alpha))
	out := blocks.NewActuator(sys.Block("serial"), 0)
	if err := addAll(sys, daq, filter, out); err != nil {
		return nil, nil, err
	}
	if len(daq.Outputs) > 0 {
		if err := firstErr(
			dynsys.Connect(sys, daq.Outputs[0], filter.Input),
			dynsys.Connect(sys, filter.Output, out.Command),
		); err != nil {
			return nil, nil, err
		}
	}

	rig := &Rig{System: sys, Metrics: metrics.NewSet()}
	for _, o := range daq.Outputs {
		rig.Probes = append(rig.Probes, trace.Output(o.Name(), o))
	}
	rig.Probes = append(rig.Probes, trace.Output("filtered", filter.Output))

	drivers := map[string]any{
		"adc.adc":     adc,
		"serial.sink": simhal.NewSerialValueSink(serial, "ch0"),
	}
	return rig, drivers, nil
}

func addAll(sys *dynsys.System, bs ...dynsys.Block) error {
	for _, b := range bs {
		if err := sys.Add(b); err != nil {
			return err
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
