package blocks

import (
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/peripherals"
)

// Actuator forwards its input to an output peripheral every step. At init
// it writes the input's default, putting the hardware in a known state.
type Actuator struct {
	dynsys.BlockBase
	Command *dynsys.Input[dynsys.Float]
	Applied *dynsys.Output[dynsys.Float]
	sink    *dynsys.Peripheral[peripherals.ValueSink]
}

func NewActuator(bb *dynsys.BlockBuilder, safe dynsys.Float) *Actuator {
	return &Actuator{
		BlockBase: dynsys.NewBlockBase(bb),
		Command:   dynsys.NewInput(bb, "command", safe),
		Applied:   dynsys.NewOutput[dynsys.Float](bb, "applied"),
		sink:      dynsys.RequirePeripheral[peripherals.ValueSink](bb, "sink", dynsys.DirOutput),
	}
}

func (a *Actuator) Init() error {
	v := a.Command.Get()
	if err := a.sink.Get().Write(v); err != nil {
		return err
	}
	return a.Applied.Initialize(v)
}

func (a *Actuator) Step(ssi *dynsys.SystemStateInfo) error {
	v := a.Command.Get()
	if err := a.sink.Get().Write(v); err != nil {
		return err
	}
	a.Applied.Update(v, ssi)
	return nil
}
