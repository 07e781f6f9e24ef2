package blocks

import (
	"fmt"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/peripherals"
)

// OneShotDigital samples a digital input once per step.
type OneShotDigital struct {
	dynsys.BlockBase
	Output *dynsys.Output[dynsys.Bool]
	sensor *dynsys.Peripheral[peripherals.DigitalReader]
}

func NewOneShotDigital(bb *dynsys.BlockBuilder) *OneShotDigital {
	return &OneShotDigital{
		BlockBase: dynsys.NewBlockBase(bb),
		Output:    dynsys.NewOutput[dynsys.Bool](bb, "output"),
		sensor:    dynsys.RequirePeripheral[peripherals.DigitalReader](bb, "sensor", dynsys.DirInput),
	}
}

func (b *OneShotDigital) Init() error {
	v, err := b.sensor.Get().Read()
	if err != nil {
		return err
	}
	return b.Output.Initialize(v)
}

func (b *OneShotDigital) Step(ssi *dynsys.SystemStateInfo) error {
	v, err := b.sensor.Get().Read()
	if err != nil {
		return err
	}
	b.Output.Update(v, ssi)
	return nil
}

// AnalogSensor samples an analog input and applies gain*x + offset.
type AnalogSensor struct {
	dynsys.BlockBase
	Gain   *dynsys.Parameter[dynsys.Float]
	Offset *dynsys.Parameter[dynsys.Float]
	Output *dynsys.Output[dynsys.Float]
	sensor *dynsys.Peripheral[peripherals.AnalogReader]
}

func NewAnalogSensor(bb *dynsys.BlockBuilder, gain, offset dynsys.Float) *AnalogSensor {
	return &AnalogSensor{
		BlockBase: dynsys.NewBlockBase(bb),
		Gain:      dynsys.NewParameter(bb, "gain", gain),
		Offset:    dynsys.NewParameter(bb, "offset", offset),
		Output:    dynsys.NewOutput[dynsys.Float](bb, "output"),
		sensor:    dynsys.RequirePeripheral[peripherals.AnalogReader](bb, "sensor", dynsys.DirInput),
	}
}

func (b *AnalogSensor) sample() (dynsys.Float, error) {
	v, err := b.sensor.Get().Read()
	if err != nil {
		return 0, err
	}
	return b.Gain.Get()*v + b.Offset.Get(), nil
}

func (b *AnalogSensor) Init() error {
	v, err := b.sample()
	if err != nil {
		return err
	}
	return b.Output.Initialize(v)
}

func (b *AnalogSensor) Step(ssi *dynsys.SystemStateInfo) error {
	v, err := b.sample()
	if err != nil {
		return err
	}
	b.Output.Update(v, ssi)
	return nil
}

// MultiChannelSensor samples every channel of a multi-channel reader into
// one output per channel, named ch0, ch1 and so on.
type MultiChannelSensor struct {
	dynsys.BlockBase
	Outputs []*dynsys.Output[dynsys.Float]
	adc     *dynsys.Peripheral[peripherals.AnalogReaderMultiChannel]
}

func NewMultiChannelSensor(bb *dynsys.BlockBuilder, channels int) *MultiChannelSensor {
	b := &MultiChannelSensor{
		BlockBase: dynsys.NewBlockBase(bb),
		Outputs:   make([]*dynsys.Output[dynsys.Float], channels),
		adc:       dynsys.RequireChannels[peripherals.AnalogReaderMultiChannel](bb, "adc", dynsys.DirInput, channels),
	}
	for i := range b.Outputs {
		b.Outputs[i] = dynsys.NewOutput[dynsys.Float](bb, fmt.Sprintf("ch%d", i))
	}
	return b
}

func (b *MultiChannelSensor) Init() error {
	for i, out := range b.Outputs {
		v, err := b.adc.Get().ReadChannel(i)
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if err := out.Initialize(v); err != nil {
			return err
		}
	}
	return nil
}

func (b *MultiChannelSensor) Step(ssi *dynsys.SystemStateInfo) error {
	for i, out := range b.Outputs {
		v, err := b.adc.Get().ReadChannel(i)
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		out.Update(v, ssi)
	}
	return nil
}
