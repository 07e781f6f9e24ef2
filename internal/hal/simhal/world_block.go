package simhal

import (
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/plant"
)

// WorldBlock advances a simulated plant to the current tick time. Placed
// first in a system, it makes sensors read the plant as of the tick while
// the actuator command from the previous tick is held in between.
type WorldBlock struct {
	dynsys.BlockBase
	world *dynsys.Peripheral[*plant.World]
	Time  *dynsys.Output[dynsys.Float]
}

func NewWorldBlock(bb *dynsys.BlockBuilder) *WorldBlock {
	return &WorldBlock{
		BlockBase: dynsys.NewBlockBase(bb),
		world:     dynsys.RequirePeripheral[*plant.World](bb, "world", dynsys.DirInput),
		Time:      dynsys.NewOutput[dynsys.Float](bb, "time"),
	}
}

func (b *WorldBlock) Init() error {
	return b.Time.Initialize(dynsys.Float(b.world.Get().Time()))
}

func (b *WorldBlock) Step(ssi *dynsys.SystemStateInfo) error {
	w := b.world.Get()
	if err := w.AdvanceTo(ssi.Time.Seconds()); err != nil {
		return err
	}
	b.Time.Update(dynsys.Float(w.Time()), ssi)
	return nil
}
