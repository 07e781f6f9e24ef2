package blocks

import "github.com/san-kum/flowmbed/internal/dynsys"

// LowPass is a first-order IIR filter y += alpha*(x - y).
type LowPass struct {
	dynsys.BlockBase
	Alpha    *dynsys.Parameter[dynsys.Float]
	Input    *dynsys.Input[dynsys.Float]
	Output   *dynsys.Output[dynsys.Float]
	filtered *dynsys.DiscreteState[dynsys.Float]
	primed   *dynsys.DiscreteState[dynsys.Bool]
}

func NewLowPass(bb *dynsys.BlockBuilder, alpha dynsys.Float) *LowPass {
	return &LowPass{
		BlockBase: dynsys.NewBlockBase(bb),
		Alpha:     dynsys.NewParameter(bb, "alpha", alpha),
		Input:     dynsys.NewInput[dynsys.Float](bb, "input", 0),
		Output:    dynsys.NewOutput[dynsys.Float](bb, "output"),
		filtered:  dynsys.NewDiscreteState[dynsys.Float](bb, "filtered"),
		primed:    dynsys.NewDiscreteState[dynsys.Bool](bb, "primed"),
	}
}

func (f *LowPass) Init() error {
	if err := f.filtered.Initialize(0); err != nil {
		return err
	}
	if err := f.primed.Initialize(false); err != nil {
		return err
	}
	return f.Output.Initialize(0)
}

// Step seeds the filter with the first sample it sees, then smooths.
func (f *LowPass) Step(ssi *dynsys.SystemStateInfo) error {
	x := f.Input.Get()
	y := x
	if f.primed.Get() {
		prev := f.filtered.Get()
		y = prev + f.Alpha.Get()*(x-prev)
	}
	f.filtered.Update(y)
	f.primed.Update(true)
	f.Output.Update(y, ssi)
	return nil
}

// EdgeCounter counts rising edges of a digital signal.
type EdgeCounter struct {
	dynsys.BlockBase
	Input *dynsys.Input[dynsys.Bool]
	Count *dynsys.Output[dynsys.Int]
	last  *dynsys.DiscreteState[dynsys.Bool]
}

func NewEdgeCounter(bb *dynsys.BlockBuilder) *EdgeCounter {
	return &EdgeCounter{
		BlockBase: dynsys.NewBlockBase(bb),
		Input:     dynsys.NewInput[dynsys.Bool](bb, "input", false),
		Count:     dynsys.NewOutput[dynsys.Int](bb, "count"),
		last:      dynsys.NewDiscreteState[dynsys.Bool](bb, "last"),
	}
}

func (c *EdgeCounter) Init() error {
	if err := c.last.Initialize(false); err != nil {
		return err
	}
	return c.Count.Initialize(0)
}

func (c *EdgeCounter) Step(ssi *dynsys.SystemStateInfo) error {
	level := c.Input.Get()
	if level && !c.last.Get() {
		c.Count.Update(c.Count.Get()+1, ssi)
	}
	c.last.Update(level)
	return nil
}
