package dynsys

import "errors"

// relay copies its input to its output and counts steps in a discrete state.
type relay struct {
	BlockBase
	in    *Input[Int]
	out   *Output[Int]
	count *DiscreteState[Int]
	trace *[]string
	fail  error
}

func newRelay(bb *BlockBuilder, trace *[]string) *relay {
	return &relay{
		BlockBase: NewBlockBase(bb),
		in:        NewInput[Int](bb, "in", 0),
		out:       NewOutput[Int](bb, "out"),
		count:     NewDiscreteState[Int](bb, "count"),
		trace:     trace,
	}
}

func (r *relay) Init() error {
	if r.trace != nil {
		*r.trace = append(*r.trace, "init:"+r.Name())
	}
	if err := r.out.Initialize(r.in.Get()); err != nil {
		return err
	}
	return r.count.Initialize(0)
}

func (r *relay) Step(ssi *SystemStateInfo) error {
	if r.trace != nil {
		*r.trace = append(*r.trace, "step:"+r.Name())
	}
	if r.fail != nil {
		return r.fail
	}
	r.out.Update(r.in.Get(), ssi)
	r.count.Update(r.count.Get() + 1)
	return nil
}

// source publishes a counter starting at a seed parameter.
type source struct {
	BlockBase
	seed *Parameter[Int]
	out  *Output[Int]
}

func newSource(bb *BlockBuilder, seed Int) *source {
	return &source{
		BlockBase: NewBlockBase(bb),
		seed:      NewParameter(bb, "seed", seed),
		out:       NewOutput[Int](bb, "out"),
	}
}

func (s *source) Init() error { return s.out.Initialize(s.seed.Get()) }

func (s *source) Step(ssi *SystemStateInfo) error {
	s.out.Update(s.out.Get()+1, ssi)
	return nil
}

// lazy forgets to initialize its output.
type lazy struct {
	BlockBase
	out *Output[Float]
}

func (l *lazy) Init() error                     { return nil }
func (l *lazy) Step(ssi *SystemStateInfo) error { return nil }

var errSensor = errors.New("sensor fault")

type reader interface {
	Read() (Float, error)
}

type fakeReader struct {
	values []Float
	calls  int
}

func (f *fakeReader) Read() (Float, error) {
	if f.calls >= len(f.values) {
		return 0, errSensor
	}
	v := f.values[f.calls]
	f.calls++
	return v, nil
}

type fakeBank struct {
	n int
}

func (f *fakeBank) Read() (Float, error) { return 0, nil }
func (f *fakeBank) Channels() int        { return f.n }

// sampler reads one peripheral into its output.
type sampler struct {
	BlockBase
	dev   *Peripheral[reader]
	out   *Output[Float]
	inits int
}

func newSampler(bb *BlockBuilder) *sampler {
	return &sampler{
		BlockBase: NewBlockBase(bb),
		dev:       RequirePeripheral[reader](bb, "dev", DirInput),
		out:       NewOutput[Float](bb, "out"),
	}
}

func (s *sampler) Init() error {
	s.inits++
	v, err := s.dev.Get().Read()
	if err != nil {
		return err
	}
	return s.out.Initialize(v)
}

func (s *sampler) Step(ssi *SystemStateInfo) error {
	v, err := s.dev.Get().Read()
	if err != nil {
		return err
	}
	s.out.Update(v, ssi)
	return nil
}

// sliceBank is a multi-channel reader with slice identity.
type sliceBank []Float

func (b sliceBank) Read() (Float, error) { return b[0], nil }
func (b sliceBank) Channels() int        { return len(b) }

// bankView reads one channel of a source held behind an interface, so its
// dynamic value may not be hashable.
type bankView struct {
	src any
	id  int
}

func (v bankView) Read() (Float, error) { return v.src.(sliceBank)[v.id], nil }
func (v bankView) Source() any          { return v.src }
func (v bankView) ID() int              { return v.id }
