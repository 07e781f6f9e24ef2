package dynsys

import "fmt"

// Parameter is fixed at composition time and read-only afterwards.
type Parameter[T Value] struct {
	s *slot
}

// NewParameter declares a parameter with its composition-time value.
func NewParameter[T Value](bb *BlockBuilder, name string, value T) *Parameter[T] {
	return &Parameter[T]{s: bb.declare(KindParameter, name, typeOf[T](), encoded(value))}
}

func (p *Parameter[T]) Name() string { return p.s.name }
func (p *Parameter[T]) Get() T       { return decode[T](p.s.bytes()) }

// Input holds the value latched from an upstream output at the last tick
// boundary. An unconnected input keeps its default.
type Input[T Value] struct {
	s *slot
}

// NewInput declares an input with the value it holds until first propagation.
func NewInput[T Value](bb *BlockBuilder, name string, def T) *Input[T] {
	return &Input[T]{s: bb.declare(KindInput, name, typeOf[T](), encoded(def))}
}

func (in *Input[T]) Name() string { return in.s.name }
func (in *Input[T]) Get() T       { return decode[T](in.s.bytes()) }

// Connected reports whether an output feeds this input.
func (in *Input[T]) Connected() bool { return in.s.connected }

// Output is written only by its owning block.
type Output[T Value] struct {
	s         *slot
	updatedAt uint64
}

// NewOutput declares an output. Its value is set by Initialize during init.
func NewOutput[T Value](bb *BlockBuilder, name string) *Output[T] {
	return &Output[T]{s: bb.declare(KindOutput, name, typeOf[T](), nil)}
}

func (o *Output[T]) Name() string { return o.s.name }
func (o *Output[T]) Get() T       { return decode[T](o.s.bytes()) }

// Initialize sets the first value. It is accepted once, during the init pass.
func (o *Output[T]) Initialize(v T) error {
	if err := o.s.beginInitialize(); err != nil {
		return err
	}
	encode(o.s.bytes(), v)
	return nil
}

// Update publishes a new value. Downstream inputs observe it from the next
// tick boundary on. ssi may be nil outside the runner.
func (o *Output[T]) Update(v T, ssi *SystemStateInfo) {
	encode(o.s.bytes(), v)
	if ssi != nil {
		o.updatedAt = ssi.Step
	}
}

// UpdatedAt returns the step index of the last stamped Update.
func (o *Output[T]) UpdatedAt() uint64 { return o.updatedAt }

// DiscreteState persists across steps and is mutated only by its block.
type DiscreteState[T Value] struct {
	s *slot
}

// NewDiscreteState declares a discrete state. Its value is set by Initialize during init.
func NewDiscreteState[T Value](bb *BlockBuilder, name string) *DiscreteState[T] {
	return &DiscreteState[T]{s: bb.declare(KindDiscreteState, name, typeOf[T](), nil)}
}

func (d *DiscreteState[T]) Name() string { return d.s.name }
func (d *DiscreteState[T]) Get() T       { return decode[T](d.s.bytes()) }

// Initialize sets the initial value. It is accepted once, during the init pass.
func (d *DiscreteState[T]) Initialize(v T) error {
	if err := d.s.beginInitialize(); err != nil {
		return err
	}
	encode(d.s.bytes(), v)
	return nil
}

// Update replaces the state value.
func (d *DiscreteState[T]) Update(v T) {
	encode(d.s.bytes(), v)
}

func (s *slot) beginInitialize() error {
	if s.arena.phase != phaseInit {
		return fmt.Errorf("%w: %s", ErrInitOutsideInit, s.qualified())
	}
	if s.initialized {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, s.qualified())
	}
	s.initialized = true
	return nil
}
