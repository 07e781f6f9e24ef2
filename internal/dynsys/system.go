package dynsys

import (
	"errors"
	"fmt"
	"time"
)

// SystemStateInfo is the read-only timing context passed to every Step.
type SystemStateInfo struct {
	// Step counts executed steps from 0 without gaps.
	Step uint64
	// Tick is the index of the scheduled tick boundary. It equals Step
	// unless missed ticks were skipped.
	Tick uint64
	// Time is the logical time of the tick, Tick * interval.
	Time time.Duration
	// Dt is the logical time elapsed since the previous step.
	Dt time.Duration
	// Wall is the clock time elapsed since the run started.
	Wall time.Duration
}

// DynamicalSystem is the two-phase lifecycle every block and system runs.
type DynamicalSystem interface {
	// Init seeds outputs and discrete states. It may block once, e.g. for
	// sensor warm-up. An error stops the system from being scheduled.
	Init() error
	// Step performs one bounded discrete update.
	Step(ssi *SystemStateInfo) error
}

type link struct {
	src *slot
	dst *slot
}

// System is an ordered composition of blocks and is itself a Block. Blocks
// are initialized and stepped in the order they were added; the runtime
// does not reorder them.
type System struct {
	name    string
	parent  *System
	storage *SystemStorageBuilder
	scope   *BlockBuilder
	blocks  []Block
	links   []link

	// root only
	drivers map[string]any
	bindErr error
	built   *SystemStorage

	initialized bool
	failed      bool
}

// NewSystem returns an empty root system.
func NewSystem(name string) *System {
	return &System{
		name:    name,
		storage: NewSystemStorageBuilder(),
		drivers: make(map[string]any),
	}
}

func (s *System) Name() string { return s.name }

func (s *System) root() *System {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (s *System) qualify(name string) string {
	if s.parent == nil {
		return name
	}
	return s.name + "/" + name
}

// Block opens the declaration scope for a new block of this system.
func (s *System) Block(name string) *BlockBuilder {
	return s.storage.Block(s.qualify(name))
}

// Subsystem returns a nested system sharing this system's storage. It must
// be added with Add to run.
func (s *System) Subsystem(name string) *System {
	qualified := s.qualify(name)
	return &System{
		name:    qualified,
		parent:  s,
		storage: s.storage,
		scope:   s.storage.Block(qualified),
	}
}

// Add appends a block to the execution order.
func (s *System) Add(b Block) error {
	if s.storage.arena.sealed {
		return ErrStorageSealed
	}
	var bb *BlockBuilder
	switch v := b.(type) {
	case *System:
		if v.parent != s {
			return fmt.Errorf("%w: %s", ErrForeignBlock, v.name)
		}
		bb = v.scope
	case scoped:
		bb = v.builder()
	default:
		if b.StorageSize().Count() > 0 || len(b.Peripherals()) > 0 {
			return fmt.Errorf("%w: %s was not declared through a BlockBuilder", ErrForeignBlock, b.Name())
		}
	}
	if bb != nil {
		if bb.owner != s.storage {
			return fmt.Errorf("%w: %s", ErrForeignBlock, b.Name())
		}
		if bb.added {
			return fmt.Errorf("%w: %s", ErrDuplicateBlock, b.Name())
		}
		bb.added = true
	}
	s.blocks = append(s.blocks, b)
	return nil
}

// Blocks returns the blocks in execution order.
func (s *System) Blocks() []Block {
	out := make([]Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// StorageSize sums the requirements of every block in the system.
func (s *System) StorageSize() StorageSize {
	var size StorageSize
	for _, b := range s.blocks {
		size = size.Add(b.StorageSize())
	}
	return size
}

// Peripherals lists every peripheral reference in the system.
func (s *System) Peripherals() []PeripheralReference {
	var refs []PeripheralReference
	for _, b := range s.blocks {
		refs = append(refs, b.Peripherals()...)
	}
	return refs
}

// Connect links out to in. At every tick boundary the system copies the
// output's value into the input. Links are owned by the root system and all
// of them latch together at the start of a root step, whichever system in
// the tree they are registered on.
func Connect[T Value](s *System, out *Output[T], in *Input[T]) error {
	if out == nil || in == nil {
		return errors.New("dynsys: connect requires an output and an input")
	}
	if out.s.arena != s.storage.arena || in.s.arena != s.storage.arena {
		return fmt.Errorf("%w: %s -> %s", ErrForeignBlock, out.s.qualified(), in.s.qualified())
	}
	if s.root().initialized {
		return fmt.Errorf("dynsys: connect %s -> %s: %w", out.s.qualified(), in.s.qualified(), ErrAlreadyInitialized)
	}
	if in.s.connected {
		return fmt.Errorf("%w: %s", ErrInputConnected, in.s.qualified())
	}
	in.s.connected = true
	r := s.root()
	r.links = append(r.links, link{src: out.s, dst: in.s})
	return nil
}

// Bind supplies the driver for a qualified peripheral reference
// ("block.slot"). Bindings are resolved by Build.
func (s *System) Bind(ref string, driver any) error {
	r := s.root()
	if r.built != nil {
		return &PeripheralBindingError{Reference: ref, Wrapped: ErrStorageSealed}
	}
	if _, dup := r.drivers[ref]; dup {
		return &PeripheralBindingError{Reference: ref, Wrapped: errors.New("already bound")}
	}
	r.drivers[ref] = driver
	return nil
}

// Build checks the storage budget, binds peripherals and reserves storage,
// in that order. No block code runs during Build.
func (s *System) Build(strategy StorageStrategy) (*SystemStorage, error) {
	if s.parent != nil {
		return nil, ErrNotRoot
	}
	for _, bb := range s.storage.blocks {
		if !bb.added {
			return nil, fmt.Errorf("%w: %s", ErrBlockNotAdded, bb.name)
		}
	}
	l, err := s.storage.plan(strategy)
	if err != nil {
		return nil, err
	}
	if err := bindAll(s.bindings(), s.drivers); err != nil {
		return nil, err
	}
	st, err := s.storage.commit(l, strategy)
	if err != nil {
		return nil, err
	}
	s.built = st
	return st, nil
}

// Storage returns the built storage, or nil before Build.
func (s *System) Storage() *SystemStorage { return s.root().built }

func (s *System) bindings() []binding {
	var out []binding
	for _, bb := range s.storage.blocks {
		out = append(out, bb.refs...)
	}
	return out
}

// Init initializes every block in order. Called on the root it also opens
// and closes the init pass in which Initialize is accepted.
func (s *System) Init() error {
	r := s.root()
	if r.built == nil {
		return &InitializationError{Block: s.name, Wrapped: ErrStorageNotBuilt}
	}
	if s.failed {
		return &InitializationError{Block: s.name, Wrapped: ErrSystemFailed}
	}
	if s.initialized {
		return &InitializationError{Block: s.name, Wrapped: ErrAlreadyInitialized}
	}

	arena := s.storage.arena
	if s == r {
		arena.phase = phaseInit
		defer func() {
			if s.initialized {
				arena.phase = phaseRun
			} else {
				arena.phase = phaseDeclare
			}
		}()
	}

	for _, b := range s.blocks {
		if err := b.Init(); err != nil {
			s.failed = true
			var ie *InitializationError
			if errors.As(err, &ie) {
				return err
			}
			return &InitializationError{Block: b.Name(), Wrapped: err}
		}
		if sc, ok := b.(scoped); ok {
			if err := sc.builder().checkInitialized(); err != nil {
				s.failed = true
				return &InitializationError{Block: b.Name(), Wrapped: err}
			}
		}
	}

	s.latch()
	s.initialized = true
	return nil
}

// Step latches connected inputs, then steps every block in order. A failed
// step leaves the system unusable.
func (s *System) Step(ssi *SystemStateInfo) error {
	if ssi == nil {
		ssi = &SystemStateInfo{}
	}
	if s.failed {
		return &StepError{Block: s.name, Step: ssi.Step, Wrapped: ErrSystemFailed}
	}
	if !s.initialized {
		return &StepError{Block: s.name, Step: ssi.Step, Wrapped: ErrNotInitialized}
	}

	s.latch()

	for _, b := range s.blocks {
		if err := b.Step(ssi); err != nil {
			s.failed = true
			var se *StepError
			if errors.As(err, &se) {
				return err
			}
			return &StepError{Block: b.Name(), Step: ssi.Step, Wrapped: err}
		}
	}
	return nil
}

func (s *System) latch() {
	for _, l := range s.links {
		copy(l.dst.bytes(), l.src.bytes())
	}
}

// Initialized reports whether Init completed successfully.
func (s *System) Initialized() bool { return s.initialized }
