package dynsys

import (
	"fmt"
	"reflect"
)

// Direction is the data direction of a peripheral as seen by its block.
type Direction int

const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "output"
	}
	return "input"
}

// PeripheralReference is a named slot for a hardware driver. It is either a
// *TypeRef (a concrete driver type) or a *CapabilityRef (an interface).
type PeripheralReference interface {
	// Name is the qualified reference name, "block.slot".
	Name() string
	Direction() Direction
	// Channels is the number of channels required, 0 for single-channel.
	Channels() int
	// Resolved returns the bound driver, or nil before binding.
	Resolved() any
	isPeripheralReference()
}

type refBase struct {
	name     string
	dir      Direction
	channels int
	resolved any
}

func (r *refBase) Name() string           { return r.name }
func (r *refBase) Direction() Direction   { return r.dir }
func (r *refBase) Channels() int          { return r.channels }
func (r *refBase) Resolved() any          { return r.resolved }
func (r *refBase) isPeripheralReference() {}

// TypeRef requires a driver of exactly one concrete type.
type TypeRef struct {
	refBase
	Type reflect.Type
}

// CapabilityRef requires any driver implementing an interface.
type CapabilityRef struct {
	refBase
	Capability reflect.Type
}

// RequirePeripherals is implemented by blocks that need drivers.
type RequirePeripherals interface {
	Peripherals() []PeripheralReference
}

// ChannelCounter is implemented by multi-channel drivers.
type ChannelCounter interface {
	Channels() int
}

// Peripheral is a block's handle on a bound driver of type C.
type Peripheral[C any] struct {
	ref   PeripheralReference
	base  *refBase
	value C
	bound bool
}

// RequirePeripheral declares a peripheral. When C is an interface the
// reference is capability-identified, otherwise type-identified.
func RequirePeripheral[C any](bb *BlockBuilder, name string, dir Direction) *Peripheral[C] {
	return RequireChannels[C](bb, name, dir, 0)
}

// RequireChannels declares a multi-channel peripheral needing at least n
// channels. The bound driver must implement ChannelCounter when n > 0.
func RequireChannels[C any](bb *BlockBuilder, name string, dir Direction, n int) *Peripheral[C] {
	if bb.owner.arena.sealed {
		panic(fmt.Errorf("%w: %s.%s", ErrStorageSealed, bb.name, name))
	}
	bb.claim(name)

	base := refBase{name: bb.name + "." + name, dir: dir, channels: n}
	t := reflect.TypeFor[C]()
	p := &Peripheral[C]{}
	if t.Kind() == reflect.Interface {
		ref := &CapabilityRef{refBase: base, Capability: t}
		p.ref, p.base = ref, &ref.refBase
	} else {
		ref := &TypeRef{refBase: base, Type: t}
		p.ref, p.base = ref, &ref.refBase
	}
	bb.refs = append(bb.refs, p)
	return p
}

// Get returns the bound driver. It is valid after the system is built.
func (p *Peripheral[C]) Get() C { return p.value }

// Bound reports whether a driver was bound.
func (p *Peripheral[C]) Bound() bool { return p.bound }

// Reference returns the declaration behind the handle.
func (p *Peripheral[C]) Reference() PeripheralReference { return p.ref }

type binding interface {
	reference() PeripheralReference
	bind(driver any) error
}

func (p *Peripheral[C]) reference() PeripheralReference { return p.ref }

func (p *Peripheral[C]) bind(driver any) error {
	if driver == nil {
		return ErrUnbound
	}
	c, ok := driver.(C)
	if !ok {
		return fmt.Errorf("%w: %T is not %v", ErrCapabilityMismatch, driver, reflect.TypeFor[C]())
	}
	if n := p.base.channels; n > 0 {
		counter, ok := driver.(ChannelCounter)
		if !ok {
			return fmt.Errorf("%w: %T does not report channels", ErrChannelCount, driver)
		}
		if got := counter.Channels(); got < n {
			return fmt.Errorf("%w: need %d, %T has %d", ErrChannelCount, n, driver, got)
		}
	}
	p.value = c
	p.bound = true
	p.base.resolved = driver
	return nil
}

// ChannelView is implemented by drivers that expose one channel of another
// driver. Views of one source may be owned by different references when
// their channel ids differ. A view and its whole source never share.
type ChannelView interface {
	Source() any
	ID() int
}

// driverKey identifies reference-typed drivers by address rather than value.
type driverKey struct {
	t   reflect.Type
	ptr uintptr
	len int
}

// identity returns the ownership key of driver, or nil when the driver has
// no stable identity and cannot be tracked.
func identity(driver any) any {
	if driver == nil {
		return nil
	}
	v := reflect.ValueOf(driver)
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || v.Type().Elem().Size() == 0 {
			return nil
		}
		return driverKey{t: v.Type(), ptr: v.Pointer()}
	case reflect.Map, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return nil
		}
		return driverKey{t: v.Type(), ptr: v.Pointer()}
	case reflect.Slice:
		if v.Len() == 0 {
			return nil
		}
		return driverKey{t: v.Type(), ptr: v.Pointer(), len: v.Len()}
	case reflect.Func:
		return nil
	}
	if v.Comparable() {
		return driver
	}
	return nil
}

// ownership tracks which reference owns each driver or driver channel.
type ownership struct {
	whole    map[any]string
	channels map[any]map[int]string
}

func newOwnership() *ownership {
	return &ownership{whole: make(map[any]string), channels: make(map[any]map[int]string)}
}

func (o *ownership) claim(ref string, driver any) error {
	key, channel := identity(driver), -1
	if v, ok := driver.(ChannelView); ok {
		key, channel = identity(v.Source()), v.ID()
	}
	if key == nil {
		return nil
	}
	if owner, taken := o.whole[key]; taken {
		return fmt.Errorf("%w: %s", ErrPeripheralShared, owner)
	}
	views := o.channels[key]
	if channel < 0 {
		if len(views) > 0 {
			return fmt.Errorf("%w: channels of %T", ErrPeripheralShared, driver)
		}
		o.whole[key] = ref
		return nil
	}
	if owner, taken := views[channel]; taken {
		return fmt.Errorf("%w: %s", ErrPeripheralShared, owner)
	}
	if views == nil {
		views = make(map[int]string)
		o.channels[key] = views
	}
	views[channel] = ref
	return nil
}

// bindAll resolves every reference in refs against the supplied drivers.
// A driver may be owned by a single reference only. Channel views split a
// multi-channel source so that each channel has a single owner.
func bindAll(refs []binding, drivers map[string]any) error {
	owners := newOwnership()
	declared := make(map[string]bool, len(refs))

	for _, b := range refs {
		ref := b.reference()
		declared[ref.Name()] = true

		driver, ok := drivers[ref.Name()]
		if !ok {
			return &PeripheralBindingError{Reference: ref.Name(), Wrapped: ErrUnbound}
		}
		if err := owners.claim(ref.Name(), driver); err != nil {
			return &PeripheralBindingError{Reference: ref.Name(), Wrapped: err}
		}
		if err := b.bind(driver); err != nil {
			return &PeripheralBindingError{Reference: ref.Name(), Wrapped: err}
		}
	}

	for name := range drivers {
		if !declared[name] {
			return &PeripheralBindingError{Reference: name, Wrapped: ErrUnknownReference}
		}
	}
	return nil
}
