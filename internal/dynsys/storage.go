package dynsys

import (
	"fmt"
	"reflect"
	"sort"
)

// VarKind identifies one of the four variable kinds.
type VarKind int

const (
	KindParameter VarKind = iota
	KindInput
	KindOutput
	KindDiscreteState
	numKinds
)

func (k VarKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindDiscreteState:
		return "discrete_state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindSize counts variables of one kind and the bytes they occupy.
type KindSize struct {
	Count int
	Bytes int
}

// StorageSize is a storage requirement broken down by variable kind.
type StorageSize struct {
	Kinds [numKinds]KindSize
}

// Of returns the requirement for one kind.
func (s StorageSize) Of(k VarKind) KindSize { return s.Kinds[k] }

// Add returns the sum of two requirements.
func (s StorageSize) Add(other StorageSize) StorageSize {
	for k := range s.Kinds {
		s.Kinds[k].Count += other.Kinds[k].Count
		s.Kinds[k].Bytes += other.Kinds[k].Bytes
	}
	return s
}

// Total returns the total number of bytes required.
func (s StorageSize) Total() int {
	n := 0
	for _, k := range s.Kinds {
		n += k.Bytes
	}
	return n
}

// Count returns the total number of variables.
func (s StorageSize) Count() int {
	n := 0
	for _, k := range s.Kinds {
		n += k.Count
	}
	return n
}

func (s *StorageSize) add(kind VarKind, bytes int) {
	s.Kinds[kind].Count++
	s.Kinds[kind].Bytes += bytes
}

// RequiresStorage is implemented by anything that needs variable storage.
type RequiresStorage interface {
	StorageSize() StorageSize
}

type phase int

const (
	phaseDeclare phase = iota
	phaseInit
	phaseRun
)

// arena is the backing region shared by every slot of one root system.
type arena struct {
	buf    []byte
	sealed bool
	phase  phase
}

type slot struct {
	arena       *arena
	block       string
	name        string
	kind        VarKind
	typ         reflect.Kind
	size        int
	offset      int
	initial     []byte
	initialized bool
	connected   bool
}

func (s *slot) bytes() []byte {
	if s.arena.buf == nil {
		panic(fmt.Errorf("%w: %s.%s", ErrStorageNotBuilt, s.block, s.name))
	}
	return s.arena.buf[s.offset : s.offset+s.size : s.offset+s.size]
}

func (s *slot) qualified() string { return s.block + "." + s.name }

// SlotInfo describes where one variable lives in system storage.
type SlotInfo struct {
	Block  string
	Name   string
	Kind   VarKind
	Type   reflect.Kind
	Offset int
	Size   int
}

// End returns the offset one past the last byte of the slot.
func (s SlotInfo) End() int { return s.Offset + s.Size }

// Qualified returns "block.name".
func (s SlotInfo) Qualified() string { return s.Block + "." + s.Name }

// SystemStorageBuilder accumulates the variable declarations of every block
// in a system and lays them out in one packed region.
type SystemStorageBuilder struct {
	arena  *arena
	slots  []*slot
	blocks []*BlockBuilder
	names  map[string]bool
	err    error
}

// NewSystemStorageBuilder returns an empty builder.
func NewSystemStorageBuilder() *SystemStorageBuilder {
	return &SystemStorageBuilder{
		arena: &arena{},
		names: make(map[string]bool),
	}
}

// Block opens the declaration scope of a block. A duplicate name is
// reported by Build.
func (b *SystemStorageBuilder) Block(name string) *BlockBuilder {
	if b.arena.sealed {
		panic(fmt.Errorf("%w: block %s", ErrStorageSealed, name))
	}
	if b.names[name] {
		b.fail(fmt.Errorf("%w: %s", ErrDuplicateBlock, name))
	}
	b.names[name] = true
	bb := &BlockBuilder{name: name, owner: b, vars: make(map[string]bool)}
	b.blocks = append(b.blocks, bb)
	return bb
}

// StorageSize returns the requirement of everything declared so far.
func (b *SystemStorageBuilder) StorageSize() StorageSize {
	var size StorageSize
	for _, s := range b.slots {
		size.add(s.kind, s.size)
	}
	return size
}

func (b *SystemStorageBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// layout is a computed placement that has not yet been given memory.
type layout struct {
	size  StorageSize
	order []*slot
	total int
}

// plan orders slots by kind, then declaration order, and checks the total
// against the strategy's capacity.
func (b *SystemStorageBuilder) plan(strategy StorageStrategy) (*layout, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.arena.sealed {
		return nil, ErrStorageSealed
	}

	order := make([]*slot, len(b.slots))
	copy(order, b.slots)
	sort.SliceStable(order, func(i, j int) bool { return order[i].kind < order[j].kind })

	l := &layout{size: b.StorageSize(), order: order}
	l.total = l.size.Total()

	if capacity := strategy.Capacity(); capacity >= 0 && l.total > capacity {
		return nil, &StorageOverflowError{Strategy: strategy.Name(), Required: l.total, Budget: capacity}
	}
	return l, nil
}

// commit reserves memory for a plan and seeds parameters and input defaults.
func (b *SystemStorageBuilder) commit(l *layout, strategy StorageStrategy) (*SystemStorage, error) {
	buf, err := strategy.Reserve(l.total)
	if err != nil {
		return nil, err
	}
	if len(buf) != l.total {
		return nil, fmt.Errorf("dynsys: %s strategy reserved %d bytes, want %d", strategy.Name(), len(buf), l.total)
	}

	st := &SystemStorage{
		strategy: strategy.Name(),
		capacity: strategy.Capacity(),
		size:     l.size,
		slots:    make([]SlotInfo, 0, len(l.order)),
		index:    make(map[string]int, len(l.order)),
	}

	offset := 0
	for _, s := range l.order {
		s.offset = offset
		offset += s.size
		if s.initial != nil {
			copy(buf[s.offset:s.offset+s.size], s.initial)
		}
		st.index[s.qualified()] = len(st.slots)
		st.slots = append(st.slots, SlotInfo{Block: s.block, Name: s.name, Kind: s.kind, Type: s.typ, Offset: s.offset, Size: s.size})
	}

	b.arena.buf = buf
	b.arena.sealed = true
	st.buf = buf
	return st, nil
}

// Build lays out and reserves storage for everything declared. It fails with
// a *StorageOverflowError when the strategy's budget is exceeded.
func (b *SystemStorageBuilder) Build(strategy StorageStrategy) (*SystemStorage, error) {
	l, err := b.plan(strategy)
	if err != nil {
		return nil, err
	}
	return b.commit(l, strategy)
}

// SystemStorage is the built, fixed-size backing region of a system.
type SystemStorage struct {
	strategy string
	capacity int
	size     StorageSize
	slots    []SlotInfo
	index    map[string]int
	buf      []byte
}

// Strategy returns the name of the strategy that reserved the region.
func (s *SystemStorage) Strategy() string { return s.strategy }

// Used returns the number of bytes occupied by variables.
func (s *SystemStorage) Used() int { return len(s.buf) }

// Capacity returns the strategy budget, or -1 when unbounded.
func (s *SystemStorage) Capacity() int { return s.capacity }

// StorageSize returns the per-kind breakdown of the layout.
func (s *SystemStorage) StorageSize() StorageSize { return s.size }

// Slots returns the placement of every variable in layout order.
func (s *SystemStorage) Slots() []SlotInfo {
	out := make([]SlotInfo, len(s.slots))
	copy(out, s.slots)
	return out
}

// Lookup finds a slot by its qualified name.
func (s *SystemStorage) Lookup(qualified string) (SlotInfo, bool) {
	i, ok := s.index[qualified]
	if !ok {
		return SlotInfo{}, false
	}
	return s.slots[i], true
}

// Value decodes the current value of a slot for inspection. Named types
// are reported as their underlying kind.
func (s *SystemStorage) Value(qualified string) (any, error) {
	info, ok := s.Lookup(qualified)
	if !ok {
		return nil, fmt.Errorf("dynsys: no variable %s", qualified)
	}
	return decodeKind(info.Type, s.buf[info.Offset:info.End()]), nil
}
