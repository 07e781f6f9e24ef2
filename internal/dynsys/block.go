package dynsys

import (
	"fmt"
	"reflect"
)

// Block is a composable unit: it declares storage and peripherals and runs
// the DynamicalSystem lifecycle.
type Block interface {
	DynamicalSystem
	RequiresStorage
	RequirePeripherals
	Name() string
}

// BlockBuilder is the declaration scope of one block. Variables and
// peripheral references are declared against it before the system is built.
type BlockBuilder struct {
	name  string
	owner *SystemStorageBuilder
	slots []*slot
	refs  []binding
	vars  map[string]bool
	added bool
}

func (bb *BlockBuilder) Name() string { return bb.name }

func (bb *BlockBuilder) StorageSize() StorageSize {
	var size StorageSize
	for _, s := range bb.slots {
		size.add(s.kind, s.size)
	}
	return size
}

func (bb *BlockBuilder) Peripherals() []PeripheralReference {
	refs := make([]PeripheralReference, len(bb.refs))
	for i, b := range bb.refs {
		refs[i] = b.reference()
	}
	return refs
}

func (bb *BlockBuilder) declare(kind VarKind, name string, typ reflect.Type, initial []byte) *slot {
	if bb.owner.arena.sealed {
		panic(fmt.Errorf("%w: %s.%s", ErrStorageSealed, bb.name, name))
	}
	bb.claim(name)
	s := &slot{
		arena:   bb.owner.arena,
		block:   bb.name,
		name:    name,
		kind:    kind,
		typ:     typ.Kind(),
		size:    int(typ.Size()),
		initial: initial,
	}
	bb.slots = append(bb.slots, s)
	bb.owner.slots = append(bb.owner.slots, s)
	return s
}

func (bb *BlockBuilder) claim(name string) {
	if bb.vars[name] {
		bb.owner.fail(fmt.Errorf("%w: %s.%s", ErrDuplicateVariable, bb.name, name))
	}
	bb.vars[name] = true
}

// checkInitialized verifies every output and discrete state received a value.
func (bb *BlockBuilder) checkInitialized() error {
	for _, s := range bb.slots {
		if (s.kind == KindOutput || s.kind == KindDiscreteState) && !s.initialized {
			return fmt.Errorf("%w: %s %s", ErrUninitialized, s.kind, s.qualified())
		}
	}
	return nil
}

// BlockBase carries the declaration scope of a block. Embed it to get Name,
// StorageSize and Peripherals.
type BlockBase struct {
	bb *BlockBuilder
}

// NewBlockBase wraps a declaration scope.
func NewBlockBase(bb *BlockBuilder) BlockBase {
	return BlockBase{bb: bb}
}

func (b BlockBase) Name() string                       { return b.bb.Name() }
func (b BlockBase) StorageSize() StorageSize           { return b.bb.StorageSize() }
func (b BlockBase) Peripherals() []PeripheralReference { return b.bb.Peripherals() }
func (b BlockBase) builder() *BlockBuilder             { return b.bb }

// scoped is satisfied by blocks embedding BlockBase.
type scoped interface {
	builder() *BlockBuilder
}
