package dynsys

import (
	"errors"
	"reflect"
	"testing"
)

func buildChain(t *testing.T, trace *[]string) (*System, *source, *relay, *relay) {
	t.Helper()
	sys := NewSystem("root")
	src := newSource(sys.Block("src"), 10)
	mid := newRelay(sys.Block("mid"), trace)
	end := newRelay(sys.Block("end"), trace)
	for _, b := range []Block{src, mid, end} {
		if err := sys.Add(b); err != nil {
			t.Fatalf("add %s: %v", b.Name(), err)
		}
	}
	if err := Connect(sys, src.out, mid.in); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := Connect(sys, mid.out, end.in); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := sys.Build(NewHeapStorage(0)); err != nil {
		t.Fatalf("build: %v", err)
	}
	return sys, src, mid, end
}

func TestSystemInitOrderAndStepAfterInit(t *testing.T) {
	var trace []string
	sys, _, _, _ := buildChain(t, &trace)

	err := sys.Step(&SystemStateInfo{})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before init, got %v", err)
	}
	if len(trace) != 0 {
		t.Fatalf("no block may run before init, got %v", trace)
	}

	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := sys.Step(&SystemStateInfo{}); err != nil {
		t.Fatalf("step: %v", err)
	}

	want := []string{"init:mid", "init:end", "step:mid", "step:end"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("expected %v, got %v", want, trace)
	}
}

func TestSystemPropagationIsStepAligned(t *testing.T) {
	sys, src, mid, end := buildChain(t, nil)
	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	// inputs are latched once every block has initialized
	if mid.in.Get() != 10 {
		t.Errorf("expected mid.in latched to 10 after init, got %d", mid.in.Get())
	}

	for n := uint64(1); n <= 5; n++ {
		srcPrev := src.out.Get()
		midPrev := mid.out.Get()

		if err := sys.Step(&SystemStateInfo{Step: n - 1}); err != nil {
			t.Fatalf("step %d: %v", n, err)
		}
		if mid.in.Get() != srcPrev {
			t.Errorf("step %d: mid.in = %d, want src.out at end of previous step %d", n, mid.in.Get(), srcPrev)
		}
		if end.in.Get() != midPrev {
			t.Errorf("step %d: end.in = %d, want mid.out at end of previous step %d", n, end.in.Get(), midPrev)
		}
	}
}

func TestSystemDiscreteStateIsolation(t *testing.T) {
	sys, _, mid, end := buildChain(t, nil)
	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if mid.count.Get() != 0 || end.count.Get() != 0 {
		t.Fatal("expected initial discrete state 0")
	}

	for i := 0; i < 3; i++ {
		if err := sys.Step(&SystemStateInfo{Step: uint64(i)}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if mid.count.Get() != 3 || end.count.Get() != 3 {
		t.Errorf("expected counts 3/3, got %d/%d", mid.count.Get(), end.count.Get())
	}
	if mid.out.UpdatedAt() != 2 {
		t.Errorf("expected output stamped at step 2, got %d", mid.out.UpdatedAt())
	}
}

func TestSystemInitRequiresAllOutputs(t *testing.T) {
	sys := NewSystem("root")
	bb := sys.Block("lazy")
	l := &lazy{BlockBase: NewBlockBase(bb), out: NewOutput[Float](bb, "out")}
	if err := sys.Add(l); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := sys.Build(NewHeapStorage(0)); err != nil {
		t.Fatalf("build: %v", err)
	}

	err := sys.Init()
	var ie *InitializationError
	if !errors.As(err, &ie) || !errors.Is(err, ErrUninitialized) {
		t.Fatalf("expected InitializationError wrapping ErrUninitialized, got %v", err)
	}
	if ie.Block != "lazy" {
		t.Errorf("expected block lazy, got %s", ie.Block)
	}
	if err := sys.Step(nil); !errors.Is(err, ErrSystemFailed) {
		t.Errorf("expected ErrSystemFailed after failed init, got %v", err)
	}
}

func TestInitializeOutsideInitPass(t *testing.T) {
	sys, src, _, _ := buildChain(t, nil)
	if err := src.out.Initialize(5); !errors.Is(err, ErrInitOutsideInit) {
		t.Errorf("expected ErrInitOutsideInit before init, got %v", err)
	}
	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := src.out.Initialize(5); !errors.Is(err, ErrInitOutsideInit) {
		t.Errorf("expected ErrInitOutsideInit after init, got %v", err)
	}
	if err := sys.Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized on second init, got %v", err)
	}
}

type doubleInit struct {
	BlockBase
	out *Output[Int]
}

func (d *doubleInit) Init() error {
	if err := d.out.Initialize(1); err != nil {
		return err
	}
	return d.out.Initialize(2)
}
func (d *doubleInit) Step(*SystemStateInfo) error { return nil }

func TestInitializeTwiceFails(t *testing.T) {
	sys := NewSystem("root")
	bb := sys.Block("twice")
	if err := sys.Add(&doubleInit{BlockBase: NewBlockBase(bb), out: NewOutput[Int](bb, "out")}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := sys.Build(NewHeapStorage(0)); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := sys.Init(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestSystemStepFailureIsSticky(t *testing.T) {
	sys, _, mid, _ := buildChain(t, nil)
	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	mid.fail = errSensor

	err := sys.Step(&SystemStateInfo{Step: 4})
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if se.Block != "mid" || se.Step != 4 || !errors.Is(err, errSensor) {
		t.Errorf("unexpected step error %+v", se)
	}

	mid.fail = nil
	if err := sys.Step(&SystemStateInfo{Step: 5}); !errors.Is(err, ErrSystemFailed) {
		t.Errorf("expected ErrSystemFailed, got %v", err)
	}
}

func TestSystemBuildRequirements(t *testing.T) {
	t.Run("block not added", func(t *testing.T) {
		sys := NewSystem("root")
		newRelay(sys.Block("orphan"), nil)
		if _, err := sys.Build(NewHeapStorage(0)); !errors.Is(err, ErrBlockNotAdded) {
			t.Errorf("expected ErrBlockNotAdded, got %v", err)
		}
	})

	t.Run("block from another system", func(t *testing.T) {
		a, b := NewSystem("a"), NewSystem("b")
		r := newRelay(a.Block("r"), nil)
		if err := b.Add(r); !errors.Is(err, ErrForeignBlock) {
			t.Errorf("expected ErrForeignBlock, got %v", err)
		}
	})

	t.Run("added twice", func(t *testing.T) {
		sys := NewSystem("root")
		r := newRelay(sys.Block("r"), nil)
		_ = sys.Add(r)
		if err := sys.Add(r); !errors.Is(err, ErrDuplicateBlock) {
			t.Errorf("expected ErrDuplicateBlock, got %v", err)
		}
	})

	t.Run("input connected twice", func(t *testing.T) {
		sys := NewSystem("root")
		s1 := newSource(sys.Block("s1"), 0)
		s2 := newSource(sys.Block("s2"), 0)
		r := newRelay(sys.Block("r"), nil)
		_ = Connect(sys, s1.out, r.in)
		if err := Connect(sys, s2.out, r.in); !errors.Is(err, ErrInputConnected) {
			t.Errorf("expected ErrInputConnected, got %v", err)
		}
	})

	t.Run("init before build", func(t *testing.T) {
		sys := NewSystem("root")
		if err := sys.Init(); !errors.Is(err, ErrStorageNotBuilt) {
			t.Errorf("expected ErrStorageNotBuilt, got %v", err)
		}
	})
}

func TestSubsystemIsABlock(t *testing.T) {
	var trace []string
	sys := NewSystem("root")
	src := newSource(sys.Block("src"), 1)
	loop := sys.Subsystem("loop")
	inner := newRelay(loop.Block("inner"), &trace)

	if err := loop.Add(inner); err != nil {
		t.Fatalf("add inner: %v", err)
	}
	for _, b := range []Block{src, loop} {
		if err := sys.Add(b); err != nil {
			t.Fatalf("add %s: %v", b.Name(), err)
		}
	}
	if err := Connect(sys, src.out, inner.in); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := loop.Build(NewHeapStorage(0)); !errors.Is(err, ErrNotRoot) {
		t.Errorf("expected ErrNotRoot from subsystem build, got %v", err)
	}
	st, err := sys.Build(NewHeapStorage(0))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if inner.Name() != "loop/inner" {
		t.Errorf("expected qualified name loop/inner, got %s", inner.Name())
	}
	if got := sys.StorageSize().Total(); got != st.Used() {
		t.Errorf("system size %d does not match storage %d", got, st.Used())
	}

	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := sys.Step(&SystemStateInfo{}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if inner.out.Get() != 1 {
		t.Errorf("expected inner to relay 1, got %d", inner.out.Get())
	}
	if want := []string{"init:loop/inner", "step:loop/inner"}; !reflect.DeepEqual(trace, want) {
		t.Errorf("expected %v, got %v", want, trace)
	}
}

func TestSubsystemLinksLatchWithRoot(t *testing.T) {
	sys := NewSystem("root")
	src := newSource(sys.Block("src"), 10)
	loop := sys.Subsystem("loop")
	inner := newRelay(loop.Block("inner"), nil)

	_ = loop.Add(inner)
	_ = sys.Add(src)
	_ = sys.Add(loop)
	if err := Connect(loop, src.out, inner.in); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := sys.Build(NewHeapStorage(0)); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := sys.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	for step, want := range []Int{10, 11, 12} {
		if err := sys.Step(&SystemStateInfo{Step: uint64(step)}); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if got := inner.out.Get(); got != want {
			t.Errorf("step %d: expected previous step value %d, got %d", step, want, got)
		}
		if got := src.out.Get(); got != want+1 {
			t.Errorf("step %d: expected source %d, got %d", step, want+1, got)
		}
	}
}
