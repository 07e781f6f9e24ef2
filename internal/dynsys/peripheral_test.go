package dynsys

import (
	"errors"
	"reflect"
	"testing"
)

func TestPeripheralUnboundFailsBeforeInit(t *testing.T) {
	sys := NewSystem("root")
	s := newSampler(sys.Block("adc"))
	if err := sys.Add(s); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := sys.Build(NewHeapStorage(0))
	var pe *PeripheralBindingError
	if !errors.As(err, &pe) || !errors.Is(err, ErrUnbound) {
		t.Fatalf("expected PeripheralBindingError wrapping ErrUnbound, got %v", err)
	}
	if pe.Reference != "adc.dev" {
		t.Errorf("expected reference adc.dev, got %s", pe.Reference)
	}

	if err := sys.Init(); !errors.Is(err, ErrStorageNotBuilt) {
		t.Errorf("expected init to refuse an unbuilt system, got %v", err)
	}
	if s.inits != 0 {
		t.Errorf("init must never run after a binding failure, ran %d times", s.inits)
	}
}

func TestPeripheralBindingErrors(t *testing.T) {
	tests := []struct {
		name    string
		drivers map[string]any
		want    error
	}{
		{"nil driver", map[string]any{"a.dev": nil, "b.dev": &fakeReader{}}, ErrUnbound},
		{"wrong capability", map[string]any{"a.dev": "not a reader", "b.dev": &fakeReader{}}, ErrCapabilityMismatch},
		{"unknown reference", map[string]any{"a.dev": &fakeReader{}, "b.dev": &fakeReader{}, "c.dev": &fakeReader{}}, ErrUnknownReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := NewSystem("root")
			_ = sys.Add(newSampler(sys.Block("a")))
			_ = sys.Add(newSampler(sys.Block("b")))
			for ref, d := range tt.drivers {
				if err := sys.Bind(ref, d); err != nil {
					t.Fatalf("bind %s: %v", ref, err)
				}
			}
			_, err := sys.Build(NewHeapStorage(0))
			var pe *PeripheralBindingError
			if !errors.As(err, &pe) || !errors.Is(err, tt.want) {
				t.Errorf("expected PeripheralBindingError wrapping %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPeripheralSingleOwnership(t *testing.T) {
	sys := NewSystem("root")
	_ = sys.Add(newSampler(sys.Block("a")))
	_ = sys.Add(newSampler(sys.Block("b")))
	shared := &fakeReader{}
	_ = sys.Bind("a.dev", shared)
	_ = sys.Bind("b.dev", shared)

	if _, err := sys.Build(NewHeapStorage(0)); !errors.Is(err, ErrPeripheralShared) {
		t.Errorf("expected ErrPeripheralShared, got %v", err)
	}
}

func TestPeripheralUnhashableDrivers(t *testing.T) {
	bank := sliceBank{1, 2}
	tests := []struct {
		name   string
		a, b   any
		shared bool
	}{
		{"views on disjoint channels", bankView{src: bank, id: 0}, bankView{src: bank, id: 1}, false},
		{"views on one channel", bankView{src: bank, id: 1}, bankView{src: bank, id: 1}, true},
		{"slice driver shared", bank, bank, true},
		{"distinct slices", sliceBank{1}, sliceBank{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := NewSystem("root")
			_ = sys.Add(newSampler(sys.Block("a")))
			_ = sys.Add(newSampler(sys.Block("b")))
			_ = sys.Bind("a.dev", tt.a)
			_ = sys.Bind("b.dev", tt.b)

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("build panicked: %v", r)
					}
				}()
				_, err = sys.Build(NewHeapStorage(0))
			}()
			if tt.shared != errors.Is(err, ErrPeripheralShared) {
				t.Errorf("shared=%v, got %v", tt.shared, err)
			}
			if !tt.shared && err != nil {
				t.Errorf("build failed: %v", err)
			}
		})
	}
}

func TestPeripheralDoubleBind(t *testing.T) {
	sys := NewSystem("root")
	_ = sys.Add(newSampler(sys.Block("a")))
	if err := sys.Bind("a.dev", &fakeReader{}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	var pe *PeripheralBindingError
	if err := sys.Bind("a.dev", &fakeReader{}); !errors.As(err, &pe) {
		t.Errorf("expected PeripheralBindingError on rebind, got %v", err)
	}
}

func TestPeripheralReferenceKinds(t *testing.T) {
	b := NewSystemStorageBuilder()
	bb := b.Block("blk")
	capRef := RequirePeripheral[reader](bb, "cap", DirInput)
	typeRef := RequirePeripheral[*fakeReader](bb, "concrete", DirOutput)
	bank := RequireChannels[reader](bb, "bank", DirInput, 4)

	c, ok := capRef.Reference().(*CapabilityRef)
	if !ok {
		t.Fatalf("expected CapabilityRef, got %T", capRef.Reference())
	}
	if c.Capability != reflect.TypeFor[reader]() || c.Name() != "blk.cap" || c.Direction() != DirInput {
		t.Errorf("unexpected capability ref %+v", c)
	}

	tr, ok := typeRef.Reference().(*TypeRef)
	if !ok {
		t.Fatalf("expected TypeRef, got %T", typeRef.Reference())
	}
	if tr.Type != reflect.TypeFor[*fakeReader]() || tr.Direction() != DirOutput {
		t.Errorf("unexpected type ref %+v", tr)
	}
	if bank.Reference().Channels() != 4 {
		t.Errorf("expected 4 channels, got %d", bank.Reference().Channels())
	}
	if len(bb.Peripherals()) != 3 {
		t.Errorf("expected 3 references, got %d", len(bb.Peripherals()))
	}
}

type channelBlock struct {
	BlockBase
	bank *Peripheral[reader]
}

func (c *channelBlock) Init() error                 { return nil }
func (c *channelBlock) Step(*SystemStateInfo) error { return nil }

func TestPeripheralChannelCount(t *testing.T) {
	tests := []struct {
		name   string
		driver any
		ok     bool
	}{
		{"enough channels", &fakeBank{n: 4}, true},
		{"more channels", &fakeBank{n: 8}, true},
		{"too few channels", &fakeBank{n: 2}, false},
		{"no channel count", &fakeReader{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := NewSystem("root")
			bb := sys.Block("mux")
			blk := &channelBlock{BlockBase: NewBlockBase(bb), bank: RequireChannels[reader](bb, "bank", DirInput, 4)}
			_ = sys.Add(blk)
			_ = sys.Bind("mux.bank", tt.driver)

			_, err := sys.Build(NewHeapStorage(0))
			if tt.ok {
				if err != nil {
					t.Fatalf("build failed: %v", err)
				}
				if blk.bank.Get() != tt.driver || blk.bank.Reference().Resolved() != tt.driver {
					t.Error("driver not resolved")
				}
				return
			}
			if !errors.Is(err, ErrChannelCount) {
				t.Errorf("expected ErrChannelCount, got %v", err)
			}
		})
	}
}

func TestBuildChecksStorageBeforePeripherals(t *testing.T) {
	sys := NewSystem("root")
	_ = sys.Add(newSampler(sys.Block("adc")))

	_, err := sys.Build(NewStaticStorage(make([]byte, 2)))
	var oe *StorageOverflowError
	if !errors.As(err, &oe) {
		t.Errorf("expected storage overflow to be reported before the unbound peripheral, got %v", err)
	}
}
