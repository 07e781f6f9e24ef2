package dynsys

import "fmt"

// StorageStrategy provides the memory behind a system's storage layout.
// Reserve is called once per build with the exact number of bytes needed.
type StorageStrategy interface {
	Name() string
	// Capacity is the byte budget, or -1 for no limit.
	Capacity() int
	Reserve(n int) ([]byte, error)
}

// StaticStorage serves a layout from a caller-owned fixed buffer and never
// allocates. A buffer backs at most one system.
type StaticStorage struct {
	buf  []byte
	used bool
}

// NewStaticStorage uses buf as the storage budget. On targets without an
// allocator buf is typically a package-level array.
func NewStaticStorage(buf []byte) *StaticStorage {
	return &StaticStorage{buf: buf}
}

func (s *StaticStorage) Name() string  { return "static" }
func (s *StaticStorage) Capacity() int { return len(s.buf) }

func (s *StaticStorage) Reserve(n int) ([]byte, error) {
	if s.used {
		return nil, ErrStorageInUse
	}
	if n > len(s.buf) {
		return nil, &StorageOverflowError{Strategy: s.Name(), Required: n, Budget: len(s.buf)}
	}
	s.used = true
	region := s.buf[:n:n]
	clear(region)
	return region, nil
}

// HeapStorage allocates the whole layout with a single allocation.
type HeapStorage struct {
	limit int
}

// NewHeapStorage returns a heap strategy. A limit <= 0 means unbounded.
func NewHeapStorage(limit int) *HeapStorage {
	return &HeapStorage{limit: limit}
}

func (h *HeapStorage) Name() string { return "heap" }

func (h *HeapStorage) Capacity() int {
	if h.limit <= 0 {
		return -1
	}
	return h.limit
}

func (h *HeapStorage) Reserve(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("dynsys: negative reservation %d", n)
	}
	if h.limit > 0 && n > h.limit {
		return nil, &StorageOverflowError{Strategy: h.Name(), Required: n, Budget: h.limit}
	}
	return make([]byte, n), nil
}
