package simhal

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// SerialValueSink writes each value as a "name=value" line, the format a
// serial console on the device would show.
type SerialValueSink struct {
	mu   sync.Mutex
	w    io.Writer
	name string
}

func NewSerialValueSink(w io.Writer, name string) *SerialValueSink {
	return &SerialValueSink{w: w, name: name}
}

func (s *SerialValueSink) Write(v dynsys.Float) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s=%s\n", s.name, strconv.FormatFloat(float64(v), 'g', -1, 32))
	return err
}
