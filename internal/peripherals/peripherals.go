// Package peripherals defines the driver capabilities blocks can require.
//
// Capabilities are small interfaces. A block declares one with
// dynsys.RequirePeripheral and any driver implementing it may be bound.
// Multi-channel converters expose AnalogReaderMultiChannel; ChannelTable
// builds one from per-channel readers that share a single converter.
package peripherals

import (
	"errors"
	"fmt"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

var ErrNoSuchChannel = errors.New("peripherals: channel out of range")

// AnalogReader samples one analog value.
type AnalogReader interface {
	Read() (dynsys.Float, error)
}

// DigitalReader samples one digital level.
type DigitalReader interface {
	Read() (dynsys.Bool, error)
}

// DigitalWriter drives one digital level.
type DigitalWriter interface {
	Write(v dynsys.Bool) error
}

// ValueSink accepts analog values, e.g. a serial link or a DAC.
type ValueSink interface {
	Write(v dynsys.Float) error
}

// AnalogReaderMultiChannel samples any of a fixed number of channels.
type AnalogReaderMultiChannel interface {
	ReadChannel(id int) (dynsys.Float, error)
	Channels() int
}

func checkChannel(id, n int) error {
	if id < 0 || id >= n {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrNoSuchChannel, id, n)
	}
	return nil
}
