package peripherals

import "github.com/san-kum/flowmbed/internal/dynsys"

// ChannelReader reads one input through a converter it does not own.
type ChannelReader[D any] interface {
	ReadWith(driver D) (dynsys.Float, error)
}

// ChannelReaderFunc adapts a function to ChannelReader.
type ChannelReaderFunc[D any] func(driver D) (dynsys.Float, error)

func (f ChannelReaderFunc[D]) ReadWith(driver D) (dynsys.Float, error) { return f(driver) }

// ChannelTable is a multi-channel reader whose channels share one converter
// of type D. Channel id dispatches through an indexed table.
type ChannelTable[D any] struct {
	driver   D
	channels []ChannelReader[D]
}

// NewChannelTable returns a table over driver with one entry per channel.
// The channel count is fixed at construction.
func NewChannelTable[D any](driver D, channels ...ChannelReader[D]) *ChannelTable[D] {
	t := &ChannelTable[D]{driver: driver, channels: make([]ChannelReader[D], len(channels))}
	copy(t.channels, channels)
	return t
}

func (t *ChannelTable[D]) Channels() int { return len(t.channels) }

func (t *ChannelTable[D]) ReadChannel(id int) (dynsys.Float, error) {
	if err := checkChannel(id, len(t.channels)); err != nil {
		return 0, err
	}
	return t.channels[id].ReadWith(t.driver)
}

// Driver returns the shared converter.
func (t *ChannelTable[D]) Driver() D { return t.driver }

// StaticChannels groups independent single-channel readers of one type.
type StaticChannels[R AnalogReader] []R

func (s StaticChannels[R]) Channels() int { return len(s) }

func (s StaticChannels[R]) ReadChannel(id int) (dynsys.Float, error) {
	if err := checkChannel(id, len(s)); err != nil {
		return 0, err
	}
	return s[id].Read()
}

// Channel is an AnalogReader view of one channel of a multi-channel reader.
type Channel struct {
	src AnalogReaderMultiChannel
	id  int
}

// NewChannel returns the view of channel id, failing when src has fewer
// channels.
func NewChannel(src AnalogReaderMultiChannel, id int) (Channel, error) {
	if err := checkChannel(id, src.Channels()); err != nil {
		return Channel{}, err
	}
	return Channel{src: src, id: id}, nil
}

func (c Channel) ID() int { return c.id }

// Source returns the multi-channel reader behind the view.
func (c Channel) Source() any { return c.src }

func (c Channel) Read() (dynsys.Float, error) { return c.src.ReadChannel(c.id) }
