package simhal

import (
	"math"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/peripherals"
)

// WaveSource is the shared converter of a simulated multi-channel ADC. All
// channels sample at the time reported by its clock.
type WaveSource struct {
	clock dynsys.Clock
	start time.Time
	// Samples counts conversions across all channels.
	Samples int
}

func NewWaveSource(clock dynsys.Clock) *WaveSource {
	if clock == nil {
		clock = dynsys.RealClock
	}
	return &WaveSource{clock: clock, start: clock.Now()}
}

func (s *WaveSource) elapsed() float64 { return s.clock.Now().Sub(s.start).Seconds() }

// Wave is one channel: Offset + Amplitude*sin(2π·Frequency·t + Phase).
type Wave struct {
	Amplitude float64
	Frequency float64
	Phase     float64
	Offset    float64
}

func (w Wave) ReadWith(src *WaveSource) (dynsys.Float, error) {
	src.Samples++
	t := src.elapsed()
	return dynsys.Float(w.Offset + w.Amplitude*math.Sin(2*math.Pi*w.Frequency*t+w.Phase)), nil
}

// NewWaveADC returns a multi-channel reader with one channel per wave.
func NewWaveADC(clock dynsys.Clock, waves ...Wave) *peripherals.ChannelTable[*WaveSource] {
	channels := make([]peripherals.ChannelReader[*WaveSource], len(waves))
	for i, w := range waves {
		channels[i] = w
	}
	return peripherals.NewChannelTable(NewWaveSource(clock), channels...)
}
