package trace

import (
	"sync"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

// Trace is a recorded run: one row of probe values per sample.
type Trace struct {
	Columns []string
	Times   []float64
	Ticks   []uint64
	Rows    [][]float64
}

// Len returns the number of samples.
func (t *Trace) Len() int { return len(t.Times) }

// Column returns the samples of the named probe, or nil.
func (t *Trace) Column(name string) []float64 {
	for i, c := range t.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(t.Rows))
		for j, row := range t.Rows {
			out[j] = row[i]
		}
		return out
	}
	return nil
}

// Recorder samples its probes after every Every-th step. It implements
// dynsys.StepObserver and is safe to read while the runner is active.
type Recorder struct {
	probes []Probe
	// Every decimates the recording; values below 1 record every step.
	Every int
	// Limit caps the number of samples kept; 0 is unlimited.
	Limit int

	mu    sync.Mutex
	trace Trace
	seen  uint64
}

func NewRecorder(probes ...Probe) *Recorder {
	cols := make([]string, len(probes))
	for i, p := range probes {
		cols[i] = p.Name
	}
	return &Recorder{probes: probes, trace: Trace{Columns: cols}}
}

func (r *Recorder) OnStep(ssi dynsys.SystemStateInfo, _ time.Duration) {
	every := uint64(1)
	if r.Every > 1 {
		every = uint64(r.Every)
	}
	r.seen++
	if (r.seen-1)%every != 0 {
		return
	}

	row := make([]float64, len(r.probes))
	for i, p := range r.probes {
		row[i] = p.Read()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Limit > 0 && len(r.trace.Times) >= r.Limit {
		r.trace.Times = r.trace.Times[1:]
		r.trace.Ticks = r.trace.Ticks[1:]
		r.trace.Rows = r.trace.Rows[1:]
	}
	r.trace.Times = append(r.trace.Times, ssi.Time.Seconds())
	r.trace.Ticks = append(r.trace.Ticks, ssi.Tick)
	r.trace.Rows = append(r.trace.Rows, row)
}

// Snapshot returns a copy of everything recorded so far.
func (r *Recorder) Snapshot() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &Trace{
		Columns: append([]string(nil), r.trace.Columns...),
		Times:   append([]float64(nil), r.trace.Times...),
		Ticks:   append([]uint64(nil), r.trace.Ticks...),
		Rows:    make([][]float64, len(r.trace.Rows)),
	}
	for i, row := range r.trace.Rows {
		t.Rows[i] = append([]float64(nil), row...)
	}
	return t
}

// Latest returns the newest value of probe i and whether any exists.
func (r *Recorder) Latest(i int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.trace.Rows)
	if n == 0 || i < 0 || i >= len(r.probes) {
		return 0, false
	}
	return r.trace.Rows[n-1][i], true
}
