package trace

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level bool

func TestToFloat(t *testing.T) {
	assert.Equal(t, 1.0, toFloat(true))
	assert.Equal(t, 0.0, toFloat(level(false)))
	assert.Equal(t, -3.0, toFloat(int32(-3)))
	assert.Equal(t, 7.0, toFloat(uint8(7)))
	assert.InDelta(t, 0.1, toFloat(float32(0.1)), 1e-7)
}

type lamp struct {
	dynsys.BlockBase
	on *dynsys.Output[dynsys.Bool]
}

func (l *lamp) Init() error                            { return l.on.Initialize(true) }
func (l *lamp) Step(ssi *dynsys.SystemStateInfo) error { l.on.Update(false, ssi); return nil }

func TestOutputProbe(t *testing.T) {
	sys := dynsys.NewSystem("probe")
	bb := sys.Block("lamp")
	l := &lamp{BlockBase: dynsys.NewBlockBase(bb), on: dynsys.NewOutput[dynsys.Bool](bb, "on")}
	require.NoError(t, sys.Add(l))
	_, err := sys.Build(dynsys.NewHeapStorage(0))
	require.NoError(t, err)
	require.NoError(t, sys.Init())

	p := Output("lamp.on", l.on)
	assert.Equal(t, "lamp.on", p.Name)
	assert.Equal(t, 1.0, p.Read())
	require.NoError(t, sys.Step(nil))
	assert.Equal(t, 0.0, p.Read())
}

func record(r *Recorder, n int) {
	for i := 0; i < n; i++ {
		r.OnStep(dynsys.SystemStateInfo{
			Step: uint64(i),
			Tick: uint64(i),
			Time: time.Duration(i) * 10 * time.Millisecond,
		}, 0)
	}
}

func TestRecorder(t *testing.T) {
	x := 0.0
	r := NewRecorder(
		Func("x", func() float64 { x++; return x }),
		Func("half", func() float64 { return x / 2 }),
	)
	record(r, 3)

	tr := r.Snapshot()
	require.Equal(t, 3, tr.Len())
	assert.Equal(t, []string{"x", "half"}, tr.Columns)
	assert.Equal(t, []float64{1, 2, 3}, tr.Column("x"))
	assert.Equal(t, []float64{0.5, 1, 1.5}, tr.Column("half"))
	assert.Equal(t, []uint64{0, 1, 2}, tr.Ticks)
	assert.InDeltaSlice(t, []float64{0, 0.01, 0.02}, tr.Times, 1e-12)
	assert.Nil(t, tr.Column("missing"))

	v, ok := r.Latest(0)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestRecorderDecimationAndLimit(t *testing.T) {
	n := 0.0
	r := NewRecorder(Func("n", func() float64 { n++; return n }))
	r.Every = 2
	r.Limit = 2
	record(r, 7)

	tr := r.Snapshot()
	assert.Equal(t, []uint64{4, 6}, tr.Ticks)
	assert.Equal(t, []float64{3, 4}, tr.Column("n"))
}

func TestStoreSaveLoad(t *testing.T) {
	st := NewStore(t.TempDir())
	require.NoError(t, st.Init())

	tr := &Trace{
		Columns: []string{"angle", "torque"},
		Times:   []float64{0, 0.01},
		Ticks:   []uint64{0, 1},
		Rows:    [][]float64{{1.0, 0.0}, {0.9, -0.125}},
	}
	runID, err := st.Save(RunMetadata{
		System:   "pendulum_pid",
		RateHz:   100,
		Drift:    dynsys.RunEveryTick.String(),
		Strategy: "static",
		Steps:    2,
		Metrics:  map[string]float64{"overrun_ratio": 0},
	}, tr)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "pendulum_pid", meta.System)
	assert.Equal(t, uint64(2), meta.Steps)
	assert.Equal(t, "run-every-tick", meta.Drift)
	assert.Contains(t, meta.Metrics, "overrun_ratio")

	loaded, err := st.LoadTrace(runID)
	require.NoError(t, err)
	assert.Equal(t, tr, loaded)
}

func TestStoreList(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, st.Init())
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, name := range []string{"b", "a"} {
		_, err := st.Save(RunMetadata{System: name, Timestamp: base.Add(time.Duration(i) * time.Second)}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].System)
	assert.Equal(t, "a", runs[1].System)
}

func TestLoadTraceRejectsCorruptRows(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad", "samples.csv"),
		[]byte("time,tick,x\n0.000000,0,1\n0.010000,one,2\n"), 0644))

	_, err := st.LoadTrace("bad")
	assert.Error(t, err)
}

func TestDominantFrequency(t *testing.T) {
	const rate = 128.0
	data := make([]float64, 256)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*8*float64(i)/rate)
	}
	assert.InDelta(t, 8.0, DominantFrequency(data, rate), 1e-9)
	assert.Equal(t, 0.0, DominantFrequency([]float64{1, 1, 1}, rate))
}

func TestFFTPadsToPowerOfTwo(t *testing.T) {
	assert.Len(t, FFT(make([]float64, 5)), 8)
	assert.Len(t, PowerSpectrum(make([]float64, 5)), 4)
}
