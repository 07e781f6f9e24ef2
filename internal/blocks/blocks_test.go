package blocks

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/hal/simhal"
	"github.com/san-kum/flowmbed/internal/plant"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

const dt = 100 * time.Millisecond

func build(t *testing.T, sys *dynsys.System, drivers map[string]any) {
	t.Helper()
	for ref, d := range drivers {
		require.NoError(t, sys.Bind(ref, d))
	}
	_, err := sys.Build(dynsys.NewStaticStorage(make([]byte, 256)))
	require.NoError(t, err)
}

func stepN(t *testing.T, sys *dynsys.System, n int, each func(i int)) {
	t.Helper()
	for i := 0; i < n; i++ {
		ssi := dynsys.SystemStateInfo{Step: uint64(i), Tick: uint64(i), Time: time.Duration(i) * dt, Dt: dt}
		require.NoError(t, sys.Step(&ssi))
		if each != nil {
			each(i)
		}
	}
}

func TestOneShotDigitalSequence(t *testing.T) {
	sys := dynsys.NewSystem("button")
	b := NewOneShotDigital(sys.Block("sensor"))
	require.NoError(t, sys.Add(b))
	build(t, sys, map[string]any{"sensor.sensor": simhal.NewSequenceDigital(true, false, true)})

	require.NoError(t, sys.Init())
	assert.True(t, b.Output.Get(), "after init")

	stepN(t, sys, 2, func(i int) {
		assert.Equal(t, i == 1, b.Output.Get(), "after step %d", i+1)
		assert.Equal(t, uint64(i), b.Output.UpdatedAt())
	})

	err := sys.Step(&dynsys.SystemStateInfo{Step: 2, Tick: 2})
	var se *dynsys.StepError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, simhal.ErrSequenceExhausted)
	assert.Equal(t, "sensor", se.Block)
	assert.True(t, b.Output.Get(), "a failed step must not overwrite the output")
}

func TestOneShotDigitalRunnerHalts(t *testing.T) {
	sys := dynsys.NewSystem("button")
	b := NewOneShotDigital(sys.Block("sensor"))
	require.NoError(t, sys.Add(b))
	seq := simhal.NewSequenceDigital(true, false, true)
	build(t, sys, map[string]any{"sensor.sensor": seq})

	clock := dynsys.NewManualClock(time.Unix(0, 0))
	runner := dynsys.NewFixedStepRunner(dynsys.FixedStepRunSettings{Interval: dt, Clock: clock})
	var seen []bool
	runner.AddObserver(dynsys.StepObserverFunc(func(ssi dynsys.SystemStateInfo, _ time.Duration) {
		seen = append(seen, b.Output.Get())
	}))

	err := runner.Run(context.Background(), sys)
	var se *dynsys.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, uint64(2), se.Step)
	assert.Equal(t, []bool{false, true, true}, seen)
	assert.Equal(t, uint64(3), runner.Stats().Steps)
	assert.Equal(t, 3, seq.Reads())
}

func TestOneShotDigitalUnbound(t *testing.T) {
	sys := dynsys.NewSystem("button")
	require.NoError(t, sys.Add(NewOneShotDigital(sys.Block("sensor"))))

	_, err := sys.Build(dynsys.NewHeapStorage(0))
	var pbe *dynsys.PeripheralBindingError
	require.ErrorAs(t, err, &pbe)
	assert.Equal(t, "sensor.sensor", pbe.Reference)
	assert.ErrorIs(t, err, dynsys.ErrUnbound)
}

func TestAnalogSensorScales(t *testing.T) {
	sys := dynsys.NewSystem("temp")
	s := NewAnalogSensor(sys.Block("probe"), 2, 0.5)
	require.NoError(t, sys.Add(s))
	build(t, sys, map[string]any{"probe.sensor": simhal.NewSequenceAnalog(1, 2)})

	require.NoError(t, sys.Init())
	assert.Equal(t, dynsys.Float(2.5), s.Output.Get())
	stepN(t, sys, 1, nil)
	assert.Equal(t, dynsys.Float(4.5), s.Output.Get())
}

func TestMultiChannelSensor(t *testing.T) {
	clock := dynsys.NewManualClock(time.Unix(0, 0))
	adc := simhal.NewWaveADC(clock, simhal.Wave{Offset: 1}, simhal.Wave{Offset: 2}, simhal.Wave{Offset: 3})

	sys := dynsys.NewSystem("daq")
	m := NewMultiChannelSensor(sys.Block("adc"), 3)
	require.NoError(t, sys.Add(m))
	build(t, sys, map[string]any{"adc.adc": adc})
	require.NoError(t, sys.Init())
	stepN(t, sys, 2, nil)

	for i, out := range m.Outputs {
		assert.Equal(t, dynsys.Float(i+1), out.Get(), "ch%d", i)
	}
	assert.Equal(t, 9, adc.Driver().Samples)
}

func TestMultiChannelSensorTooFewChannels(t *testing.T) {
	sys := dynsys.NewSystem("daq")
	require.NoError(t, sys.Add(NewMultiChannelSensor(sys.Block("adc"), 4)))
	require.NoError(t, sys.Bind("adc.adc", simhal.NewWaveADC(nil, simhal.Wave{}, simhal.Wave{})))

	_, err := sys.Build(dynsys.NewHeapStorage(0))
	assert.ErrorIs(t, err, dynsys.ErrChannelCount)
}

func TestLowPassSmoothsStep(t *testing.T) {
	sys := dynsys.NewSystem("filter")
	s := NewAnalogSensor(sys.Block("probe"), 1, 0)
	lp := NewLowPass(sys.Block("lp"), 0.5)
	require.NoError(t, sys.Add(s))
	require.NoError(t, sys.Add(lp))
	require.NoError(t, dynsys.Connect(sys, s.Output, lp.Input))
	build(t, sys, map[string]any{"probe.sensor": simhal.NewSequenceAnalog(0, 10, 10, 10)})
	require.NoError(t, sys.Init())

	var got []dynsys.Float
	stepN(t, sys, 3, func(int) { got = append(got, lp.Output.Get()) })
	assert.Equal(t, []dynsys.Float{0, 5, 7.5}, got)
}

func TestEdgeCounter(t *testing.T) {
	sys := dynsys.NewSystem("edges")
	b := NewOneShotDigital(sys.Block("button"))
	c := NewEdgeCounter(sys.Block("counter"))
	require.NoError(t, sys.Add(b))
	require.NoError(t, sys.Add(c))
	require.NoError(t, dynsys.Connect(sys, b.Output, c.Input))
	build(t, sys, map[string]any{
		"button.sensor": simhal.NewSequenceDigital(false, true, true, false, true, false),
	})
	require.NoError(t, sys.Init())

	stepN(t, sys, 5, nil)
	assert.Equal(t, dynsys.Int(2), c.Count.Get())
	assert.Equal(t, uint64(4), c.Count.UpdatedAt())
}

func TestPIDProportionalIntegral(t *testing.T) {
	tests := []struct {
		name  string
		limit dynsys.Float
		want  []dynsys.Float
	}{
		{"unclamped", 0, []dynsys.Float{2, 2.1, 2.2}},
		{"clamped without windup", 2.05, []dynsys.Float{2, 2.05, 2.05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := dynsys.NewSystem("loop")
			pid := NewPID(sys.Block("pid"), PIDGains{Kp: 2, Ki: 1, Setpoint: 1, Limit: tt.limit})
			require.NoError(t, sys.Add(pid))
			build(t, sys, nil)
			require.NoError(t, sys.Init())

			var got []dynsys.Float
			stepN(t, sys, 3, func(int) { got = append(got, pid.Command.Get()) })
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], 1e-5, "step %d", i)
			}
		})
	}
}

func TestActuatorWritesSafeValueThenCommands(t *testing.T) {
	var serial bytes.Buffer
	sys := dynsys.NewSystem("out")
	s := NewAnalogSensor(sys.Block("probe"), 1, 0)
	a := NewActuator(sys.Block("valve"), -1)
	require.NoError(t, sys.Add(s))
	require.NoError(t, sys.Add(a))
	require.NoError(t, dynsys.Connect(sys, s.Output, a.Command))
	build(t, sys, map[string]any{
		"probe.sensor": simhal.NewSequenceAnalog(0.25, 0.5),
		"valve.sink":   simhal.NewSerialValueSink(&serial, "valve"),
	})

	require.NoError(t, sys.Init())
	stepN(t, sys, 1, nil)
	assert.Equal(t, "valve=-1\nvalve=0.25\n", serial.String())
	assert.Equal(t, dynsys.Float(0.25), a.Applied.Get())

	refs := a.Peripherals()
	require.Len(t, refs, 1)
	assert.Equal(t, dynsys.DirOutput, refs[0].Direction())
	assert.IsType(t, &dynsys.CapabilityRef{}, refs[0])
}

func TestActuatorSinkFailureStopsStep(t *testing.T) {
	sys := dynsys.NewSystem("out")
	a := NewActuator(sys.Block("valve"), 0)
	require.NoError(t, sys.Add(a))
	build(t, sys, map[string]any{"valve.sink": failingSink{}})

	err := sys.Init()
	var ie *dynsys.InitializationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "valve", ie.Block)
}

type failingSink struct{}

func (failingSink) Write(dynsys.Float) error { return errors.New("bus off") }

func TestClosedLoopSpringMass(t *testing.T) {
	sm := plant.NewSpringMass()
	world, err := plant.NewWorld(sm, nil, plant.State{0, 0}, 0.001)
	require.NoError(t, err)
	pos, err := simhal.NewPlantSensor(world, 0)
	require.NoError(t, err)
	force, err := simhal.NewPlantActuator(world, 0)
	require.NoError(t, err)

	sys := dynsys.NewSystem("spring")
	env := simhal.NewWorldBlock(sys.Block("env"))
	sensor := NewAnalogSensor(sys.Block("position"), 1, 0)
	pid := NewPID(sys.Block("pid"), PIDGains{Kp: 15, Ki: 15, Kd: 3, Setpoint: 0.5})
	act := NewActuator(sys.Block("force"), 0)
	for _, b := range []dynsys.Block{env, sensor, pid, act} {
		require.NoError(t, sys.Add(b))
	}
	require.NoError(t, dynsys.Connect(sys, sensor.Output, pid.Measurement))
	require.NoError(t, dynsys.Connect(sys, pid.Command, act.Command))
	build(t, sys, map[string]any{
		"env.world":       world,
		"position.sensor": pos,
		"force.sink":      force,
	})

	clock := dynsys.NewManualClock(time.Unix(0, 0))
	runner := dynsys.NewFixedStepRunner(dynsys.FixedStepRunSettings{
		Interval: 10 * time.Millisecond,
		MaxTicks: 1000,
		Clock:    clock,
	})
	require.NoError(t, runner.Run(context.Background(), sys))

	assert.InDelta(t, 0.5, world.Component(0), 0.05)
	assert.False(t, math.IsNaN(float64(pid.Command.Get())))
	assert.InDelta(t, 9.99, world.Time(), 1e-9)
}
