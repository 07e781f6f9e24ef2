package dynsys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DriftPolicy decides what the runner does when a step overruns its interval.
type DriftPolicy int

const (
	// RunEveryTick steps every logical tick, running late ticks back to back
	// until the schedule is caught up. Logical time never skips.
	RunEveryTick DriftPolicy = iota
	// SkipMissedTicks drops tick boundaries that passed during an overrun and
	// resumes at the next future boundary. SystemStateInfo.Tick jumps.
	SkipMissedTicks
)

func (p DriftPolicy) String() string {
	switch p {
	case RunEveryTick:
		return "run-every-tick"
	case SkipMissedTicks:
		return "skip-missed-ticks"
	default:
		return fmt.Sprintf("drift(%d)", int(p))
	}
}

// ParseDriftPolicy parses the String form of a policy.
func ParseDriftPolicy(s string) (DriftPolicy, error) {
	switch s {
	case "", "run-every-tick":
		return RunEveryTick, nil
	case "skip-missed-ticks":
		return SkipMissedTicks, nil
	default:
		return 0, fmt.Errorf("unknown drift policy: %s", s)
	}
}

// FixedStepRunSettings configures a FixedStepRunner.
type FixedStepRunSettings struct {
	Interval time.Duration
	Drift    DriftPolicy
	// MaxTicks bounds the number of steps; 0 runs until stopped.
	MaxTicks uint64
	Clock    Clock
	Logger   logrus.FieldLogger
}

// DefaultRunSettings returns a 100 Hz run-forever configuration.
func DefaultRunSettings() FixedStepRunSettings {
	return FixedStepRunSettings{
		Interval: 10 * time.Millisecond,
		Drift:    RunEveryTick,
	}
}

// FromFrequency returns default settings at the given rate in Hz.
func FromFrequency(hz float64) FixedStepRunSettings {
	s := DefaultRunSettings()
	if hz > 0 {
		s.Interval = time.Duration(float64(time.Second) / hz)
	} else {
		s.Interval = 0
	}
	return s
}

func (s FixedStepRunSettings) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", s.Interval)
	}
	if s.Drift != RunEveryTick && s.Drift != SkipMissedTicks {
		return fmt.Errorf("unknown drift policy %d", int(s.Drift))
	}
	return nil
}

// StepObserver is notified after every step with the time the step took.
type StepObserver interface {
	OnStep(ssi SystemStateInfo, took time.Duration)
}

// StepObserverFunc adapts a function to StepObserver.
type StepObserverFunc func(ssi SystemStateInfo, took time.Duration)

func (f StepObserverFunc) OnStep(ssi SystemStateInfo, took time.Duration) { f(ssi, took) }

// RunStats summarizes a run.
type RunStats struct {
	Steps           uint64
	Overruns        uint64
	Skipped         uint64
	MaxStepDuration time.Duration
}

// SystemRunner drives a DynamicalSystem.
type SystemRunner interface {
	Run(ctx context.Context, sys DynamicalSystem) error
	Stop()
}

// FixedStepRunner calls Init once and then Step at a fixed interval on the
// calling goroutine.
type FixedStepRunner struct {
	settings  FixedStepRunSettings
	observers []StepObserver

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	stats   RunStats
	stopped atomic.Bool
}

// NewFixedStepRunner returns a runner. A nil Clock or Logger in settings
// selects RealClock and the logrus standard logger.
func NewFixedStepRunner(settings FixedStepRunSettings) *FixedStepRunner {
	if settings.Clock == nil {
		settings.Clock = RealClock
	}
	if settings.Logger == nil {
		settings.Logger = logrus.StandardLogger()
	}
	return &FixedStepRunner{settings: settings}
}

// Settings returns the effective settings.
func (r *FixedStepRunner) Settings() FixedStepRunSettings { return r.settings }

// AddObserver registers an observer. Observers run on the runner goroutine
// between steps and must not block.
func (r *FixedStepRunner) AddObserver(o StepObserver) { r.observers = append(r.observers, o) }

// Stop requests the run to end at the next tick boundary. A step in
// progress always completes. A Stop issued while no run is active is not
// retained: the next Run starts fresh.
func (r *FixedStepRunner) Stop() {
	r.mu.Lock()
	r.stopped.Store(true)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
}

// Stats returns a snapshot of the current or last run.
func (r *FixedStepRunner) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run initializes sys and steps it until MaxTicks, Stop, context
// cancellation or a failure. It returns nil after Stop or MaxTicks,
// ctx.Err() after cancellation, and an *InitializationError or *StepError
// after a failure. A failed step is never retried.
func (r *FixedStepRunner) Run(ctx context.Context, sys DynamicalSystem) error {
	if err := r.settings.Validate(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunnerBusy
	}
	r.running = true
	r.stopped.Store(false)
	r.cancel = cancel
	r.stats = RunStats{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	log := r.settings.Logger.WithFields(logrus.Fields{
		"interval": r.settings.Interval,
		"drift":    r.settings.Drift.String(),
	})

	if err := sys.Init(); err != nil {
		log.WithError(err).Error("system init failed; not scheduling")
		var ie *InitializationError
		if !errors.As(err, &ie) {
			err = &InitializationError{Block: systemName(sys), Wrapped: err}
		}
		return err
	}
	log.Info("system initialized, entering fixed-step loop")

	return r.loop(runCtx, ctx, sys, log)
}

func (r *FixedStepRunner) loop(runCtx, parent context.Context, sys DynamicalSystem, log logrus.FieldLogger) error {
	clock := r.settings.Clock
	interval := r.settings.Interval
	start := clock.Now()

	var tick, step, prevTick uint64
	for {
		if r.settings.MaxTicks > 0 && step >= r.settings.MaxTicks {
			log.WithField("steps", step).Info("tick limit reached")
			return nil
		}

		deadline := start.Add(time.Duration(tick) * interval)
		if wait := deadline.Sub(clock.Now()); wait > 0 {
			if err := clock.Sleep(runCtx, wait); err != nil {
				return r.exit(parent, log, step)
			}
		}
		if r.stopped.Load() || runCtx.Err() != nil {
			return r.exit(parent, log, step)
		}

		ssi := SystemStateInfo{
			Step: step,
			Tick: tick,
			Time: time.Duration(tick) * interval,
			Dt:   interval,
		}
		if step > 0 {
			ssi.Dt = time.Duration(tick-prevTick) * interval
		}
		began := clock.Now()
		ssi.Wall = began.Sub(start)

		err := sys.Step(&ssi)
		took := clock.Now().Sub(began)

		r.record(took)
		for _, o := range r.observers {
			o.OnStep(ssi, took)
		}

		if err != nil {
			log.WithError(err).Errorf("[tick %07d] step failed; stopping", tick)
			var se *StepError
			if !errors.As(err, &se) {
				err = &StepError{Block: systemName(sys), Step: step, Wrapped: err}
			}
			return err
		}
		log.Debugf("[tick %07d] step %d took %v", tick, step, took)

		prevTick = tick
		step++
		tick = r.nextTick(tick, start, clock.Now(), log)
	}
}

// nextTick applies the drift policy after the step at tick.
func (r *FixedStepRunner) nextTick(tick uint64, start, now time.Time, log logrus.FieldLogger) uint64 {
	interval := r.settings.Interval
	next := tick + 1
	boundary := start.Add(time.Duration(next) * interval)
	if !now.After(boundary) {
		return next
	}

	elapsed := now.Sub(start)
	due := uint64((elapsed + interval - 1) / interval)

	r.mu.Lock()
	r.stats.Overruns++
	if r.settings.Drift == SkipMissedTicks {
		r.stats.Skipped += due - next
	}
	r.mu.Unlock()

	if r.settings.Drift == SkipMissedTicks {
		log.Warnf("[tick %07d] overrun: skipping %d missed ticks", tick, due-next)
		return due
	}
	log.Warnf("[tick %07d] overrun: behind schedule by %v", tick, now.Sub(boundary))
	return next
}

func (r *FixedStepRunner) record(took time.Duration) {
	r.mu.Lock()
	r.stats.Steps++
	if took > r.stats.MaxStepDuration {
		r.stats.MaxStepDuration = took
	}
	r.mu.Unlock()
}

func (r *FixedStepRunner) exit(parent context.Context, log logrus.FieldLogger, steps uint64) error {
	if r.stopped.Load() {
		log.WithField("steps", steps).Info("runner stopped")
		return nil
	}
	log.WithField("steps", steps).Info("runner canceled")
	return parent.Err()
}

func systemName(sys DynamicalSystem) string {
	if n, ok := sys.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", sys)
}
