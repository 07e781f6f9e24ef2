package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowmbed/internal/config"
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/metrics"
	"github.com/san-kum/flowmbed/internal/trace"
)

// Epoch is where manual clocks start, so simulated runs are reproducible.
var Epoch = time.Unix(0, 0).UTC()

// Session is one configured run of a composed system.
type Session struct {
	Config   *config.Config
	Rig      *Rig
	Runner   *dynsys.FixedStepRunner
	Recorder *trace.Recorder
	Clock    dynsys.Clock
	Latency  *metrics.StepLatency

	log logrus.FieldLogger
}

// Result is the outcome of Session.Run. Err holds the failure of a run that
// initialized; the partial trace is still returned.
type Result struct {
	Stats   dynsys.RunStats
	Metrics map[string]float64
	Trace   *trace.Trace
	Err     error
}

// NewSession composes cfg.System from reg. Simulated runs use a manual clock
// starting at Epoch; realtime runs use the wall clock.
func NewSession(reg *Registry, cfg *config.Config, serial io.Writer, log logrus.FieldLogger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("system", cfg.System)

	var clock dynsys.Clock = dynsys.NewManualClock(Epoch)
	if cfg.Runner.Realtime {
		clock = dynsys.RealClock
	}

	rig, err := reg.Compose(cfg, Env{Clock: clock, Serial: serial})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"strategy": rig.Storage.Strategy(),
		"used":     rig.Storage.Used(),
		"capacity": rig.Storage.Capacity(),
	}).Info("storage built")

	settings, err := cfg.RunSettings()
	if err != nil {
		return nil, err
	}
	settings.Clock = clock
	settings.Logger = log

	s := &Session{
		Config:   cfg,
		Rig:      rig,
		Runner:   dynsys.NewFixedStepRunner(settings),
		Recorder: trace.NewRecorder(rig.Probes...),
		Clock:    clock,
		Latency:  metrics.NewStepLatency(),
		log:      log,
	}
	s.Recorder.Every = cfg.Trace.Every
	rig.Metrics.Add(s.Latency)
	rig.Metrics.Add(metrics.NewOverrunRatio(settings.Interval))
	rig.Metrics.Add(metrics.NewTickJitter())

	s.Runner.AddObserver(s.Recorder)
	s.Runner.AddObserver(rig.Metrics)
	return s, nil
}

// Observe adds an extra step observer, e.g. a live monitor.
func (s *Session) Observe(o dynsys.StepObserver) { s.Runner.AddObserver(o) }

// Run executes the session. The returned error is non-nil only when the
// system never initialized or the context was canceled; step failures are
// reported in Result.Err.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	err := s.Runner.Run(ctx, s.Rig.System)
	res := &Result{
		Stats:   s.Runner.Stats(),
		Metrics: s.Rig.Metrics.Values(),
		Trace:   s.Recorder.Snapshot(),
	}
	var ie *dynsys.InitializationError
	switch {
	case err == nil:
	case errors.As(err, &ie), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return res, err
	default:
		res.Err = err
	}
	s.log.WithFields(logrus.Fields{
		"steps":    res.Stats.Steps,
		"overruns": res.Stats.Overruns,
		"skipped":  res.Stats.Skipped,
	}).Info("run finished")
	return res, nil
}

func (s *Session) Stop() { s.Runner.Stop() }

// Save stores res under store and returns the run ID.
func (s *Session) Save(store *trace.Store, res *Result) (string, error) {
	meta := trace.RunMetadata{
		System:          s.Config.System,
		Timestamp:       time.Now(),
		RateHz:          s.Config.Runner.RateHz,
		Drift:           s.Runner.Settings().Drift.String(),
		Strategy:        s.Rig.Storage.Strategy(),
		StorageUsed:     s.Rig.Storage.Used(),
		StorageCapacity: s.Rig.Storage.Capacity(),
		Steps:           res.Stats.Steps,
		Overruns:        res.Stats.Overruns,
		Skipped:         res.Stats.Skipped,
		Metrics:         res.Metrics,
	}
	if res.Err != nil {
		meta.Error = res.Err.Error()
	}
	return store.Save(meta, res.Trace)
}
