package scenario

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/config"
)

// Sweep varies one parameter over [Min, Max] in Points evenly spaced values.
type Sweep struct {
	Base   *config.Config
	Param  string
	Min    float64
	Max    float64
	Points int
	// Workers bounds concurrent runs; values below 1 run one per point.
	Workers int
}

// SweepPoint is the outcome of one sweep value.
type SweepPoint struct {
	Value   float64
	Steps   uint64
	Halted  string
	Metrics map[string]float64
}

var setters = map[string]func(*config.Config, float64){
	"kp":       func(c *config.Config, v float64) { c.Control.Kp = v },
	"ki":       func(c *config.Config, v float64) { c.Control.Ki = v },
	"kd":       func(c *config.Config, v float64) { c.Control.Kd = v },
	"setpoint": func(c *config.Config, v float64) { c.Control.Setpoint = v },
	"alpha":    func(c *config.Config, v float64) { c.Control.Alpha = v },
	"limit":    func(c *config.Config, v float64) { c.Control.Limit = v },
	"rate":     func(c *config.Config, v float64) { c.Runner.RateHz = v },
	"theta":    func(c *config.Config, v float64) { c.Plant.Theta = v },
	"pos":      func(c *config.Config, v float64) { c.Plant.Pos = v },
}

// SweepParams lists the parameters a sweep accepts. Plant model parameters
// are addressed as "plant.<name>".
func SweepParams() []string {
	names := make([]string, 0, len(setters)+1)
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, "plant.<name>")
}

func setter(param string) (func(*config.Config, float64), error) {
	if set, ok := setters[param]; ok {
		return set, nil
	}
	if name, ok := strings.CutPrefix(param, "plant."); ok && name != "" {
		return func(c *config.Config, v float64) {
			params := make(map[string]float64, len(c.Plant.Params)+1)
			for k, pv := range c.Plant.Params {
				params[k] = pv
			}
			params[name] = v
			c.Plant.Params = params
		}, nil
	}
	return nil, fmt.Errorf("unknown sweep parameter: %s (available: %v)", param, SweepParams())
}

// Values returns the swept values.
func (s *Sweep) Values() []float64 {
	if s.Points <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.Points-1)
	out := make([]float64, s.Points)
	for i := range out {
		out[i] = s.Min + float64(i)*step
	}
	return out
}

// RunSweep runs one session per value concurrently. Each session owns its
// system, plant and clock. Results are returned in value order.
func RunSweep(ctx context.Context, s *Sweep, reg *app.Registry, log logrus.FieldLogger) ([]SweepPoint, error) {
	set, err := setter(s.Param)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	values := s.Values()
	points := make([]SweepPoint, len(values))
	errs := make([]error, len(values))

	workers := s.Workers
	if workers < 1 {
		workers = len(values)
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func(idx int, v float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			cfg := *s.Base
			set(&cfg, v)
			points[idx], errs[idx] = runPoint(ctx, reg, &cfg, v, log.WithField(s.Param, v))
		}(i, v)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s=%g: %w", s.Param, values[i], err)
		}
	}
	return points, nil
}

func runPoint(ctx context.Context, reg *app.Registry, cfg *config.Config, v float64, log logrus.FieldLogger) (SweepPoint, error) {
	session, err := app.NewSession(reg, cfg, nil, log)
	if err != nil {
		return SweepPoint{}, err
	}
	res, err := session.Run(ctx)
	if err != nil {
		return SweepPoint{}, err
	}
	p := SweepPoint{Value: v, Steps: res.Stats.Steps, Metrics: res.Metrics}
	if res.Err != nil {
		p.Halted = res.Err.Error()
	}
	return p, nil
}

// Best returns the point minimizing metric. Halted points never win.
func Best(points []SweepPoint, metric string) (SweepPoint, error) {
	best, found := SweepPoint{}, false
	for _, p := range points {
		v, ok := p.Metrics[metric]
		if !ok {
			return SweepPoint{}, fmt.Errorf("no metric %s", metric)
		}
		if p.Halted != "" || math.IsNaN(v) {
			continue
		}
		if !found || v < best.Metrics[metric] {
			best, found = p, true
		}
	}
	if !found {
		return SweepPoint{}, fmt.Errorf("every point halted")
	}
	return best, nil
}
