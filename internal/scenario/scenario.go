// Package scenario runs scripted batches of system runs and parameter sweeps.
package scenario

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/config"
	"github.com/san-kum/flowmbed/internal/trace"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Runs        []Run  `yaml:"runs"`
}

// Run is one entry of a scenario. Config is decoded over the preset (or the
// defaults), so it only needs the fields that differ.
type Run struct {
	Name   string    `yaml:"name"`
	System string    `yaml:"system"`
	Preset string    `yaml:"preset"`
	Config yaml.Node `yaml:"config"`
	Save   bool      `yaml:"save"`
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Name   string
	Result *app.Result
	RunID  string
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if len(sc.Runs) == 0 {
		return nil, fmt.Errorf("scenario %s has no runs", sc.Name)
	}
	return &sc, nil
}

// Resolve returns the effective configuration of r.
func (r *Run) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if r.Preset != "" {
		if cfg = config.GetPreset(r.System, r.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", r.Preset, config.ListPresets(r.System))
		}
	}
	if !r.Config.IsZero() {
		if err := r.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if r.System != "" {
		cfg.System = r.System
	}
	return cfg, cfg.Validate()
}

// Execute runs every entry in order. It stops at the first run that cannot
// be set up; a run that halts on a step failure is recorded and the
// scenario continues. store may be nil when no run saves.
func Execute(ctx context.Context, sc *Scenario, reg *app.Registry, store *trace.Store, log logrus.FieldLogger) ([]Outcome, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	outcomes := make([]Outcome, 0, len(sc.Runs))
	for i := range sc.Runs {
		r := &sc.Runs[i]
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", r.System, i+1)
		}
		log.WithField("run", name).Infof("running %d/%d", i+1, len(sc.Runs))

		cfg, err := r.Resolve()
		if err != nil {
			return outcomes, fmt.Errorf("run %s: %w", name, err)
		}
		s, err := app.NewSession(reg, cfg, nil, log)
		if err != nil {
			return outcomes, fmt.Errorf("run %s setup: %w", name, err)
		}
		res, err := s.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("run %s: %w", name, err)
		}

		out := Outcome{Name: name, Result: res}
		if r.Save {
			if store == nil {
				return outcomes, fmt.Errorf("run %s: save requested without a store", name)
			}
			if out.RunID, err = s.Save(store, res); err != nil {
				return outcomes, fmt.Errorf("run %s save: %w", name, err)
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
