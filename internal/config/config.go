package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSystem   = "pendulum_pid"
	DefaultRateHz   = 100.0
	DefaultDuration = 10.0
	DefaultBudget   = 256
	DefaultSubstep  = 0.001
	DefaultKp       = 20.0
	DefaultKi       = 2.0
	DefaultKd       = 4.0
	DefaultAlpha    = 0.5
	DefaultDataDir  = ".flowmbed"
)

type Config struct {
	System  string        `yaml:"system"`
	Runner  RunnerConfig  `yaml:"runner"`
	Storage StorageConfig `yaml:"storage"`
	Plant   PlantConfig   `yaml:"plant"`
	Control ControlConfig `yaml:"control"`
	Inputs  InputConfig   `yaml:"inputs"`
	Trace   TraceConfig   `yaml:"trace"`
}

type RunnerConfig struct {
	RateHz float64 `yaml:"rate_hz"`
	Drift  string  `yaml:"drift"`
	// Duration in seconds of logical time; 0 runs until interrupted.
	Duration float64 `yaml:"duration"`
	// Realtime paces steps on the wall clock instead of a logical clock.
	Realtime bool `yaml:"realtime"`
}

type StorageConfig struct {
	Strategy string `yaml:"strategy"`
	// Budget is the static buffer size, or the heap limit (0 = unbounded).
	Budget int `yaml:"budget"`
}

type PlantConfig struct {
	Theta   float64            `yaml:"theta"`
	Omega   float64            `yaml:"omega"`
	Pos     float64            `yaml:"pos"`
	Vel     float64            `yaml:"vel"`
	Substep float64            `yaml:"substep"`
	Limit   float64            `yaml:"limit"`
	Params  map[string]float64 `yaml:"params,omitempty"`
}

type ControlConfig struct {
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
	Setpoint float64 `yaml:"setpoint"`
	Limit    float64 `yaml:"limit"`
	Alpha    float64 `yaml:"alpha"`
}

type WaveConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	Frequency float64 `yaml:"frequency"`
	Phase     float64 `yaml:"phase"`
	Offset    float64 `yaml:"offset"`
}

type InputConfig struct {
	Sequence []bool       `yaml:"sequence,omitempty"`
	Waves    []WaveConfig `yaml:"waves,omitempty"`
}

type TraceConfig struct {
	Dir   string `yaml:"dir"`
	Every int    `yaml:"every"`
	Save  bool   `yaml:"save"`
}

func DefaultConfig() *Config {
	return &Config{
		System: DefaultSystem,
		Runner: RunnerConfig{
			RateHz:   DefaultRateHz,
			Drift:    dynsys.RunEveryTick.String(),
			Duration: DefaultDuration,
		},
		Storage: StorageConfig{
			Strategy: "static",
			Budget:   DefaultBudget,
		},
		Plant: PlantConfig{
			Theta:   0.5,
			Substep: DefaultSubstep,
		},
		Control: ControlConfig{
			Kp:    DefaultKp,
			Ki:    DefaultKi,
			Kd:    DefaultKd,
			Alpha: DefaultAlpha,
		},
		Inputs: InputConfig{
			Sequence: []bool{true, false, true, true, false, true},
			Waves: []WaveConfig{
				{Amplitude: 1, Frequency: 1},
				{Amplitude: 0.5, Frequency: 5, Offset: 1},
			},
		},
		Trace: TraceConfig{
			Dir:   DefaultDataDir,
			Every: 1,
			Save:  true,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	if c.System == "" {
		errs = append(errs, errors.New("system must be set"))
	}
	if c.Runner.RateHz <= 0 {
		errs = append(errs, fmt.Errorf("rate_hz must be positive, got %f", c.Runner.RateHz))
	}
	if c.Runner.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %f", c.Runner.Duration))
	}
	if _, err := dynsys.ParseDriftPolicy(c.Runner.Drift); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Strategy {
	case "static":
		if c.Storage.Budget <= 0 {
			errs = append(errs, fmt.Errorf("static storage needs a positive budget, got %d", c.Storage.Budget))
		}
	case "heap":
	default:
		errs = append(errs, fmt.Errorf("unknown storage strategy: %s", c.Storage.Strategy))
	}
	if c.Plant.Substep <= 0 {
		errs = append(errs, fmt.Errorf("substep must be positive, got %f", c.Plant.Substep))
	}
	if c.Control.Alpha < 0 || c.Control.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha must be in [0,1], got %f", c.Control.Alpha))
	}
	return errors.Join(errs...)
}

// Interval returns the tick interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.Runner.RateHz)
}

// MaxTicks converts the run duration to a tick count; 0 means unbounded.
func (c *Config) MaxTicks() uint64 {
	if c.Runner.Duration <= 0 {
		return 0
	}
	return uint64(c.Runner.Duration*c.Runner.RateHz + 0.5)
}

// RunSettings returns runner settings without a clock or logger.
func (c *Config) RunSettings() (dynsys.FixedStepRunSettings, error) {
	drift, err := dynsys.ParseDriftPolicy(c.Runner.Drift)
	if err != nil {
		return dynsys.FixedStepRunSettings{}, err
	}
	s := dynsys.FromFrequency(c.Runner.RateHz)
	s.Drift = drift
	s.MaxTicks = c.MaxTicks()
	return s, s.Validate()
}

// StorageStrategy returns a fresh strategy for one build.
func (c *Config) StorageStrategy() (dynsys.StorageStrategy, error) {
	switch c.Storage.Strategy {
	case "static":
		if c.Storage.Budget <= 0 {
			return nil, fmt.Errorf("static storage needs a positive budget, got %d", c.Storage.Budget)
		}
		return dynsys.NewStaticStorage(make([]byte, c.Storage.Budget)), nil
	case "heap":
		return dynsys.NewHeapStorage(c.Storage.Budget), nil
	default:
		return nil, fmt.Errorf("unknown storage strategy: %s", c.Storage.Strategy)
	}
}
