package config

// Presets holds named overrides per system. A preset is applied over
// DefaultConfig with Apply.
var Presets = map[string]map[string]func(*Config){
	"pendulum_pid": {
		"gentle": func(c *Config) {
			c.Plant.Theta = 0.2
			c.Control = ControlConfig{Kp: 10, Ki: 1, Kd: 2, Alpha: 1}
		},
		"swing-up": func(c *Config) {
			c.Plant.Theta = 2.5
			c.Control.Limit = 8
			c.Runner.Duration = 20
		},
		"tight-budget": func(c *Config) {
			c.Storage = StorageConfig{Strategy: "static", Budget: 32}
		},
		"slow-loop": func(c *Config) {
			c.Runner.RateHz = 20
			c.Runner.Drift = "skip-missed-ticks"
		},
	},
	"spring_pid": {
		"step": func(c *Config) {
			c.Plant.Pos = 0
			c.Control = ControlConfig{Kp: 15, Ki: 15, Kd: 3, Setpoint: 0.5, Alpha: 1}
		},
		"saturated": func(c *Config) {
			c.Control = ControlConfig{Kp: 15, Ki: 15, Kd: 3, Setpoint: 2, Limit: 5, Alpha: 1}
			c.Plant.Limit = 5
		},
	},
	"oneshot": {
		"blink": func(c *Config) {
			c.Inputs.Sequence = []bool{true, false, true, false, true, false, true, false}
			c.Runner.RateHz = 2
			c.Runner.Duration = 3.5
		},
		"fault": func(c *Config) {
			c.Inputs.Sequence = []bool{true, false, true}
			c.Runner.Duration = 0
		},
	},
	"multichannel": {
		"daq": func(c *Config) {
			c.Inputs.Waves = []WaveConfig{
				{Amplitude: 1, Frequency: 2},
				{Amplitude: 1, Frequency: 7, Phase: 1.57},
				{Offset: 3.3},
				{Amplitude: 0.2, Frequency: 25, Offset: 1.65},
			}
			c.Runner.RateHz = 200
			c.Storage = StorageConfig{Strategy: "heap"}
		},
	},
}

// GetPreset returns DefaultConfig for system with the named preset
// applied, or nil when there is no such preset.
func GetPreset(system, preset string) *Config {
	apply, ok := Presets[system][preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.System = system
	apply(cfg)
	return cfg
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	return names
}
