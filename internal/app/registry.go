// Package app composes the demo systems that ship with flowmbed, builds
// them against simulated drivers and runs them with recording and metrics.
package app

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/san-kum/flowmbed/internal/config"
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/metrics"
	"github.com/san-kum/flowmbed/internal/plant"
	"github.com/san-kum/flowmbed/internal/trace"
)

var ErrUnknownSystem = errors.New("app: unknown system")

// Env carries what a system factory needs from the host.
type Env struct {
	// Clock drives time-based simulated drivers. It must be the runner's clock.
	Clock dynsys.Clock
	// Serial receives output of serial-style sinks.
	Serial io.Writer
}

// Rig is a composed system with its drivers bound and storage built.
type Rig struct {
	Name    string
	System  *dynsys.System
	Storage *dynsys.SystemStorage
	Probes  []trace.Probe
	Metrics *metrics.Set
	// World is the simulated plant, nil for systems without one.
	World *plant.World
}

// Factory composes a system from cfg. It declares blocks, connects them and
// binds drivers; the caller builds storage.
type Factory func(cfg *config.Config, env Env) (*Rig, map[string]any, error)

type entry struct {
	description string
	factory     Factory
}

type Registry struct {
	systems map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{systems: make(map[string]entry)}
	r.Register("pendulum_pid", "damped pendulum held upright-down by a filtered PID loop", pendulumPID)
	r.Register("spring_pid", "spring-mass positioned by a PID force loop", springPID)
	r.Register("oneshot", "one-shot digital sensor feeding a rising-edge counter", oneShot)
	r.Register("multichannel", "multi-channel waveform ADC with a filtered serial output", multiChannel)
	return r
}

func (r *Registry) Register(name, description string, f Factory) {
	r.systems[name] = entry{description: description, factory: f}
}

// List returns the registered system names in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.systems))
	for name := range r.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Describe(name string) string { return r.systems[name].description }

// Compose builds the named system: composition, driver binding and storage,
// in that order. Storage budget errors surface before binding errors.
func (r *Registry) Compose(cfg *config.Config, env Env) (*Rig, error) {
	e, ok := r.systems[cfg.System]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownSystem, cfg.System, r.List())
	}
	rig, drivers, err := e.factory(cfg, env)
	if err != nil {
		return nil, err
	}
	rig.Name = cfg.System
	for ref, d := range drivers {
		if err := rig.System.Bind(ref, d); err != nil {
			return nil, err
		}
	}
	strategy, err := cfg.StorageStrategy()
	if err != nil {
		return nil, err
	}
	st, err := rig.System.Build(strategy)
	if err != nil {
		return nil, err
	}
	rig.Storage = st
	return rig, nil
}
