package simhal

import (
	"fmt"
	"math"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/plant"
)

// PlantSensor reads one state component of a simulated plant.
type PlantSensor struct {
	world *plant.World
	index int
	// Scale converts plant units to sensor units.
	Scale float64
}

func NewPlantSensor(w *plant.World, index int) (*PlantSensor, error) {
	if index < 0 || index >= w.Model().StateDim() {
		return nil, fmt.Errorf("%w: state component %d", plant.ErrDimensionMismatch, index)
	}
	return &PlantSensor{world: w, index: index, Scale: 1}, nil
}

func (s *PlantSensor) Read() (dynsys.Float, error) {
	return dynsys.Float(s.world.Component(s.index) * s.Scale), nil
}

// PlantActuator drives one control input of a simulated plant. Values are
// clamped to ±Limit when Limit is positive.
type PlantActuator struct {
	world *plant.World
	index int
	Limit float64
}

func NewPlantActuator(w *plant.World, index int) (*PlantActuator, error) {
	if index < 0 || index >= w.Model().ControlDim() {
		return nil, fmt.Errorf("%w: control input %d", plant.ErrDimensionMismatch, index)
	}
	return &PlantActuator{world: w, index: index}, nil
}

func (a *PlantActuator) Write(v dynsys.Float) error {
	u := float64(v)
	if math.IsNaN(u) {
		return fmt.Errorf("simhal: refusing NaN actuator command")
	}
	if a.Limit > 0 {
		u = math.Max(-a.Limit, math.Min(a.Limit, u))
	}
	a.world.SetControl(a.index, u)
	return nil
}
