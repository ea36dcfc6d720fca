package driver

import "github.com/RESTGroup/geometric-bridge/pkg/engine"

// Blank is a driver with a flat energy surface: zero energy and zero gradient
// everywhere. It is useful for exercising the plumbing without any physics.
type Blank struct{}

// CalcNew implements engine.Driver.
func (Blank) CalcNew(coords []float64, _ string) engine.GradOutput {
	return engine.GradOutput{Energy: 0, Gradient: make([]float64, len(coords))}
}
