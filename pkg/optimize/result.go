package optimize

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/config"
	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/host"
)

// Result fields read by the accessors.
const (
	FieldTrajectory = "xyzs"
	FieldEnergies   = "qm_energies"
)

// Result wraps the opaque value returned by the optimizer.
type Result struct {
	value starlark.Value
}

// NewResult wraps v.
func NewResult(v starlark.Value) *Result {
	return &Result{value: v}
}

// Value returns the optimizer's result unchanged.
func (r *Result) Value() starlark.Value { return r.value }

// Field resolves a field path such as ("xyzs", -1) on the result.
func (r *Result) Field(path ...interface{}) (starlark.Value, error) {
	return host.Lookup(r.value, path...)
}

// FieldValue resolves a field path and converts it to a configuration value.
func (r *Result) FieldValue(path ...interface{}) (config.Value, error) {
	v, err := r.Field(path...)
	if err != nil {
		return nil, err
	}
	return config.FromHost(v)
}

// LastCoords returns the most recent geometry of the trajectory, flattened.
func (r *Result) LastCoords() ([]float64, error) {
	v, err := r.Field(FieldTrajectory, -1)
	if err != nil {
		return nil, err
	}
	coords, err := host.Floats(v)
	if err != nil {
		return nil, engine.NewTypeMismatchError("last trajectory frame is not numeric", err)
	}
	return coords, nil
}

// Trajectory returns every geometry of the trajectory, flattened.
func (r *Result) Trajectory() ([][]float64, error) {
	v, err := r.Field(FieldTrajectory)
	if err != nil {
		return nil, err
	}
	frames, ok := v.(starlark.Indexable)
	if !ok {
		return nil, engine.NewTypeMismatchError(fmt.Sprintf("%s is a %s, not a sequence", FieldTrajectory, v.Type()), nil)
	}
	out := make([][]float64, frames.Len())
	for i := range out {
		coords, err := host.Floats(frames.Index(i))
		if err != nil {
			return nil, engine.NewTypeMismatchError(fmt.Sprintf("trajectory frame %d is not numeric", i), err)
		}
		out[i] = coords
	}
	return out, nil
}

// LastEnergy returns the most recent energy.
func (r *Result) LastEnergy() (float64, error) {
	v, err := r.Field(FieldEnergies, -1)
	if err != nil {
		return 0, err
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, engine.NewTypeMismatchError(fmt.Sprintf("last energy is a %s, not a number", v.Type()), nil)
	}
	return f, nil
}
