package engine

import (
	"fmt"
	"math"
)

// GradOutput is the result of a single energy and gradient evaluation.
// Gradient holds one component per coordinate, so its length is 3 times the atom count.
type GradOutput struct {
	// Energy is the scalar energy at the evaluated geometry.
	Energy float64 `json:"energy"`

	// Gradient is the flat gradient, laid out like the input coordinates.
	Gradient []float64 `json:"gradient"`
}

// Validate checks the output against the coordinate slice it was computed for.
func (o GradOutput) Validate(coords []float64) error {
	if len(o.Gradient) != len(coords) {
		return NewDriverFailureError(
			fmt.Sprintf("driver returned %d gradient components for %d coordinates", len(o.Gradient), len(coords)),
			nil,
		).WithDetail("gradient_len", len(o.Gradient)).WithDetail("coords_len", len(coords))
	}
	if math.IsNaN(o.Energy) {
		return NewDriverFailureError("driver returned NaN energy", nil)
	}
	return nil
}

// Driver computes energy and gradient for a flat Cartesian coordinate slice.
//
// coords has length 3N for N atoms. dirname is a working directory hint that
// drivers may ignore. A driver has no error channel: it reports failure by
// panicking, which aborts the enclosing optimization call. Drivers may mutate
// their own state between calls, for example to keep the last evaluated geometry.
type Driver interface {
	CalcNew(coords []float64, dirname string) GradOutput
}

// DriverFunc adapts an ordinary function to the Driver interface.
type DriverFunc func(coords []float64, dirname string) GradOutput

// CalcNew calls f(coords, dirname).
func (f DriverFunc) CalcNew(coords []float64, dirname string) GradOutput {
	return f(coords, dirname)
}

// AtomCount returns the number of atoms described by a flat coordinate slice.
func AtomCount(coords []float64) (int, error) {
	if len(coords) == 0 {
		return 0, NewContractError("coordinates are empty", nil)
	}
	if len(coords)%3 != 0 {
		return 0, NewContractError(
			fmt.Sprintf("coordinate length %d is not a multiple of 3", len(coords)), nil,
		).WithDetail("coords_len", len(coords))
	}
	return len(coords) / 3, nil
}
