package driver

import (
	"fmt"
	"math"
	"sync"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// distanceEpsilon keeps the gradient finite when two atoms coincide.
const distanceEpsilon = 1e-60

// Model is a three-point spring model: every pair of atoms is joined by a
// spring with equilibrium length b[i][j] and weight w[i][j].
//
// The model records the last evaluated geometry and energy, so a caller can
// read the final point of an optimization back from the model itself.
type Model struct {
	b [3][3]float64
	w [3][3]float64

	mu            sync.Mutex
	currentCoords []float64
	currentEnergy *float64
}

var _ engine.Driver = (*Model)(nil)

// NewModel creates the model with its standard parameters.
func NewModel() *Model {
	return &Model{
		b: [3][3]float64{{0.0, 1.8, 1.8}, {1.8, 0.0, 2.8}, {1.8, 2.8, 0.0}},
		w: [3][3]float64{{0.0, 1.0, 1.0}, {1.0, 0.0, 0.5}, {1.0, 0.5, 0.0}},
	}
}

// CalcNew implements engine.Driver.
func (m *Model) CalcNew(coords []float64, _ string) engine.GradOutput {
	return m.CalcEngGrad(coords)
}

// CalcEngGrad evaluates
//
//	E = sum_ij w_ij (|r_i - r_j| - b_ij)^2
//
// and its Cartesian gradient. It panics unless coords holds exactly three atoms.
func (m *Model) CalcEngGrad(coords []float64) engine.GradOutput {
	if len(coords) != 9 {
		panic(fmt.Sprintf("model expects 3 atoms (9 coordinates), got %d coordinates", len(coords)))
	}

	const natm = 3
	var dr [natm][natm][3]float64
	var dist [natm][natm]float64
	for i := 0; i < natm; i++ {
		for j := 0; j < natm; j++ {
			var sq float64
			for x := 0; x < 3; x++ {
				dr[i][j][x] = coords[3*i+x] - coords[3*j+x]
				sq += dr[i][j][x] * dr[i][j][x]
			}
			dist[i][j] = math.Sqrt(sq)
		}
	}

	var energy float64
	grad := make([]float64, 3*natm)
	for i := 0; i < natm; i++ {
		for j := 0; j < natm; j++ {
			diff := dist[i][j] - m.b[i][j]
			energy += m.w[i][j] * diff * diff

			tmp := 2 * m.w[i][j] * diff / (dist[i][j] + distanceEpsilon)
			for x := 0; x < 3; x++ {
				grad[3*i+x] += tmp * dr[i][j][x]
				grad[3*j+x] -= tmp * dr[i][j][x]
			}
		}
	}

	m.mu.Lock()
	m.currentCoords = append(m.currentCoords[:0], coords...)
	m.currentEnergy = &energy
	m.mu.Unlock()

	return engine.GradOutput{Energy: energy, Gradient: grad}
}

// CurrentCoords returns a copy of the last evaluated coordinates, or nil if
// the model has not been evaluated yet.
func (m *Model) CurrentCoords() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentCoords == nil {
		return nil
	}
	return append([]float64(nil), m.currentCoords...)
}

// CurrentEnergy returns the last evaluated energy.
func (m *Model) CurrentEnergy() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentEnergy == nil {
		return 0, false
	}
	return *m.currentEnergy, true
}
