package driver

import (
	"math"
	"testing"
)

// referenceModel evaluates the spring model term by term from the closed form.
func referenceModel(coords []float64) (float64, []float64) {
	b := [3][3]float64{{0, 1.8, 1.8}, {1.8, 0, 2.8}, {1.8, 2.8, 0}}
	w := [3][3]float64{{0, 1, 1}, {1, 0, 0.5}, {1, 0.5, 0}}

	energy := 0.0
	grad := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				continue
			}
			dx := coords[3*i] - coords[3*j]
			dy := coords[3*i+1] - coords[3*j+1]
			dz := coords[3*i+2] - coords[3*j+2]
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			energy += w[i][j] * (d - b[i][j]) * (d - b[i][j])

			f := 2 * w[i][j] * (d - b[i][j]) / (d + 1e-60)
			grad[3*i] += f * dx
			grad[3*i+1] += f * dy
			grad[3*i+2] += f * dz
			grad[3*j] -= f * dx
			grad[3*j+1] -= f * dy
			grad[3*j+2] -= f * dz
		}
	}
	return energy, grad
}

func TestModel_CalcEngGrad_ClosedForm(t *testing.T) {
	coords := []float64{0.0, 0.3, 0.0, 0.9, 0.8, 0.0, -0.9, 0.5, 0.0}
	m := NewModel()

	out := m.CalcEngGrad(coords)
	wantEnergy, wantGrad := referenceModel(coords)

	if math.Abs(out.Energy-wantEnergy) > 1e-12 {
		t.Errorf("Energy = %.15f, want %.15f", out.Energy, wantEnergy)
	}
	if math.Abs(out.Energy-3.6800332383374714) > 1e-10 {
		t.Errorf("Energy = %.15f, want 3.6800332383374714", out.Energy)
	}
	if len(out.Gradient) != 9 {
		t.Fatalf("gradient length = %d, want 9", len(out.Gradient))
	}
	for i := range wantGrad {
		if math.Abs(out.Gradient[i]-wantGrad[i]) > 1e-12 {
			t.Errorf("Gradient[%d] = %.15f, want %.15f", i, out.Gradient[i], wantGrad[i])
		}
	}

	// Translational invariance: gradient components sum to zero per axis.
	for x := 0; x < 3; x++ {
		sum := out.Gradient[x] + out.Gradient[3+x] + out.Gradient[6+x]
		if math.Abs(sum) > 1e-12 {
			t.Errorf("gradient sum along axis %d = %g, want 0", x, sum)
		}
	}
}

func TestModel_GradientMatchesFiniteDifference(t *testing.T) {
	coords := []float64{0.1, 0.2, -0.1, 1.5, 0.4, 0.3, -1.2, 0.9, 0.2}
	m := NewModel()
	out := m.CalcEngGrad(coords)

	const h = 1e-6
	for i := range coords {
		plus := append([]float64(nil), coords...)
		minus := append([]float64(nil), coords...)
		plus[i] += h
		minus[i] -= h
		numeric := (m.CalcEngGrad(plus).Energy - m.CalcEngGrad(minus).Energy) / (2 * h)
		if math.Abs(numeric-out.Gradient[i]) > 1e-5 {
			t.Errorf("Gradient[%d] = %g, finite difference %g", i, out.Gradient[i], numeric)
		}
	}
}

func TestModel_RecordsCurrentState(t *testing.T) {
	m := NewModel()

	if m.CurrentCoords() != nil {
		t.Error("CurrentCoords() should be nil before any evaluation")
	}
	if _, ok := m.CurrentEnergy(); ok {
		t.Error("CurrentEnergy() should report no value before any evaluation")
	}

	coords := []float64{0.0, 0.3, 0.0, 0.9, 0.8, 0.0, -0.9, 0.5, 0.0}
	out := m.CalcNew(coords, "")

	got := m.CurrentCoords()
	for i := range coords {
		if got[i] != coords[i] {
			t.Errorf("CurrentCoords()[%d] = %v, want %v", i, got[i], coords[i])
		}
	}
	energy, ok := m.CurrentEnergy()
	if !ok || energy != out.Energy {
		t.Errorf("CurrentEnergy() = %v, %v; want %v", energy, ok, out.Energy)
	}

	got[0] = 42
	if m.CurrentCoords()[0] == 42 {
		t.Error("CurrentCoords() must return a copy")
	}
}

func TestModel_WrongAtomCountFailsThroughHandle(t *testing.T) {
	h := NewHandle(NewModel())

	_, err := h.CallWith(make([]float64, 6), "")
	if err == nil {
		t.Fatal("expected error for 2-atom input")
	}
}

func TestBlank(t *testing.T) {
	out := Blank{}.CalcNew(make([]float64, 12), "/tmp")
	if out.Energy != 0 || len(out.Gradient) != 12 {
		t.Errorf("Blank.CalcNew() = %+v", out)
	}
}
