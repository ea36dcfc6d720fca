package host

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"
)

func evalExpr(t *testing.T, expr string, env starlark.StringDict) (starlark.Value, error) {
	t.Helper()
	predeclared := Predeclared()
	for k, v := range env {
		predeclared[k] = v
	}
	thread := &starlark.Thread{Name: t.Name()}
	return starlark.Eval(thread, "<expr>", expr, predeclared)
}

func TestArray_Expressions(t *testing.T) {
	tests := []string{
		"array([[1, 2], [3, 4]]).shape == (2, 2)",
		"array([[1, 2], [3, 4]]).size == 4",
		"array([[1, 2], [3, 4]]).ndim == 2",
		"array([1]).dtype == 'float64'",
		"array([[1, 2], [3, 4]]).flatten().tolist() == [1.0, 2.0, 3.0, 4.0]",
		"array([[1, 2], [3, 4]]).tolist() == [[1.0, 2.0], [3.0, 4.0]]",
		"array([1, 2, 3, 4, 5, 6]).reshape(-1, 3).shape == (2, 3)",
		"array([1, 2, 3, 4, 5, 6]).reshape((3, 2)).shape == (3, 2)",
		"array([[1, 2], [3, 4]])[1][0] == 3.0",
		"array([[1, 2], [3, 4]])[1].shape == (2,)",
		"len(array([[1, 2], [3, 4], [5, 6]])) == 3",
		"[x for x in array([1, 2])] == [1.0, 2.0]",
		"(array([1, 2]) * 2).tolist() == [2.0, 4.0]",
		"(2 * array([1, 2])).tolist() == [2.0, 4.0]",
		"(array([1, 2]) - 1).tolist() == [0.0, 1.0]",
		"(10 - array([1, 2])).tolist() == [9.0, 8.0]",
		"(array([1, 2]) / 2).tolist() == [0.5, 1.0]",
		"(1 / array([2, 4])).tolist() == [0.5, 0.25]",
		"(array([1, 2]) + array([3, 4])).tolist() == [4.0, 6.0]",
		"(-array([1, -2])).tolist() == [-1.0, 2.0]",
		"array([-1, 2]).abs().tolist() == [1.0, 2.0]",
		"array([1, 5, 3]).max() == 5.0",
		"array([1, 5, 3]).min() == 1.0",
		"array([1, 5, 3]).sum() == 9.0",
		"array([3, 4]).norm() == 5.0",
		"array([1, 2]).dot(array([3, 4])) == 11.0",
		"array(array([1, 2])).tolist() == [1.0, 2.0]",
		"array([]).shape == (0,)",
		"type(array([1])) == 'array'",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			v, err := evalExpr(t, expr, nil)
			if err != nil {
				t.Fatalf("eval error: %v", err)
			}
			if v != starlark.True {
				t.Errorf("%s = %v, want True", expr, v)
			}
		})
	}
}

func TestArray_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr string
	}{
		{"array([[1, 2], [3]])", "ragged"},
		{"array([True])", "bool"},
		{"array(['a'])", "string"},
		{"array(1)", "list or tuple"},
		{"array([1, 2, 3, 4]).reshape(3)", "cannot shape"},
		{"array([1, 2, 3, 4]).reshape(-1, -1)", "one unknown"},
		{"array([1, 2]) + array([1, 2, 3])", "could not be combined"},
		{"array([1, 2]).dot([1, 2])", "operand"},
		{"array([]).max()", "empty"},
		{"{array([1]): 1}", "unhashable"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := evalExpr(t, tt.expr, nil)
			if err == nil {
				t.Fatalf("%s: expected error", tt.expr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewArray(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	a, err := NewArray(data, 2, 3)
	if err != nil {
		t.Fatalf("NewArray() error: %v", err)
	}
	data[0] = 100
	if a.Data()[0] != 1 {
		t.Error("NewArray() did not copy its input")
	}
	if got := a.Shape(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Shape() = %v, want [2 3]", got)
	}

	if _, err := NewArray(data, 4); err == nil {
		t.Error("NewArray() accepted a mismatched shape")
	}
	if _, err := NewArray(data, -2, -3); err == nil {
		t.Error("NewArray() accepted a negative dimension")
	}

	flat, err := NewArray(data)
	if err != nil {
		t.Fatalf("NewArray() error: %v", err)
	}
	if flat.Len() != 6 {
		t.Errorf("Len() = %d, want 6", flat.Len())
	}
}

func TestFloats(t *testing.T) {
	a, _ := NewArray([]float64{1, 2}, 2)
	tests := []struct {
		name string
		v    starlark.Value
		want []float64
	}{
		{"int", starlark.MakeInt(3), []float64{3}},
		{"float", starlark.Float(0.5), []float64{0.5}},
		{"nested list", starlark.NewList([]starlark.Value{
			starlark.Tuple{starlark.MakeInt(1), starlark.Float(2)},
			starlark.Tuple{starlark.MakeInt(3), starlark.Float(4)},
		}), []float64{1, 2, 3, 4}},
		{"array", a, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Floats(tt.v)
			if err != nil {
				t.Fatalf("Floats() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Floats() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Floats()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := Floats(starlark.None); err == nil {
		t.Error("Floats(None) succeeded")
	}
}
