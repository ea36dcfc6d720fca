package config

import (
	"reflect"
	"testing"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

func TestParseCUE(t *testing.T) {
	src := `
transition:         true
convergence_energy: 1.0e-8
maxiter:            300
coordsys:           "tric"
custom: {
	zeta:  "z"
	alpha: [1, 2.5, false]
}
`
	v, err := ParseCUE(src)
	if err != nil {
		t.Fatalf("ParseCUE() error: %v", err)
	}
	root := mustTable(t, v)

	if got, want := root.Keys(), []string{"transition", "convergence_energy", "maxiter", "coordsys", "custom"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}

	tests := []struct {
		key  string
		want Value
	}{
		{"transition", Boolean(true)},
		{"convergence_energy", Float(1.0e-8)},
		{"maxiter", Integer(300)},
		{"coordsys", String("tric")},
	}
	for _, tt := range tests {
		got, _ := root.Get(tt.key)
		if !Equal(got, tt.want) {
			t.Errorf("%s = %#v, want %#v", tt.key, got, tt.want)
		}
	}

	custom, _ := root.Get("custom")
	if got, want := mustTable(t, custom).Keys(), []string{"zeta", "alpha"}; !reflect.DeepEqual(got, want) {
		t.Errorf("custom keys = %v, want %v", got, want)
	}
}

func TestParseCUE_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(error) bool
	}{
		{"syntax error", "a: {", engine.IsParse},
		{"not concrete", "a: int", engine.IsParse},
		{"conflict", "a: 1\na: 2", engine.IsParse},
		{"null value", "a: null", engine.IsTypeMismatch},
		{"schema violation", "maxiter: -1", engine.IsValidation},
		{"unknown coordsys", `coordsys: "polar"`, engine.IsValidation},
		{"wrong type", `transition: "yes"`, engine.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func TestSchemaRegistry(t *testing.T) {
	sr := NewSchemaRegistry()

	if got := sr.ListSchemas(); !reflect.DeepEqual(got, []string{OptimizerSchemaName}) {
		t.Errorf("ListSchemas() = %v", got)
	}
	if err := sr.RegisterSchema("broken", "a: {"); err == nil {
		t.Error("RegisterSchema() should fail for invalid CUE")
	}
	if _, ok := sr.GetSchema("missing"); ok {
		t.Error("GetSchema(missing) should report false")
	}
}
