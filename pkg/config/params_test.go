package config

import (
	"testing"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

func TestParamsOf(t *testing.T) {
	v, err := Parse(`
transition           = true
convergence_energy   = 1.0e-8
convergence_grms     = 1.0e-6
convergence_gmax     = 1
convergence_drms     = 1.0e-4
convergence_dmax     = 1.0e-4
maxiter              = 50
coordsys             = "cart"
check                = 0
unrelated            = "passes through"
`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	p, err := ParamsOf(mustTable(t, v))
	if err != nil {
		t.Fatalf("ParamsOf() error: %v", err)
	}

	if p.Transition == nil || !*p.Transition {
		t.Error("Transition not set")
	}
	if p.ConvergenceEnergy == nil || *p.ConvergenceEnergy != 1.0e-8 {
		t.Errorf("ConvergenceEnergy = %v", p.ConvergenceEnergy)
	}
	if p.ConvergenceGMax == nil || *p.ConvergenceGMax != 1 {
		t.Errorf("ConvergenceGMax = %v, integers should be accepted", p.ConvergenceGMax)
	}
	if p.MaxIter == nil || *p.MaxIter != 50 {
		t.Errorf("MaxIter = %v", p.MaxIter)
	}
	if p.CoordSys == nil || *p.CoordSys != "cart" {
		t.Errorf("CoordSys = %v", p.CoordSys)
	}
	if p.Check == nil || *p.Check != 0 {
		t.Errorf("Check = %v", p.Check)
	}

	if got := p.Table().Len(); got != 9 {
		t.Errorf("Table() has %d keys, want 9", got)
	}
}

func TestParamsOf_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		check func(error) bool
	}{
		{"zero threshold", "convergence_energy = 0.0", engine.IsValidation},
		{"negative threshold", "convergence_grms = -1e-6", engine.IsValidation},
		{"zero maxiter", "maxiter = 0", engine.IsValidation},
		{"unknown coordsys", `coordsys = "polar"`, engine.IsValidation},
		{"negative check", "check = -1", engine.IsValidation},
		{"bool for integer", "maxiter = true", engine.IsTypeMismatch},
		{"float for integer", "maxiter = 1.5", engine.IsTypeMismatch},
		{"string for bool", `transition = "yes"`, engine.IsTypeMismatch},
		{"string for threshold", `convergence_dmax = "small"`, engine.IsTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.doc)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			_, err = ParamsOf(mustTable(t, v))
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func TestParamsFromHost(t *testing.T) {
	d := starlark.NewDict(3)
	_ = d.SetKey(starlark.String("check"), starlark.MakeInt(1))
	_ = d.SetKey(starlark.String("customengine"), starlark.NewBuiltin("engine", nil))
	_ = d.SetKey(starlark.String("maxiter"), starlark.MakeInt(10))

	p, err := ParamsFromHost(d)
	if err != nil {
		t.Fatalf("ParamsFromHost() error: %v", err)
	}
	if p.Check == nil || *p.Check != 1 {
		t.Errorf("Check = %v, want 1", p.Check)
	}

	_ = d.SetKey(starlark.String("check"), starlark.True)
	if _, err := ParamsFromHost(d); !engine.IsTypeMismatch(err) {
		t.Errorf("ParamsFromHost(check=True) error = %v, want type mismatch", err)
	}
}
