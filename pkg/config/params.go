package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// OptimizerParams holds the optimizer keys the bridge recognizes. A nil field
// means the key was absent and the optimizer default applies. Unrecognized keys
// are never inspected and pass through to the optimizer verbatim.
type OptimizerParams struct {
	// Transition requests a transition-state search instead of a minimum.
	Transition *bool

	// ConvergenceEnergy is the energy change threshold in Hartree.
	ConvergenceEnergy *float64 `validate:"omitnil,gt=0"`

	// ConvergenceGRMS is the RMS gradient threshold in Hartree/Bohr.
	ConvergenceGRMS *float64 `validate:"omitnil,gt=0"`

	// ConvergenceGMax is the maximum gradient threshold in Hartree/Bohr.
	ConvergenceGMax *float64 `validate:"omitnil,gt=0"`

	// ConvergenceDRMS is the RMS displacement threshold in Angstrom.
	ConvergenceDRMS *float64 `validate:"omitnil,gt=0"`

	// ConvergenceDMax is the maximum displacement threshold in Angstrom.
	ConvergenceDMax *float64 `validate:"omitnil,gt=0"`

	// MaxIter is the maximum number of optimization cycles.
	MaxIter *int64 `validate:"omitnil,gt=0"`

	// CoordSys selects the internal coordinate system.
	CoordSys *string `validate:"omitnil,oneof=tric cart prim dlc hdlc tric-p"`

	// Check is the interval for rebuilding internal coordinates; 0 disables it.
	Check *int64 `validate:"omitnil,gte=0"`
}

// RecognizedKeys lists the configuration keys mapped onto OptimizerParams.
var RecognizedKeys = []string{
	"transition",
	"convergence_energy",
	"convergence_grms",
	"convergence_gmax",
	"convergence_drms",
	"convergence_dmax",
	"maxiter",
	"coordsys",
	"check",
}

var paramsValidator = validator.New()

// ParamsOf extracts and validates the recognized keys of a configuration table.
func ParamsOf(t *Table) (*OptimizerParams, error) {
	p := &OptimizerParams{}

	for _, key := range RecognizedKeys {
		v, ok := t.Get(key)
		if !ok {
			continue
		}
		if err := p.set(key, v); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParamsFromHost extracts and validates the recognized keys of a host dictionary.
// Other entries, such as the engine object, are not inspected.
func ParamsFromHost(d *starlark.Dict) (*OptimizerParams, error) {
	t := NewTable()
	for _, key := range RecognizedKeys {
		hv, found, err := d.Get(starlark.String(key))
		if err != nil {
			return nil, engine.NewMarshalingError(fmt.Sprintf("failed to read key %q", key), err)
		}
		if !found {
			continue
		}
		v, err := FromHost(hv)
		if err != nil {
			return nil, engine.NewTypeMismatchError(fmt.Sprintf("parameter %q", key), err)
		}
		t.Set(key, v)
	}
	return ParamsOf(t)
}

func (p *OptimizerParams) set(key string, v Value) error {
	switch key {
	case "transition":
		b, ok := v.(Boolean)
		if !ok {
			return mismatch(key, "boolean", v)
		}
		x := bool(b)
		p.Transition = &x
	case "convergence_energy", "convergence_grms", "convergence_gmax", "convergence_drms", "convergence_dmax":
		f, err := asFloat(key, v)
		if err != nil {
			return err
		}
		switch key {
		case "convergence_energy":
			p.ConvergenceEnergy = &f
		case "convergence_grms":
			p.ConvergenceGRMS = &f
		case "convergence_gmax":
			p.ConvergenceGMax = &f
		case "convergence_drms":
			p.ConvergenceDRMS = &f
		case "convergence_dmax":
			p.ConvergenceDMax = &f
		}
	case "maxiter", "check":
		i, ok := v.(Integer)
		if !ok {
			return mismatch(key, "integer", v)
		}
		x := int64(i)
		if key == "maxiter" {
			p.MaxIter = &x
		} else {
			p.Check = &x
		}
	case "coordsys":
		s, ok := v.(String)
		if !ok {
			return mismatch(key, "string", v)
		}
		x := string(s)
		p.CoordSys = &x
	}
	return nil
}

// asFloat accepts integers wherever a threshold is expected.
func asFloat(key string, v Value) (float64, error) {
	switch n := v.(type) {
	case Float:
		return float64(n), nil
	case Integer:
		return float64(n), nil
	default:
		return 0, mismatch(key, "number", v)
	}
}

func mismatch(key, want string, got Value) error {
	return engine.NewTypeMismatchError(
		fmt.Sprintf("parameter %q must be a %s, got %s", key, want, describe(got)), nil,
	).WithDetail("key", key)
}

// Validate checks the range of every present parameter.
func (p *OptimizerParams) Validate() error {
	err := paramsValidator.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return engine.NewValidationError("optimizer parameters are invalid", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s=%s)", fieldKey(fe.StructField()), fe.Tag(), fe.Param()))
	}
	return engine.NewValidationError(
		"optimizer parameters out of range: "+strings.Join(fields, ", "), err,
	).WithDetail("fields", fields)
}

func fieldKey(structField string) string {
	switch structField {
	case "ConvergenceEnergy":
		return "convergence_energy"
	case "ConvergenceGRMS":
		return "convergence_grms"
	case "ConvergenceGMax":
		return "convergence_gmax"
	case "ConvergenceDRMS":
		return "convergence_drms"
	case "ConvergenceDMax":
		return "convergence_dmax"
	case "MaxIter":
		return "maxiter"
	case "CoordSys":
		return "coordsys"
	case "Check":
		return "check"
	case "Transition":
		return "transition"
	}
	return structField
}

// Table renders the present parameters as a configuration table, in the order
// of RecognizedKeys.
func (p *OptimizerParams) Table() *Table {
	t := NewTable()
	if p.Transition != nil {
		t.Set("transition", Boolean(*p.Transition))
	}
	floats := []struct {
		key string
		v   *float64
	}{
		{"convergence_energy", p.ConvergenceEnergy},
		{"convergence_grms", p.ConvergenceGRMS},
		{"convergence_gmax", p.ConvergenceGMax},
		{"convergence_drms", p.ConvergenceDRMS},
		{"convergence_dmax", p.ConvergenceDMax},
	}
	for _, f := range floats {
		if f.v != nil {
			t.Set(f.key, Float(*f.v))
		}
	}
	if p.MaxIter != nil {
		t.Set("maxiter", Integer(*p.MaxIter))
	}
	if p.CoordSys != nil {
		t.Set("coordsys", String(*p.CoordSys))
	}
	if p.Check != nil {
		t.Set("check", Integer(*p.Check))
	}
	return t
}
