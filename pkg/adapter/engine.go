package adapter

import (
	"fmt"
	"sort"
	"sync"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/driver"
	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/host"
	"github.com/RESTGroup/geometric-bridge/pkg/telemetry"
)

// Adapter method names, resolved before anything on the base.
const (
	MethodSetDriver = "set_driver"
	MethodCalcNew   = "calc_new"
)

// Engine is an instance of a composed engine class. Its only adapter state is
// the optional driver handle; everything else lives in fields set by the base
// definition.
type Engine struct {
	class *EngineClass

	mu     sync.Mutex
	fields map[string]starlark.Value
	handle *driver.Handle
	frozen bool
}

var (
	_ starlark.HasAttrs    = (*Engine)(nil)
	_ starlark.HasSetField = (*Engine)(nil)
)

// Class returns the engine's class.
func (e *Engine) Class() *EngineClass { return e.class }

// SetDriver binds h, replacing any previous handle. Binding nil unbinds.
func (e *Engine) SetDriver(h *driver.Handle) {
	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()
}

// Handle returns the bound driver handle, or nil.
func (e *Engine) Handle() *driver.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

// CalcNew evaluates energy and gradient at coords through the bound handle and
// returns {"energy": float, "gradient": array of shape (3N,)}. coords may be
// any flat or nested sequence of numbers, or an array.
func (e *Engine) CalcNew(thread *starlark.Thread, coords starlark.Value, dirname string) (*starlark.Dict, error) {
	flat, err := host.Floats(coords)
	if err != nil {
		return nil, engine.NewTypeMismatchError("coordinates must be numeric", err).WithOperation(MethodCalcNew)
	}
	natom, err := engine.AtomCount(flat)
	if err != nil {
		return nil, err.(*engine.BridgeError).WithOperation(MethodCalcNew)
	}

	h := e.Handle()
	if h == nil {
		return nil, engine.NewMissingDriverError("engine has no driver bound; call set_driver first").
			WithOperation(MethodCalcNew)
	}

	ctx := host.Context(thread)
	name := driverName(h)

	var out engine.GradOutput
	_, err = telemetry.RecordCalcOperation(ctx, name, natom, func() (float64, error) {
		res, err := h.CallWith(flat, dirname)
		if err != nil {
			return 0, err
		}
		if err := res.Validate(flat); err != nil {
			return 0, err.(*engine.BridgeError).WithOperation(MethodCalcNew)
		}
		out = res
		return res.Energy, nil
	})
	if err != nil {
		telemetry.FromContext(ctx).WithDriver(name).WithError(err).Debug("calc_new failed")
		return nil, err
	}

	gradient, err := host.NewArray(out.Gradient)
	if err != nil {
		return nil, engine.NewMarshalingError("failed to build gradient array", err).WithOperation(MethodCalcNew)
	}
	result := starlark.NewDict(2)
	if err := result.SetKey(starlark.String("energy"), starlark.Float(out.Energy)); err != nil {
		return nil, engine.NewMarshalingError("failed to build calc_new result", err).WithOperation(MethodCalcNew)
	}
	if err := result.SetKey(starlark.String("gradient"), gradient); err != nil {
		return nil, engine.NewMarshalingError("failed to build calc_new result", err).WithOperation(MethodCalcNew)
	}
	return result, nil
}

func driverName(h *driver.Handle) string {
	d := h.Driver()
	if d == nil {
		return "none"
	}
	return fmt.Sprintf("%T", d)
}

func (e *Engine) setDriverBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	h, ok := v.(*driver.Handle)
	if !ok {
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("%s: expected driver_handle, got %s", b.Name(), v.Type()), nil).
			WithOperation(MethodSetDriver)
	}
	e.SetDriver(h)
	return starlark.None, nil
}

func (e *Engine) calcNewBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var coords starlark.Value
	var dirname string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "coords", &coords, "dirname?", &dirname); err != nil {
		return nil, err
	}
	return e.CalcNew(thread, coords, dirname)
}

// String implements starlark.Value.
func (e *Engine) String() string { return fmt.Sprintf("<%s object>", e.class.name) }

// Type implements starlark.Value.
func (e *Engine) Type() string { return e.class.name }

// Freeze implements starlark.Value. A frozen engine rejects field assignment
// but can still compute and rebind its driver.
func (e *Engine) Freeze() {
	e.mu.Lock()
	if e.frozen {
		e.mu.Unlock()
		return
	}
	e.frozen = true
	fields := make([]starlark.Value, 0, len(e.fields))
	for _, v := range e.fields {
		fields = append(fields, v)
	}
	e.mu.Unlock()
	for _, v := range fields {
		v.Freeze()
	}
}

// Truth implements starlark.Value.
func (e *Engine) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (e *Engine) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", e.class.name)
}

// Attr implements starlark.HasAttrs.
func (e *Engine) Attr(name string) (starlark.Value, error) {
	e.mu.Lock()
	v, ok := e.fields[name]
	e.mu.Unlock()
	if ok {
		return v, nil
	}

	switch name {
	case MethodSetDriver:
		return starlark.NewBuiltin(name, e.setDriverBuiltin), nil
	case MethodCalcNew:
		return starlark.NewBuiltin(name, e.calcNewBuiltin), nil
	case "__init__":
		return nil, nil
	}

	bv, err := e.class.baseAttr(name)
	if err != nil || bv == nil {
		return nil, err
	}
	if fn, ok := bv.(*starlark.Function); ok {
		return e.bind(name, fn), nil
	}
	return bv, nil
}

// bind returns fn as a method of e: calling it passes e as the first argument.
func (e *Engine) bind(name string, fn *starlark.Function) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		bound := make(starlark.Tuple, 0, len(args)+1)
		bound = append(bound, e)
		bound = append(bound, args...)
		return starlark.Call(thread, fn, bound, kwargs)
	})
}

// AttrNames implements starlark.HasAttrs.
func (e *Engine) AttrNames() []string {
	seen := map[string]bool{MethodSetDriver: true, MethodCalcNew: true}
	e.mu.Lock()
	for name := range e.fields {
		seen[name] = true
	}
	e.mu.Unlock()
	for _, name := range e.class.base.AttrNames() {
		if name != "__init__" {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetField implements starlark.HasSetField.
func (e *Engine) SetField(name string, val starlark.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return fmt.Errorf("cannot set field %s of frozen %s", name, e.class.name)
	}
	e.fields[name] = val
	return nil
}
