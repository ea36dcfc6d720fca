package adapter

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// DefaultClassName is the type name reported by composed engine instances.
const DefaultClassName = "BridgeEngine"

// EngineClass is an engine type composed at run time from the fixed adapter
// behaviour and a host base definition. Calling the class from a script, or
// New from Go, constructs an *Engine.
//
// Attribute lookup on an instance goes, in order, through the instance's own
// fields, the adapter methods set_driver and calc_new, the base's functions
// (bound with the instance as self), and the base's other attributes.
type EngineClass struct {
	name string
	base starlark.HasAttrs
	init starlark.Callable
}

var _ starlark.Callable = (*EngineClass)(nil)

// Compose builds an engine class from base. base is any value with attributes,
// normally a struct exported by the optimizer module. If base has an
// __init__ attribute it must be callable and receives the new instance
// followed by the constructor arguments.
func Compose(name string, base starlark.Value) (*EngineClass, error) {
	if name == "" {
		name = DefaultClassName
	}
	attrs, ok := base.(starlark.HasAttrs)
	if !ok {
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("engine base must have attributes, got %s", base.Type()), nil).
			WithOperation("adapter.compose")
	}

	c := &EngineClass{name: name, base: attrs}

	init, err := c.baseAttr("__init__")
	if err != nil {
		return nil, engine.NewTypeMismatchError("engine base __init__ lookup failed", err).
			WithOperation("adapter.compose")
	}
	if init != nil {
		fn, ok := init.(starlark.Callable)
		if !ok {
			return nil, engine.NewTypeMismatchError(
				fmt.Sprintf("engine base __init__ must be callable, got %s", init.Type()), nil).
				WithOperation("adapter.compose")
		}
		c.init = fn
	}

	return c, nil
}

// baseAttr looks name up on the base. A missing attribute is (nil, nil);
// any other lookup error is returned.
func (c *EngineClass) baseAttr(name string) (starlark.Value, error) {
	v, err := c.base.Attr(name)
	if err != nil {
		var missing starlark.NoSuchAttrError
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// Name implements starlark.Callable.
func (c *EngineClass) Name() string { return c.name }

// Base returns the host base definition.
func (c *EngineClass) Base() starlark.HasAttrs { return c.base }

// String implements starlark.Value.
func (c *EngineClass) String() string { return fmt.Sprintf("<class %s>", c.name) }

// Type implements starlark.Value.
func (c *EngineClass) Type() string { return "engine_class" }

// Freeze implements starlark.Value.
func (c *EngineClass) Freeze() {}

// Truth implements starlark.Value.
func (c *EngineClass) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (c *EngineClass) Hash() (uint32, error) { return starlark.String(c.name).Hash() }

// CallInternal implements starlark.Callable.
func (c *EngineClass) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return c.New(thread, args, kwargs)
}

// New constructs an instance. The arguments are forwarded unchanged to the
// base initializer; without one, exactly one positional argument (the
// molecule) is required and nothing is derived from it.
func (c *EngineClass) New(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (*Engine, error) {
	e := &Engine{
		class:  c,
		fields: make(map[string]starlark.Value),
	}

	if c.init == nil {
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, engine.NewContractError(
				fmt.Sprintf("%s() takes exactly one argument (molecule), got %d", c.name, len(args)+len(kwargs)), nil).
				WithOperation("adapter.construct")
		}
		return e, nil
	}

	if thread == nil {
		thread = &starlark.Thread{Name: c.name + ".__init__"}
	}
	initArgs := make(starlark.Tuple, 0, len(args)+1)
	initArgs = append(initArgs, e)
	initArgs = append(initArgs, args...)
	if _, err := starlark.Call(thread, c.init, initArgs, kwargs); err != nil {
		return nil, err
	}
	return e, nil
}

// Construct is New for a single molecule argument.
func (c *EngineClass) Construct(thread *starlark.Thread, molecule starlark.Value) (*Engine, error) {
	return c.New(thread, starlark.Tuple{molecule}, nil)
}
