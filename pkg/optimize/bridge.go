package optimize

import (
	"context"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/adapter"
	"github.com/RESTGroup/geometric-bridge/pkg/config"
	"github.com/RESTGroup/geometric-bridge/pkg/driver"
	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/host"
)

// Bridge ties a loaded optimizer module to the engine adapter: it composes
// the adapter class over the module's Engine base and invokes the module's
// run_optimizer entry point.
type Bridge struct {
	module  *host.Module
	class   *adapter.EngineClass
	invoker *Invoker
}

// NewBridge resolves the default engine base and entry point of module.
func NewBridge(module *host.Module, opts ...Option) (*Bridge, error) {
	base, err := module.EngineBase("")
	if err != nil {
		return nil, err
	}
	class, err := adapter.Compose("", base)
	if err != nil {
		return nil, err
	}
	optimizer, err := module.Optimizer("")
	if err != nil {
		return nil, err
	}
	return &Bridge{
		module:  module,
		class:   class,
		invoker: NewInvoker(optimizer, opts...),
	}, nil
}

// Module returns the loaded optimizer module.
func (b *Bridge) Module() *host.Module { return b.module }

// Class returns the composed engine class.
func (b *Bridge) Class() *adapter.EngineClass { return b.class }

// Invoker returns the invoker bound to the module's entry point.
func (b *Bridge) Invoker() *Invoker { return b.invoker }

// NewEngine constructs an engine for molecule. The engine has no driver bound.
func (b *Bridge) NewEngine(molecule starlark.Value) (*adapter.Engine, error) {
	thread := host.NewThread("construct "+b.class.Name(), nil)
	eng, err := b.class.Construct(thread, molecule)
	if err != nil {
		return nil, host.CallError("adapter.construct", "engine initializer failed", err)
	}
	return eng, nil
}

// Optimize builds an engine for molecule, binds d to it and runs the
// optimizer with params, which may be nil.
func (b *Bridge) Optimize(ctx context.Context, d engine.Driver, molecule starlark.Value, params *config.Table, input *string) (*Result, error) {
	eng, err := b.NewEngine(molecule)
	if err != nil {
		return nil, err
	}
	if d != nil {
		eng.SetDriver(driver.NewHandle(d))
	}

	cfg := starlark.NewDict(0)
	if params != nil {
		cfg, err = config.ConvertRoot(params)
		if err != nil {
			return nil, err
		}
	}

	res, err := b.invoker.Run(ctx, eng, cfg, input)
	if err != nil {
		return nil, err
	}
	return NewResult(res), nil
}
