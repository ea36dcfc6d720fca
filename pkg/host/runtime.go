package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/telemetry"
)

// Default export names of an optimizer module.
const (
	DefaultOptimizerName  = "run_optimizer"
	DefaultEngineBaseName = "Engine"
)

// Module is an executed optimizer module and its exported globals.
type Module struct {
	filename string
	globals  starlark.StringDict
}

// Predeclared returns the names visible to every optimizer module.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct":   starlark.NewBuiltin("struct", starlarkstruct.Make),
		"math":     starlarkmath.Module,
		"array":    starlark.NewBuiltin("array", arrayBuiltin),
		"molecule": starlark.NewBuiltin("molecule", moleculeBuiltin),
	}
}

// Load executes src as an optimizer module. Top-level statements run once, on
// a thread whose print output goes to the default logger.
func Load(filename string, src []byte) (*Module, error) {
	thread := NewThread("load "+filename, nil)
	globals, err := starlark.ExecFile(thread, filename, src, Predeclared())
	if err != nil {
		return nil, CallError("host.load", fmt.Sprintf("failed to load optimizer module %s", filename), err)
	}
	globals.Freeze()
	return &Module{filename: filename, globals: globals}, nil
}

// LoadFile reads and executes an optimizer module from disk.
func LoadFile(path string) (*Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewOptimizerFailureError(fmt.Sprintf("failed to read optimizer module %s", path), err).
			WithOperation("host.load")
	}
	return Load(path, src)
}

// Filename returns the name the module was loaded under.
func (m *Module) Filename() string { return m.filename }

// Names returns the sorted names of the module's globals.
func (m *Module) Names() []string {
	names := m.globals.Keys()
	sort.Strings(names)
	return names
}

// Global returns the named global and whether it exists.
func (m *Module) Global(name string) (starlark.Value, bool) {
	v, ok := m.globals[name]
	return v, ok
}

// Optimizer resolves the optimizer entry point. An empty name selects
// DefaultOptimizerName.
func (m *Module) Optimizer(name string) (starlark.Callable, error) {
	if name == "" {
		name = DefaultOptimizerName
	}
	v, ok := m.globals[name]
	if !ok {
		return nil, engine.NewOptimizerFailureError(
			fmt.Sprintf("module %s does not export %s", m.filename, name), nil).WithOperation("host.export")
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, engine.NewOptimizerFailureError(
			fmt.Sprintf("%s.%s is a %s, not callable", m.filename, name, v.Type()), nil).WithOperation("host.export")
	}
	return fn, nil
}

// EngineBase resolves the host engine base definition. An empty name selects
// DefaultEngineBaseName.
func (m *Module) EngineBase(name string) (starlark.HasAttrs, error) {
	if name == "" {
		name = DefaultEngineBaseName
	}
	v, ok := m.globals[name]
	if !ok {
		return nil, engine.NewOptimizerFailureError(
			fmt.Sprintf("module %s does not export %s", m.filename, name), nil).WithOperation("host.export")
	}
	base, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, engine.NewOptimizerFailureError(
			fmt.Sprintf("%s.%s is a %s without attributes", m.filename, name, v.Type()), nil).WithOperation("host.export")
	}
	return base, nil
}

const contextLocal = "geometric-bridge.context"

// NewThread returns a fresh thread whose print output is logged at info level
// with source=optimizer. A nil logger selects the default logger.
func NewThread(name string, logger *telemetry.Logger) *starlark.Thread {
	if logger == nil {
		logger = telemetry.FromContext(context.Background())
	}
	printLogger := logger.WithField("source", "optimizer")
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			printLogger.Info(msg)
		},
	}
}

// WithContext attaches ctx to thread so Go callbacks invoked by host code can
// reach the caller's telemetry.
func WithContext(thread *starlark.Thread, ctx context.Context) {
	thread.SetLocal(contextLocal, ctx)
}

// Context returns the context attached to thread, or context.Background.
func Context(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local(contextLocal).(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

// CallError classifies an error that escaped host execution. Bridge errors
// raised inside Go callbacks are returned unchanged; anything else is an
// optimizer failure carrying the host backtrace.
func CallError(op, msg string, err error) *engine.BridgeError {
	var be *engine.BridgeError
	if errors.As(err, &be) {
		return be
	}
	out := engine.NewOptimizerFailureError(msg, err).WithOperation(op)
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		out = out.WithDetail("backtrace", evalErr.Backtrace())
	}
	return out
}
