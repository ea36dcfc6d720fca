package optimize

import (
	"context"

	"github.com/google/uuid"
	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/config"
	"github.com/RESTGroup/geometric-bridge/pkg/host"
	"github.com/RESTGroup/geometric-bridge/pkg/telemetry"
)

// Invoker calls an external optimizer entry point with a merged configuration.
// An Invoker holds no per-run state and may be used from many goroutines.
type Invoker struct {
	optimizer starlark.Callable
	tempDir   string
	telemetry *telemetry.Telemetry
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithTempDir sets the directory for temporary input files.
func WithTempDir(dir string) Option {
	return func(inv *Invoker) {
		inv.tempDir = dir
	}
}

// WithTelemetry instruments runs whose context carries no telemetry of its own.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(inv *Invoker) {
		inv.telemetry = tel
	}
}

// NewInvoker creates an invoker for the given optimizer entry point.
func NewInvoker(optimizer starlark.Callable, opts ...Option) *Invoker {
	inv := &Invoker{optimizer: optimizer}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Run invokes the optimizer once. The caller's cfg is deep-copied, then the
// copy receives customengine = eng, check = 1 and input = *input, or the path
// of a temporary file removed before Run returns. Recognized parameters of
// the merged configuration are validated before the optimizer is called.
//
// The optimizer's result is returned unchanged. Bridge errors raised inside
// callbacks (a missing driver, a driver failure) come back with their class
// intact; any other failure is an optimizer failure. ctx carries telemetry
// only; a run is never cancelled or retried.
func (inv *Invoker) Run(ctx context.Context, eng starlark.Value, cfg *starlark.Dict, input *string) (starlark.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if inv.telemetry != nil && telemetry.FromTelemetryContext(ctx) == nil {
		ctx = inv.telemetry.WithContext(ctx)
	}

	runID := uuid.New().String()
	ctx = telemetry.WithRunContext(ctx, runID, inv.optimizer.Name())

	res, err := inv.run(ctx, runID, eng, cfg, input)
	telemetry.EndRunContext(ctx, err)
	return res, err
}

func (inv *Invoker) run(ctx context.Context, runID string, eng starlark.Value, cfg *starlark.Dict, input *string) (starlark.Value, error) {
	logger := telemetry.FromContext(ctx).NewComponentLogger("optimize")

	req, err := NewRequest(eng, cfg, input, inv.tempDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := req.Close(); err != nil {
			logger.WithError(err).Warn("failed to remove temporary input file")
		}
	}()

	kwargs, err := req.Kwargs()
	if err != nil {
		return nil, err
	}

	if _, err := config.ParamsFromHost(req.Config); err != nil {
		return nil, err
	}

	thread := host.NewThread("optimize "+runID, logger)
	host.WithContext(thread, ctx)

	logger.WithFields(map[string]interface{}{
		"input":     req.InputPath,
		"temporary": req.Temporary(),
		"keys":      len(kwargs),
	}).Debug("invoking optimizer")

	res, err := starlark.Call(thread, inv.optimizer, nil, kwargs)
	if err != nil {
		logger.WithError(err).Debug("optimizer returned an error")
		return nil, host.CallError("optimize.run", "external optimizer failed", err)
	}

	logger.Debug("optimizer finished")
	return res, nil
}
