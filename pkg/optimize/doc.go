// Package optimize runs an external optimizer against a Go driver.
//
// An Invoker calls the optimizer entry point exactly once per Run. Each run
// works on a deep copy of the caller's configuration, into which three keys
// are injected before the call:
//
//	customengine  the engine object
//	check         1
//	input         the caller's input path, or a temporary file
//
// A temporary input file exists only for the duration of the run. Recognized
// optimizer parameters are validated before the optimizer sees them; all
// other keys pass through unchanged.
//
// Bridge is the usual entry point. It loads nothing itself: given a
// host.Module it composes the engine class over the module's Engine base and
// runs the module's run_optimizer.
//
//	mod, err := host.LoadFile("optimizer.star")
//	...
//	b, err := optimize.NewBridge(mod, optimize.WithTelemetry(tel))
//	...
//	res, err := b.Optimize(ctx, driver.NewModel(), molecule, params, nil)
//	...
//	energy, err := res.LastEnergy()
package optimize
