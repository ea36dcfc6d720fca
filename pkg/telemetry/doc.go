// Package telemetry provides the observability instrumentation for optimization
// runs driven through the bridge.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and an in-process event publisher.
// Nothing in the bridge requires telemetry: every helper degrades to a plain
// call when the context carries no *Telemetry.
//
// # Usage
//
// Initialize telemetry at startup and put it on the context passed to the
// optimization invoker:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// LoadConfig reads the same configuration from YAML, applying the file over
// DefaultConfig:
//
//	logging:
//	  level: debug
//	  format: json
//	tracing:
//	  exporter: otlp
//	  endpoint: collector:4317
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("optimize")
//	logger.WithRunID(runID).Info("optimizer started")
//	logger.WithError(err).Error("optimizer failed")
//
// WithTrace adds trace_id and span_id from the active span so log lines can be
// joined with exported traces.
//
// Log levels: trace, debug, info, warn, error, fatal. The "discard" output
// drops everything, which is what TestConfig uses.
//
// # Runs and Evaluations
//
// WithRunContext and EndRunContext bracket one optimizer invocation. They open
// the optimize.run span, add a run-scoped logger, update the run counters and
// publish run.started and run.completed or run.failed:
//
//	ctx = telemetry.WithRunContext(ctx, runID, "run_optimizer")
//	result, err := call(ctx)
//	telemetry.EndRunContext(ctx, err)
//
// RecordCalcOperation wraps a single energy and gradient evaluation in the
// engine.calc_new span and records calc metrics and a calc.completed or
// calc.failed event tagged with the enclosing run ID.
//
// # Metrics
//
// All metrics live in a private registry exposed through Metrics.Handler:
//
//   - runs_started_total{optimizer}
//   - runs_completed_total{status}
//   - run_duration_seconds{status}
//   - calc_calls_total{driver}
//   - calc_duration_seconds{driver}
//   - calc_errors_total{driver, class}
//   - errors_by_class_total{class}
//   - errors_by_code_total{code}
//   - active_runs
//
// # Events
//
// Subscribers receive events either synchronously on the publishing goroutine
// (EnableAsync false) or in batches from a background goroutine. Filters
// narrow delivery by level, type or run ID:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    log.Println(e.Message)
//	}, telemetry.FilterByType(telemetry.EventTypeCalcFailed))
//
// # Configuration
//
// DefaultConfig, DevelopmentConfig and ProductionConfig cover the usual
// deployments; TestConfig keeps metrics and synchronous events but exports and
// prints nothing.
package telemetry
