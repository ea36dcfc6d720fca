package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// Telemetry combines logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if ctx == nil {
		return nil
	}
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes events and spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush forces all pending spans to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

type runKey struct{}

type runState struct {
	id    string
	span  trace.Span
	timer *Timer
}

// RunID returns the ID of the run carried by ctx, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if rs, ok := ctx.Value(runKey{}).(*runState); ok {
		return rs.id
	}
	return ""
}

// WithRunContext starts the telemetry for one optimizer invocation: a span,
// a run-scoped logger, the run counters and a run.started event. The run ID
// and run-scoped logger are recorded even when ctx carries no telemetry.
func WithRunContext(ctx context.Context, runID, optimizer string) context.Context {
	rs := &runState{id: runID, timer: NewTimer()}

	tel := FromTelemetryContext(ctx)
	if tel == nil {
		ctx = FromContext(ctx).WithRunID(runID).WithContext(ctx)
		return context.WithValue(ctx, runKey{}, rs)
	}

	ctx, rs.span = tel.Tracer.StartRunSpan(ctx, runID, optimizer)
	ctx = tel.Logger.WithRunID(runID).WithField("optimizer", optimizer).WithTrace(ctx).WithContext(ctx)

	tel.Metrics.RecordRunStarted(optimizer)
	_ = tel.Events.PublishRunStarted(runID, optimizer)

	return context.WithValue(ctx, runKey{}, rs)
}

// EndRunContext completes the run started by WithRunContext.
func EndRunContext(ctx context.Context, err error) {
	tel := FromTelemetryContext(ctx)
	rs, ok := ctx.Value(runKey{}).(*runState)
	if tel == nil || !ok {
		return
	}

	status := "completed"
	if err != nil {
		status = "failed"
	}

	if rs.span != nil {
		rs.span.SetAttributes(AttrRunStatus.String(status))
		if err != nil {
			RecordError(rs.span, err)
		} else {
			RecordSuccess(rs.span)
		}
		rs.span.End()
	}

	duration := rs.timer.Duration()
	tel.Metrics.RecordRunCompleted(status, duration)

	if err != nil {
		class, code := classify(err)
		tel.Metrics.RecordError(class, code)
		_ = tel.Events.PublishRunFailed(rs.id, class, err.Error())
		return
	}
	_ = tel.Events.PublishRunCompleted(rs.id, duration)
}

// RecordCalcOperation runs fn as one instrumented energy and gradient
// evaluation. fn returns the energy it computed.
func RecordCalcOperation(ctx context.Context, driver string, atoms int, fn func() (float64, error)) (float64, error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return fn()
	}

	_, span := tel.Tracer.StartCalcSpan(ctx, driver, atoms)
	defer span.End()

	timer := NewTimer()
	energy, err := fn()
	duration := timer.Duration()

	runID := RunID(ctx)
	tel.Metrics.RecordCalc(driver, duration)
	if err != nil {
		class, code := classify(err)
		tel.Metrics.RecordCalcError(driver, class)
		tel.Metrics.RecordError(class, code)
		span.SetAttributes(AttrErrorClass.String(class), AttrErrorCode.String(code))
		RecordError(span, err)
		_ = tel.Events.PublishCalcFailed(runID, driver, class, err.Error())
		return energy, err
	}

	span.SetAttributes(AttrEnergy.Float64(energy))
	RecordSuccess(span)
	_ = tel.Events.PublishCalcCompleted(runID, driver, energy, duration)
	return energy, nil
}

func classify(err error) (class, code string) {
	var be *engine.BridgeError
	if errors.As(err, &be) {
		return string(be.Class), string(be.Code)
	}
	return "unclassified", ""
}
