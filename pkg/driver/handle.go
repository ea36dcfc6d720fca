package driver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// Handle is the shared, exclusively guarded reference to one driver.
//
// A *Handle may be bound to any number of engine instances and used from any
// goroutine. Every compute call holds the guard for exactly one CalcNew, so
// calls on the same driver are serialized and never overlap.
//
// A driver must not Attach to its own handle from inside CalcNew; that call
// waits for itself. String never takes the guard and is safe anywhere.
type Handle struct {
	mu     sync.Mutex
	driver engine.Driver
	label  atomic.Pointer[string]
}

var _ starlark.Value = (*Handle)(nil)

// NewHandle wraps a driver in a handle. d may be nil, in which case every
// compute call reports a missing driver until Attach is called.
func NewHandle(d engine.Driver) *Handle {
	h := &Handle{driver: d}
	h.setLabel(d)
	return h
}

// Attach replaces the driver behind the handle. It waits for any compute call
// in flight to finish first, so a call never observes a driver swap.
func (h *Handle) Attach(d engine.Driver) {
	h.mu.Lock()
	h.driver = d
	h.setLabel(d)
	h.mu.Unlock()
}

func (h *Handle) setLabel(d engine.Driver) {
	label := "<driver_handle (empty)>"
	if d != nil {
		label = fmt.Sprintf("<driver_handle %T>", d)
	}
	h.label.Store(&label)
}

// Driver returns the currently attached driver.
func (h *Handle) Driver() engine.Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.driver
}

// CallWith runs one energy and gradient evaluation under the guard.
//
// A panic raised by the driver is recovered and returned as a DriverFailure;
// the guard is released on every path.
func (h *Handle) CallWith(coords []float64, dirname string) (out engine.GradOutput, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.driver == nil {
		return engine.GradOutput{}, engine.NewMissingDriverError("driver handle has no driver attached").
			WithOperation("calc_new")
	}

	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			out = engine.GradOutput{}
			err = engine.NewDriverFailureError("driver aborted", cause).
				WithCode(engine.ErrCodeDriverPanic).
				WithOperation("calc_new")
		}
	}()

	return h.driver.CalcNew(coords, dirname), nil
}

// String implements starlark.Value. It reports the driver most recently
// attached.
func (h *Handle) String() string {
	if label := h.label.Load(); label != nil {
		return *label
	}
	return "<driver_handle (empty)>"
}

// Type implements starlark.Value.
func (h *Handle) Type() string { return "driver_handle" }

// Freeze implements starlark.Value. The handle is internally synchronized.
func (h *Handle) Freeze() {}

// Truth implements starlark.Value.
func (h *Handle) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (h *Handle) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: driver_handle")
}
