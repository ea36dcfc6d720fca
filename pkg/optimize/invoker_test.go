package optimize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/telemetry"
)

// recorder is a Go optimizer entry point that keeps the keyword arguments of
// every call.
type recorder struct {
	mu    sync.Mutex
	calls []map[string]starlark.Value
	// onCall runs inside the call, after the arguments are recorded.
	onCall func(kwargs map[string]starlark.Value) error
}

func (r *recorder) builtin() *starlark.Builtin {
	return starlark.NewBuiltin("run_optimizer", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("run_optimizer: unexpected positional arguments")
		}
		got := make(map[string]starlark.Value, len(kwargs))
		for _, kv := range kwargs {
			got[string(kv[0].(starlark.String))] = kv[1]
		}
		r.mu.Lock()
		r.calls = append(r.calls, got)
		r.mu.Unlock()
		if r.onCall != nil {
			if err := r.onCall(got); err != nil {
				return nil, err
			}
		}
		return starlark.String("done"), nil
	})
}

func (r *recorder) last(t *testing.T) map[string]starlark.Value {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("optimizer was not called")
	}
	return r.calls[len(r.calls)-1]
}

func dictOf(t *testing.T, kv ...interface{}) *starlark.Dict {
	t.Helper()
	d := starlark.NewDict(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		var v starlark.Value
		switch x := kv[i+1].(type) {
		case int:
			v = starlark.MakeInt(x)
		case float64:
			v = starlark.Float(x)
		case string:
			v = starlark.String(x)
		case bool:
			v = starlark.Bool(x)
		case starlark.Value:
			v = x
		default:
			t.Fatalf("unsupported value %T", x)
		}
		if err := d.SetKey(starlark.String(kv[i].(string)), v); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func tempEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestRunMergesConfiguration(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	inv := NewInvoker(rec.builtin(), WithTempDir(dir))

	base := dictOf(t, "check", 1)
	eng := starlark.String("engine")
	input := "/tmp/foo"

	res, err := inv.Run(context.Background(), eng, base, &input)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res != starlark.String("done") {
		t.Errorf("Run() = %v, want the optimizer's result unchanged", res)
	}

	got := rec.last(t)
	if len(got) != 3 {
		t.Errorf("optimizer received %d keys, want 3: %v", len(got), got)
	}
	if got[KeyCustomEngine] != eng {
		t.Errorf("customengine = %v, want %v", got[KeyCustomEngine], eng)
	}
	if got[KeyCheck].String() != "1" {
		t.Errorf("check = %v, want 1", got[KeyCheck])
	}
	if got[KeyInput] != starlark.String(input) {
		t.Errorf("input = %v, want %q", got[KeyInput], input)
	}

	if base.Len() != 1 {
		t.Errorf("caller config has %d keys after Run, want 1", base.Len())
	}
	if _, found, _ := base.Get(starlark.String(KeyCustomEngine)); found {
		t.Error("caller config was modified")
	}
	if names := tempEntries(t, dir); len(names) != 0 {
		t.Errorf("temp dir has %v, want no files for an explicit input", names)
	}
}

func TestRunTemporaryInput(t *testing.T) {
	dir := t.TempDir()
	var seen string
	rec := &recorder{onCall: func(kwargs map[string]starlark.Value) error {
		seen = string(kwargs[KeyInput].(starlark.String))
		if _, err := os.Stat(seen); err != nil {
			return fmt.Errorf("input file missing during the call: %v", err)
		}
		return nil
	}}
	inv := NewInvoker(rec.builtin(), WithTempDir(dir))

	if _, err := inv.Run(context.Background(), starlark.None, nil, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if filepath.Dir(seen) != dir {
		t.Errorf("input %q is not in %q", seen, dir)
	}
	if !strings.HasPrefix(filepath.Base(seen), "geometric-input-") {
		t.Errorf("input %q does not use the temp file pattern", seen)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Errorf("temp input %q still exists after Run (stat error %v)", seen, err)
	}
}

func TestRunRemovesTemporaryInputOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		onCall  func(map[string]starlark.Value) error
		cfg     func(t *testing.T) *starlark.Dict
		isClass func(error) bool
	}{
		{
			name:    "optimizer error",
			onCall:  func(map[string]starlark.Value) error { return errors.New("diverged") },
			isClass: engine.IsOptimizerFailure,
		},
		{
			name: "bridge error from callback",
			onCall: func(map[string]starlark.Value) error {
				return engine.NewMissingDriverError("no driver")
			},
			isClass: engine.IsMissingDriver,
		},
		{
			name:    "validation",
			cfg:     func(t *testing.T) *starlark.Dict { return dictOf(t, "maxiter", 0) },
			isClass: engine.IsValidation,
		},
		{
			name:    "type mismatch",
			cfg:     func(t *testing.T) *starlark.Dict { return dictOf(t, "maxiter", "ten") },
			isClass: engine.IsTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			rec := &recorder{onCall: tt.onCall}
			inv := NewInvoker(rec.builtin(), WithTempDir(dir))

			var cfg *starlark.Dict
			if tt.cfg != nil {
				cfg = tt.cfg(t)
			}
			_, err := inv.Run(context.Background(), starlark.None, cfg, nil)
			if err == nil {
				t.Fatal("Run() expected error")
			}
			if !tt.isClass(err) {
				t.Errorf("Run() error class = %s, want another class: %v", engine.ClassOf(err), err)
			}
			if names := tempEntries(t, dir); len(names) != 0 {
				t.Errorf("temp dir has %v after a failed run", names)
			}
		})
	}
}

func TestRunPropagatesBridgeErrorUnchanged(t *testing.T) {
	want := engine.NewDriverFailureError("driver panicked", nil).WithCode(engine.ErrCodeDriverPanic)
	rec := &recorder{onCall: func(map[string]starlark.Value) error { return want }}
	inv := NewInvoker(rec.builtin(), WithTempDir(t.TempDir()))

	_, err := inv.Run(context.Background(), starlark.None, nil, nil)
	var got *engine.BridgeError
	if !errors.As(err, &got) {
		t.Fatalf("Run() error = %v, want *engine.BridgeError", err)
	}
	if got != want {
		t.Errorf("Run() error = %v, want the callback's error %v", got, want)
	}
}

func TestRunOverridesInjectedKeys(t *testing.T) {
	rec := &recorder{}
	inv := NewInvoker(rec.builtin(), WithTempDir(t.TempDir()))

	cfg := dictOf(t, "check", 0, "customengine", "stale", "input", "/stale", "step", 0.25)
	input := "geom.xyz"
	eng := starlark.String("fresh")
	if _, err := inv.Run(context.Background(), eng, cfg, &input); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	got := rec.last(t)
	if got[KeyCheck].String() != "1" {
		t.Errorf("check = %v, want 1", got[KeyCheck])
	}
	if got[KeyCustomEngine] != eng {
		t.Errorf("customengine = %v, want %v", got[KeyCustomEngine], eng)
	}
	if got[KeyInput] != starlark.String(input) {
		t.Errorf("input = %v, want %q", got[KeyInput], input)
	}
	if got["step"] != starlark.Float(0.25) {
		t.Errorf("step = %v, want 0.25 passed through", got["step"])
	}

	v, _, _ := cfg.Get(starlark.String("check"))
	if v.String() != "0" {
		t.Errorf("caller check = %v, want 0", v)
	}
}

func TestRunRejectsNonStringKeys(t *testing.T) {
	rec := &recorder{}
	inv := NewInvoker(rec.builtin(), WithTempDir(t.TempDir()))

	cfg := starlark.NewDict(1)
	if err := cfg.SetKey(starlark.MakeInt(7), starlark.True); err != nil {
		t.Fatal(err)
	}
	_, err := inv.Run(context.Background(), starlark.None, cfg, nil)
	if !engine.IsTypeMismatch(err) {
		t.Fatalf("Run() error = %v, want type mismatch", err)
	}
	if len(rec.calls) != 0 {
		t.Error("optimizer was called with an invalid configuration")
	}
}

func TestRunConcurrentCallers(t *testing.T) {
	const runs = 8

	dir := t.TempDir()
	rec := &recorder{}
	inv := NewInvoker(rec.builtin(), WithTempDir(dir))

	nested := starlark.NewList([]starlark.Value{starlark.MakeInt(1)})
	cfg := dictOf(t, "maxiter", 50, "history", nested)
	cfg.Freeze()

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < runs; i++ {
		eng := starlark.MakeInt(i)
		g.Go(func() error {
			_, err := inv.Run(ctx, eng, cfg, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(rec.calls) != runs {
		t.Fatalf("optimizer called %d times, want %d", len(rec.calls), runs)
	}
	inputs := make(map[string]bool)
	engines := make(map[string]bool)
	for _, call := range rec.calls {
		inputs[call[KeyInput].String()] = true
		engines[call[KeyCustomEngine].String()] = true
		if call["history"] == starlark.Value(nested) {
			t.Error("run received the caller's list instead of a copy")
		}
	}
	if len(inputs) != runs {
		t.Errorf("got %d distinct inputs, want %d", len(inputs), runs)
	}
	if len(engines) != runs {
		t.Errorf("got %d distinct engines, want %d", len(engines), runs)
	}
	if cfg.Len() != 2 {
		t.Errorf("caller config has %d keys, want 2", cfg.Len())
	}
	if names := tempEntries(t, dir); len(names) != 0 {
		t.Errorf("temp dir has %v after all runs", names)
	}
}

func TestRunTelemetry(t *testing.T) {
	tel, err := telemetry.NewTelemetry(telemetry.TestConfig())
	if err != nil {
		t.Fatalf("NewTelemetry() error: %v", err)
	}
	defer tel.Shutdown(context.Background())

	var mu sync.Mutex
	var types []string
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	}, nil)

	rec := &recorder{}
	inv := NewInvoker(rec.builtin(), WithTempDir(t.TempDir()), WithTelemetry(tel))
	if _, err := inv.Run(context.Background(), starlark.None, nil, nil); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	rec.onCall = func(map[string]starlark.Value) error { return errors.New("boom") }
	if _, err := inv.Run(context.Background(), starlark.None, nil, nil); err == nil {
		t.Fatal("Run() expected error")
	}

	want := []string{
		telemetry.EventTypeRunStarted,
		telemetry.EventTypeRunCompleted,
		telemetry.EventTypeRunStarted,
		telemetry.EventTypeRunFailed,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestRequestClose(t *testing.T) {
	dir := t.TempDir()
	req, err := NewRequest(starlark.None, nil, nil, dir)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	if !req.Temporary() {
		t.Error("Temporary() = false for a synthesized input")
	}
	if err := req.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := req.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if names := tempEntries(t, dir); len(names) != 0 {
		t.Errorf("temp dir has %v after Close", names)
	}
}

func TestRequestTempDirFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := NewRequest(starlark.None, nil, nil, missing)
	if !engine.IsOptimizerFailure(err) {
		t.Fatalf("NewRequest() error = %v, want optimizer failure", err)
	}
}
