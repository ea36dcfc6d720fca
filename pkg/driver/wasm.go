package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

const wasmPageSize = 65536

// WASMConfig contains configuration for a WebAssembly driver.
type WASMConfig struct {
	// MemoryLimitPages is the maximum memory limit in pages (64KB each).
	// Default is 256 pages (16MB).
	MemoryLimitPages uint32
}

// WASMDriver runs the energy and gradient computation inside a WebAssembly module.
//
// The module must export its linear memory as "memory" and a function
//
//	calc_new(coords_ptr i32, n i32, grad_ptr i32) -> f64
//
// that reads n little-endian float64 coordinates at coords_ptr, writes n gradient
// components at grad_ptr and returns the energy. If the module also exports
// malloc(size i32) -> i32 and free(ptr i32), buffers are allocated through them;
// otherwise coordinates are placed at offset 0 followed by the gradient buffer.
//
// A trap inside the module panics, which the driver handle reports as a
// DriverFailure.
type WASMDriver struct {
	mu sync.Mutex

	// runtime is the wazero runtime.
	runtime wazero.Runtime

	// module is the instantiated WASM module.
	module api.Module

	// memory provides access to WASM linear memory.
	memory api.Memory

	// calc is the exported compute function.
	calc api.Function

	// malloc and free are optional memory management exports.
	malloc api.Function
	free   api.Function
}

var _ engine.Driver = (*WASMDriver)(nil)

// NewWASMDriver compiles and instantiates a driver module.
func NewWASMDriver(ctx context.Context, wasmModule []byte, cfg *WASMConfig) (*WASMDriver, error) {
	if cfg == nil {
		cfg = &WASMConfig{}
	}
	if cfg.MemoryLimitPages == 0 {
		cfg.MemoryLimitPages = 256
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	// Instantiate WASI
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	module, err := runtime.Instantiate(ctx, wasmModule)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	d := &WASMDriver{
		runtime: runtime,
		module:  module,
		memory:  module.Memory(),
		calc:    module.ExportedFunction("calc_new"),
		malloc:  module.ExportedFunction("malloc"),
		free:    module.ExportedFunction("free"),
	}

	if d.memory == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("WASM module does not export memory")
	}
	if d.calc == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("WASM module does not export calc_new function")
	}
	if (d.malloc == nil) != (d.free == nil) {
		runtime.Close(ctx)
		return nil, fmt.Errorf("WASM module must export both malloc and free, or neither")
	}

	return d, nil
}

// CalcNew implements engine.Driver. It panics if the module traps or if the
// buffers cannot be placed in linear memory.
func (d *WASMDriver) CalcNew(coords []float64, _ string) engine.GradOutput {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx := context.Background()
	n := uint32(len(coords))
	size := 8 * n

	coordsPtr, gradPtr, release, err := d.buffers(ctx, size)
	if err != nil {
		panic(err)
	}
	defer release()

	for i, v := range coords {
		if !d.memory.WriteFloat64Le(coordsPtr+8*uint32(i), v) {
			panic(fmt.Errorf("failed to write coordinates to WASM memory"))
		}
	}

	results, err := d.calc.Call(ctx, uint64(coordsPtr), uint64(n), uint64(gradPtr))
	if err != nil {
		panic(fmt.Errorf("WASM function call failed: %w", err))
	}
	if len(results) == 0 {
		panic(fmt.Errorf("WASM function returned no results"))
	}

	out := engine.GradOutput{
		Energy:   api.DecodeF64(results[0]),
		Gradient: make([]float64, n),
	}
	for i := range out.Gradient {
		v, ok := d.memory.ReadFloat64Le(gradPtr + 8*uint32(i))
		if !ok {
			panic(fmt.Errorf("failed to read gradient from WASM memory"))
		}
		out.Gradient[i] = v
	}
	return out
}

// buffers places the coordinate and gradient buffers in linear memory.
func (d *WASMDriver) buffers(ctx context.Context, size uint32) (coordsPtr, gradPtr uint32, release func(), err error) {
	if d.malloc != nil {
		coordsPtr, err = d.allocate(ctx, size)
		if err != nil {
			return 0, 0, nil, err
		}
		gradPtr, err = d.allocate(ctx, size)
		if err != nil {
			d.deallocate(ctx, coordsPtr)
			return 0, 0, nil, err
		}
		return coordsPtr, gradPtr, func() {
			d.deallocate(ctx, gradPtr)
			d.deallocate(ctx, coordsPtr)
		}, nil
	}

	need := 2 * size
	if have := d.memory.Size(); have < need {
		pages := (need - have + wasmPageSize - 1) / wasmPageSize
		if _, ok := d.memory.Grow(pages); !ok {
			return 0, 0, nil, fmt.Errorf("failed to grow WASM memory by %d pages", pages)
		}
	}
	return 0, size, func() {}, nil
}

// allocate allocates memory in WASM and returns the pointer.
func (d *WASMDriver) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := d.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no results")
	}
	ptr := uint32(results[0])
	if ptr == 0 && size > 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}
	return ptr, nil
}

// deallocate frees memory in WASM. Errors are ignored; the buffers were already consumed.
func (d *WASMDriver) deallocate(ctx context.Context, ptr uint32) {
	_, _ = d.free.Call(ctx, uint64(ptr))
}

// Close releases the runtime and the module.
func (d *WASMDriver) Close(ctx context.Context) error {
	return d.runtime.Close(ctx)
}
