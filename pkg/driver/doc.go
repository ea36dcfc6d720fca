// Package driver holds the shared driver handle and the reference drivers.
//
// A Handle owns one engine.Driver behind a mutex. Every compute call holds the
// lock for exactly one CalcNew, so calls from any number of goroutines are
// serialized and a rebind through Attach waits for the call in flight. A
// driver panic is recovered and reported as a driver failure; it is never
// retried.
//
// Reference drivers:
//
//	Blank      zero energy and zero gradient
//	Model      three-point harmonic model with a known minimum
//	WASMDriver energy and gradient computed by a WebAssembly module under wazero
//
// The WASM ABI expects the module to export memory and
//
//	calc_new(coords_ptr i32, n i32, grad_ptr i32) -> f64
//
// with coordinates and gradient as little-endian float64 arrays of n values.
// Optional malloc(size i32) -> i32 and free(ptr i32) exports are used for
// buffer placement when present.
package driver
