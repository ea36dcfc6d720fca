// Package engine defines the core types shared by every part of the bridge between
// native gradient drivers and an external geometry optimizer.
//
// # Overview
//
// A geometry optimizer repeatedly asks an engine for the energy and gradient at a
// candidate geometry. The bridge lets that engine be native Go code:
//
//  1. Config - Parse optimizer parameters into a host dictionary (package config)
//  2. Engine - Compose a host engine class around a shared driver handle (package adapter)
//  3. Run - Hand engine and parameters to the optimizer and return its result (package optimize)
//
// # Driver Interface
//
// Drivers implement a single compute operation:
//
//	type Driver interface {
//	    CalcNew(coords []float64, dirname string) GradOutput
//	}
//
// coords is a flat slice of length 3N. The returned gradient must have the same
// length. A driver has no error return; it panics to signal failure and the
// panic is converted into a DriverFailure error by the driver handle.
//
// # Error Classification
//
// Every error produced by the bridge is a *BridgeError carrying one ErrorClass:
//
//   - Parse: configuration text could not be parsed
//   - TypeMismatch: configuration root is not a table, or a value has the wrong type
//   - MissingDriver: compute requested before a driver handle was bound
//   - DriverFailure: the driver panicked or returned a malformed gradient
//   - OptimizerFailure: the external optimizer raised an error
//   - Marshaling: the host runtime rejected a converted value
//   - Contract: a caller passed coordinates that are not a multiple of 3
//   - Validation: a recognized optimizer parameter is out of range
//
// Use errors.Is with the Err* sentinels or the Is* helpers:
//
//	if errors.Is(err, engine.ErrMissingDriver) {
//	    // bind a driver with set_driver first
//	}
package engine
