// Package host is the glue between Go and the Starlark runtime that hosts the
// external optimizer.
//
// An optimizer module is a Starlark file exporting an engine base definition
// (Engine by default) and an entry point (run_optimizer by default). Load
// executes it with a small set of predeclared names:
//
//	struct     starlarkstruct constructor
//	math       go.starlark.net/lib/math
//	array      homogeneous float64 array constructor
//	molecule   molecule(elem, xyzs) constructor
//
// The array type plays the role of a numeric array library inside scripts. It
// supports shape, size, ndim, indexing, iteration, reshape with one inferred
// dimension, flatten, tolist and elementwise arithmetic with scalars and
// arrays of equal shape.
//
// DeepCopy gives every run a private configuration dict. Lookup reads result
// fields by path. WithContext and Context carry the caller's context.Context
// on a thread so that Go callbacks invoked from scripts can reach telemetry.
package host
