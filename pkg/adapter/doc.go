// Package adapter exposes Go drivers to the optimizer as engine objects.
//
// The optimizer expects an engine whose calc_new(coords, dirname) returns a
// dict with the energy and a flat gradient array. Compose builds such an
// engine type at run time by layering two adapter methods over the host's
// own Engine base definition:
//
//	set_driver(handle)        bind or rebind a *driver.Handle
//	calc_new(coords, dirname) evaluate through the bound handle
//
// Everything else, including the initializer and any bookkeeping the base
// performs on self, comes from the base definition unchanged.
package adapter
