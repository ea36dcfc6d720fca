// Package config parses optimizer parameters and converts them into host values.
//
// # Overview
//
// Parameters are written as TOML (the primary format), CUE or YAML. Each parser
// produces the same ordered tree of Value nodes:
//
//   - String, Integer, Float, Boolean: scalar leaves
//   - Timestamp: a date or time kept as its canonical text
//   - Array: an ordered sequence
//   - *Table: unique keys in insertion order
//
// ConvertRoot turns a tree whose root is a table into a *starlark.Dict that the
// optimizer receives as keyword arguments. Booleans stay booleans, integers stay
// integers and key order is preserved.
//
// # Components
//
// Parse: TOML text to Value, with key order recovered from the document.
//
// CUEParser: CUE source to Value, checked against the built-in optimizer schema
// held by a SchemaRegistry.
//
// ParseYAML: YAML document to Value.
//
// Serialize: Value back to TOML text.
//
// OptimizerParams: typed view of the recognized optimizer keys with range
// validation.
//
// # Usage Example
//
//	params, err := config.ParseToHost(`
//	    transition         = true
//	    convergence_energy = 1.0e-8
//	`)
//	if err != nil {
//	    return err
//	}
//	// params is a *starlark.Dict with two entries
//
// # Errors
//
// Malformed text is a Parse error carrying line and column details. A root that
// is not a table is a TypeMismatch. A recognized parameter outside its range is a
// Validation error.
package config
