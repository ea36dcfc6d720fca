package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// CUEParser parses CUE sources into configuration trees and checks them
// against the optimizer schema.
type CUEParser struct {
	// mu serializes use of the underlying cue.Context.
	mu             sync.Mutex
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{schemaRegistry: NewSchemaRegistry()}
}

var (
	defaultCUEParser     *CUEParser
	defaultCUEParserOnce sync.Once
)

func sharedCUEParser() *CUEParser {
	defaultCUEParserOnce.Do(func() {
		defaultCUEParser = NewCUEParser()
	})
	return defaultCUEParser
}

// ParseCUE parses CUE source with a shared parser.
func ParseCUE(text string) (Value, error) {
	return sharedCUEParser().Parse("inline.cue", text)
}

// Parse compiles source, checks it against the optimizer schema and converts
// it. Field order follows the source. The result must be concrete; null has
// no configuration equivalent.
func (cp *CUEParser) Parse(filename, source string) (Value, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	val := cp.schemaRegistry.ctx.CompileString(source, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, cueParseError("failed to parse CUE source", err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, cueParseError("CUE source is not concrete", err)
	}
	if err := cp.schemaRegistry.Check(OptimizerSchemaName, val); err != nil {
		return nil, engine.NewValidationError("CUE source violates optimizer schema", err).
			WithOperation("config.parse_cue")
	}

	return fromCUE(val, filename)
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

func cueParseError(message string, err error) error {
	perr := engine.NewParseError(message, err).WithOperation("config.parse_cue")

	errs := cueerrors.Errors(err)
	if len(errs) > 0 {
		if pos := cueerrors.Positions(errs[0]); len(pos) > 0 {
			perr.WithDetail("file", pos[0].Filename()).
				WithDetail("line", pos[0].Line()).
				WithDetail("column", pos[0].Column())
		}
		perr.WithDetail("message", cueerrors.Details(errs[0], nil))
	}
	return perr
}

func fromCUE(v cue.Value, path string) (Value, error) {
	switch v.Kind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueParseError("failed to iterate fields", err)
		}
		t := NewTable()
		for iter.Next() {
			key := iter.Selector().Unquoted()
			child, err := fromCUE(iter.Value(), path+"."+key)
			if err != nil {
				return nil, err
			}
			t.Set(key, child)
		}
		return t, nil
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, cueParseError("failed to list values", err)
		}
		var arr Array
		for i := 0; list.Next(); i++ {
			child, err := fromCUE(list.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, child)
		}
		if arr == nil {
			arr = Array{}
		}
		return arr, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueParseError("failed to read string", err)
		}
		return String(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, engine.NewTypeMismatchError(fmt.Sprintf("integer at %s out of range", path), err)
		}
		return Integer(i), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, engine.NewTypeMismatchError(fmt.Sprintf("float at %s out of range", path), err)
		}
		return Float(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueParseError("failed to read bool", err)
		}
		return Boolean(b), nil
	case cue.NullKind:
		return nil, engine.NewTypeMismatchError(fmt.Sprintf("null at %s has no configuration equivalent", path), nil)
	default:
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("unsupported CUE kind %s at %s", v.Kind(), path), nil)
	}
}
