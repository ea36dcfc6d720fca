package config

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// ToHost converts a configuration value into the equivalent host value.
//
// Booleans become starlark.Bool and never Int. Timestamps become their
// canonical text. Tables become dicts with the same key order.
func ToHost(v Value) (starlark.Value, error) {
	switch val := v.(type) {
	case String:
		return starlark.String(val), nil
	case Integer:
		return starlark.MakeInt64(int64(val)), nil
	case Float:
		return starlark.Float(val), nil
	case Boolean:
		return starlark.Bool(val), nil
	case Timestamp:
		return starlark.String(val.Text), nil
	case Array:
		items := make([]starlark.Value, len(val))
		for i, item := range val {
			hv, err := ToHost(item)
			if err != nil {
				return nil, err
			}
			items[i] = hv
		}
		return starlark.NewList(items), nil
	case *Table:
		return tableToHost(val, starlark.NewDict(val.Len()))
	default:
		return nil, engine.NewTypeMismatchError(fmt.Sprintf("unsupported configuration value %T", v), nil)
	}
}

func tableToHost(t *Table, dict *starlark.Dict) (*starlark.Dict, error) {
	for _, k := range t.keys {
		hv, err := ToHost(t.values[k])
		if err != nil {
			return nil, err
		}
		if err := dict.SetKey(starlark.String(k), hv); err != nil {
			return nil, engine.NewMarshalingError(fmt.Sprintf("host rejected key %q", k), err)
		}
	}
	return dict, nil
}

// ConvertRoot converts a configuration tree whose root must be a table into a
// host dictionary. Any other root is a type mismatch.
func ConvertRoot(v Value) (*starlark.Dict, error) {
	t, ok := v.(*Table)
	if !ok {
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("configuration root must be a table, got %s", describe(v)), nil,
		).WithOperation("config.convert")
	}
	return tableToHost(t, starlark.NewDict(t.Len()))
}

// ConvertInto writes the entries of t into an existing host dictionary. It fails
// with a marshaling error if the host refuses an insertion, for example because
// dict is frozen.
func ConvertInto(t *Table, dict *starlark.Dict) error {
	_, err := tableToHost(t, dict)
	return err
}

// ParseToHost parses TOML text and converts it to a host dictionary.
func ParseToHost(text string) (*starlark.Dict, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return ConvertRoot(v)
}

// FromHost converts a host value back into a configuration value. Values with
// no configuration equivalent, such as None, functions or engine objects,
// are a type mismatch.
func FromHost(v starlark.Value) (Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, engine.NewTypeMismatchError("None has no configuration equivalent", nil)
	case starlark.Bool:
		return Boolean(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, engine.NewTypeMismatchError("integer too large", nil)
		}
		return Integer(i), nil
	case starlark.Float:
		return Float(val), nil
	case starlark.String:
		return String(val), nil
	case *starlark.Dict:
		t := NewTable()
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, engine.NewTypeMismatchError(
					fmt.Sprintf("dict key must be string, got %s", item[0].Type()), nil)
			}
			child, err := FromHost(item[1])
			if err != nil {
				return nil, err
			}
			t.Set(string(key), child)
		}
		return t, nil
	case *starlarkstruct.Struct:
		names := val.AttrNames()
		sort.Strings(names)
		t := NewTable()
		for _, name := range names {
			attr, err := val.Attr(name)
			if err != nil {
				return nil, err
			}
			child, err := FromHost(attr)
			if err != nil {
				return nil, err
			}
			t.Set(name, child)
		}
		return t, nil
	case starlark.Sequence:
		arr := make(Array, 0, val.Len())
		iter := val.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			child, err := FromHost(x)
			if err != nil {
				return nil, err
			}
			arr = append(arr, child)
		}
		return arr, nil
	default:
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("unsupported host type: %s", v.Type()), nil)
	}
}
