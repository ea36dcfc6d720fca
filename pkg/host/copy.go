package host

import (
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// DeepCopy returns a recursive copy of dicts, lists, tuples, arrays and structs.
// Shared and cyclic references are copied once and stay shared in the result.
// Scalars, functions and opaque values such as engines are returned as is.
// The copy is never frozen.
func DeepCopy(v starlark.Value) (starlark.Value, error) {
	return deepCopy(v, make(map[starlark.Value]starlark.Value))
}

// CopyDict is DeepCopy for a dictionary.
func CopyDict(d *starlark.Dict) (*starlark.Dict, error) {
	v, err := DeepCopy(d)
	if err != nil {
		return nil, err
	}
	return v.(*starlark.Dict), nil
}

// memo keys are pointer types only; tuples are slices and not comparable.
func deepCopy(v starlark.Value, memo map[starlark.Value]starlark.Value) (starlark.Value, error) {
	switch val := v.(type) {
	case *starlark.Dict:
		if c, ok := memo[val]; ok {
			return c, nil
		}
		out := starlark.NewDict(val.Len())
		memo[val] = out
		for _, item := range val.Items() {
			k, err := deepCopy(item[0], memo)
			if err != nil {
				return nil, err
			}
			x, err := deepCopy(item[1], memo)
			if err != nil {
				return nil, err
			}
			if err := out.SetKey(k, x); err != nil {
				return nil, err
			}
		}
		return out, nil
	case *starlark.List:
		if c, ok := memo[val]; ok {
			return c, nil
		}
		out := starlark.NewList(make([]starlark.Value, 0, val.Len()))
		memo[val] = out
		for i := 0; i < val.Len(); i++ {
			x, err := deepCopy(val.Index(i), memo)
			if err != nil {
				return nil, err
			}
			if err := out.Append(x); err != nil {
				return nil, err
			}
		}
		return out, nil
	case starlark.Tuple:
		out := make(starlark.Tuple, len(val))
		for i, item := range val {
			x, err := deepCopy(item, memo)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case *Array:
		if c, ok := memo[val]; ok {
			return c, nil
		}
		out := &Array{data: val.Data(), shape: val.Shape()}
		memo[val] = out
		return out, nil
	case *starlarkstruct.Struct:
		if c, ok := memo[val]; ok {
			return c, nil
		}
		fields := make(starlark.StringDict)
		val.ToStringDict(fields)
		for name, field := range fields {
			x, err := deepCopy(field, memo)
			if err != nil {
				return nil, err
			}
			fields[name] = x
		}
		out := starlarkstruct.FromStringDict(val.Constructor(), fields)
		memo[val] = out
		return out, nil
	default:
		return v, nil
	}
}
