package host

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// Lookup walks a field path through a host value. A string element selects a
// dict key, or an attribute if there is no such key. An int
// element selects an index; negative indexes count from the end.
func Lookup(v starlark.Value, path ...interface{}) (starlark.Value, error) {
	cur := v
	for i, step := range path {
		next, err := lookupStep(cur, step)
		if err != nil {
			return nil, engine.NewTypeMismatchError(
				fmt.Sprintf("cannot resolve %s", formatPath(path[:i+1])), err)
		}
		cur = next
	}
	return cur, nil
}

func lookupStep(v starlark.Value, step interface{}) (starlark.Value, error) {
	switch s := step.(type) {
	case string:
		// keys shadow the dict's own methods
		if m, ok := v.(starlark.Mapping); ok {
			x, found, err := m.Get(starlark.String(s))
			if err != nil {
				return nil, err
			}
			if found {
				return x, nil
			}
		}
		if ha, ok := v.(starlark.HasAttrs); ok {
			attr, err := ha.Attr(s)
			if err == nil && attr != nil {
				return attr, nil
			}
		}
		return nil, fmt.Errorf("%s has no field or key %q", v.Type(), s)
	case int:
		seq, ok := v.(starlark.Indexable)
		if !ok {
			return nil, fmt.Errorf("%s is not indexable", v.Type())
		}
		n := seq.Len()
		idx := s
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("index %d out of range [%d:%d]", s, -n, n)
		}
		return seq.Index(idx), nil
	default:
		return nil, fmt.Errorf("unsupported path element %T", step)
	}
}

func formatPath(path []interface{}) string {
	out := ""
	for _, step := range path {
		switch s := step.(type) {
		case string:
			out += "." + s
		default:
			out += fmt.Sprintf("[%v]", s)
		}
	}
	return out
}
