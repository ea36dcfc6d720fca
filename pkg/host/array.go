package host

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Array is a homogeneous float64 array with a shape, the host-side numeric
// array type exchanged with the optimizer. Arrays are immutable; arithmetic
// and reshaping return new arrays.
type Array struct {
	data  []float64
	shape []int
}

var (
	_ starlark.Indexable = (*Array)(nil)
	_ starlark.Sequence  = (*Array)(nil)
	_ starlark.HasAttrs  = (*Array)(nil)
	_ starlark.HasBinary = (*Array)(nil)
	_ starlark.HasUnary  = (*Array)(nil)
)

// NewArray creates an array over a copy of data. With no shape the array is
// one-dimensional.
func NewArray(data []float64, shape ...int) (*Array, error) {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	size := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d in shape %v", d, shape)
		}
		size *= d
	}
	if size != len(data) {
		return nil, fmt.Errorf("cannot shape %d elements as %v", len(data), shape)
	}
	return &Array{
		data:  append([]float64(nil), data...),
		shape: append([]int(nil), shape...),
	}, nil
}

// Data returns a copy of the elements in row-major order.
func (a *Array) Data() []float64 { return append([]float64(nil), a.data...) }

// Shape returns a copy of the shape.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// String implements starlark.Value.
func (a *Array) String() string {
	var b strings.Builder
	b.WriteString("array(")
	b.WriteString(a.tolist().String())
	b.WriteString(")")
	return b.String()
}

// Type implements starlark.Value.
func (a *Array) Type() string { return "array" }

// Freeze implements starlark.Value. Arrays are never mutated in place.
func (a *Array) Freeze() {}

// Truth implements starlark.Value.
func (a *Array) Truth() starlark.Bool { return len(a.data) > 0 }

// Hash implements starlark.Value.
func (a *Array) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: array") }

// Len implements starlark.Sequence; it is the length of the first axis.
func (a *Array) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

// Index implements starlark.Indexable. A one-dimensional array yields floats;
// higher dimensions yield sub-arrays.
func (a *Array) Index(i int) starlark.Value {
	if len(a.shape) == 1 {
		return starlark.Float(a.data[i])
	}
	stride := len(a.data) / a.shape[0]
	sub := &Array{
		data:  append([]float64(nil), a.data[i*stride:(i+1)*stride]...),
		shape: append([]int(nil), a.shape[1:]...),
	}
	return sub
}

// Iterate implements starlark.Iterable.
func (a *Array) Iterate() starlark.Iterator { return &arrayIterator{a: a} }

type arrayIterator struct {
	a *Array
	i int
}

func (it *arrayIterator) Next(p *starlark.Value) bool {
	if it.i >= it.a.Len() {
		return false
	}
	*p = it.a.Index(it.i)
	it.i++
	return true
}

func (it *arrayIterator) Done() {}

var arrayMethods = map[string]func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error){
	"tolist": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		return a.tolist(), nil
	},
	"flatten": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		return &Array{data: a.Data(), shape: []int{len(a.data)}}, nil
	},
	"copy": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		return &Array{data: a.Data(), shape: a.Shape()}, nil
	},
	"reshape": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", name)
		}
		dims := args
		if len(args) == 1 {
			if t, ok := args[0].(starlark.Tuple); ok {
				dims = t
			}
		}
		return a.reshape(dims)
	},
	"abs": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		return a.mapElems(math.Abs), nil
	},
	"sum": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		var s float64
		for _, x := range a.data {
			s += x
		}
		return starlark.Float(s), nil
	},
	"max": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return a.reduce(name, args, kwargs, math.Max)
	},
	"min": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return a.reduce(name, args, kwargs, math.Min)
	},
	"dot": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var other starlark.Value
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &other); err != nil {
			return nil, err
		}
		b, ok := other.(*Array)
		if !ok || len(b.data) != len(a.data) {
			return nil, fmt.Errorf("%s: operand must be an array of %d elements", name, len(a.data))
		}
		var s float64
		for i := range a.data {
			s += a.data[i] * b.data[i]
		}
		return starlark.Float(s), nil
	},
	"norm": func(a *Array, name string, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
			return nil, err
		}
		var s float64
		for _, x := range a.data {
			s += x * x
		}
		return starlark.Float(math.Sqrt(s)), nil
	},
}

// Attr implements starlark.HasAttrs.
func (a *Array) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		t := make(starlark.Tuple, len(a.shape))
		for i, d := range a.shape {
			t[i] = starlark.MakeInt(d)
		}
		return t, nil
	case "size":
		return starlark.MakeInt(len(a.data)), nil
	case "ndim":
		return starlark.MakeInt(len(a.shape)), nil
	case "dtype":
		return starlark.String("float64"), nil
	}
	if m, ok := arrayMethods[name]; ok {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			return m(a, b.Name(), args, kwargs)
		}), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (a *Array) AttrNames() []string {
	names := []string{"dtype", "ndim", "shape", "size"}
	for name := range arrayMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Array) tolist() *starlark.List {
	if len(a.shape) <= 1 {
		items := make([]starlark.Value, len(a.data))
		for i, x := range a.data {
			items[i] = starlark.Float(x)
		}
		return starlark.NewList(items)
	}
	items := make([]starlark.Value, a.shape[0])
	for i := range items {
		items[i] = a.Index(i).(*Array).tolist()
	}
	return starlark.NewList(items)
}

func (a *Array) reshape(dims starlark.Tuple) (*Array, error) {
	shape := make([]int, len(dims))
	infer := -1
	known := 1
	for i, d := range dims {
		n, err := starlark.AsInt32(d)
		if err != nil {
			return nil, fmt.Errorf("reshape: %v", err)
		}
		if n == -1 {
			if infer >= 0 {
				return nil, fmt.Errorf("reshape: can only specify one unknown dimension")
			}
			infer = i
			continue
		}
		if n < 0 {
			return nil, fmt.Errorf("reshape: negative dimension %d", n)
		}
		shape[i] = n
		known *= n
	}
	if infer >= 0 {
		if known == 0 || len(a.data)%known != 0 {
			return nil, fmt.Errorf("reshape: cannot reshape array of size %d into shape %s", len(a.data), dims)
		}
		shape[infer] = len(a.data) / known
	}
	out, err := NewArray(a.data, shape...)
	if err != nil {
		return nil, fmt.Errorf("reshape: %v", err)
	}
	return out, nil
}

func (a *Array) mapElems(f func(float64) float64) *Array {
	out := &Array{data: make([]float64, len(a.data)), shape: a.Shape()}
	for i, x := range a.data {
		out.data[i] = f(x)
	}
	return out
}

func (a *Array) reduce(name string, args starlark.Tuple, kwargs []starlark.Tuple, f func(x, y float64) float64) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(name, args, kwargs, 0); err != nil {
		return nil, err
	}
	if len(a.data) == 0 {
		return nil, fmt.Errorf("%s: empty array", name)
	}
	acc := a.data[0]
	for _, x := range a.data[1:] {
		acc = f(acc, x)
	}
	return starlark.Float(acc), nil
}

// Binary implements starlark.HasBinary for + - * / with scalars and arrays
// of the same shape.
func (a *Array) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	var f func(x, y float64) float64
	switch op {
	case syntax.PLUS:
		f = func(x, y float64) float64 { return x + y }
	case syntax.MINUS:
		f = func(x, y float64) float64 { return x - y }
	case syntax.STAR:
		f = func(x, y float64) float64 { return x * y }
	case syntax.SLASH:
		f = func(x, y float64) float64 { return x / y }
	default:
		return nil, nil
	}

	apply := func(x, y float64) float64 {
		if side == starlark.Right {
			return f(y, x)
		}
		return f(x, y)
	}

	switch other := y.(type) {
	case *Array:
		if !sameShape(a.shape, other.shape) {
			return nil, fmt.Errorf("operands could not be combined with shapes %v and %v", a.shape, other.shape)
		}
		out := &Array{data: make([]float64, len(a.data)), shape: a.Shape()}
		for i := range a.data {
			out.data[i] = apply(a.data[i], other.data[i])
		}
		return out, nil
	case starlark.Float, starlark.Int:
		s, _ := starlark.AsFloat(other)
		return a.mapElems(func(x float64) float64 { return apply(x, s) }), nil
	}
	return nil, nil
}

// Unary implements starlark.HasUnary.
func (a *Array) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return a.mapElems(func(x float64) float64 { return -x }), nil
	case syntax.PLUS:
		return a, nil
	}
	return nil, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Floats flattens a host number, list, tuple or array (nested to any depth)
// into a slice of float64 in row-major order.
func Floats(v starlark.Value) ([]float64, error) {
	var out []float64
	if err := appendFloats(&out, v); err != nil {
		return nil, err
	}
	return out, nil
}

func appendFloats(out *[]float64, v starlark.Value) error {
	switch val := v.(type) {
	case *Array:
		*out = append(*out, val.data...)
		return nil
	case starlark.Float, starlark.Int:
		f, _ := starlark.AsFloat(val)
		*out = append(*out, f)
		return nil
	case starlark.Bool:
		return fmt.Errorf("expected number, got bool")
	case *starlark.List, starlark.Tuple:
		iter := val.(starlark.Iterable).Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			if err := appendFloats(out, x); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("expected number or sequence of numbers, got %s", v.Type())
	}
}

// arrayBuiltin implements array(values) for scripts. The shape is taken from
// the nesting of values, which must be rectangular.
func arrayBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &values); err != nil {
		return nil, err
	}
	if arr, ok := values.(*Array); ok {
		return &Array{data: arr.Data(), shape: arr.Shape()}, nil
	}

	shape, err := inferShape(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	data, err := Floats(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", b.Name(), err)
	}
	out, err := NewArray(data, shape...)
	if err != nil {
		return nil, fmt.Errorf("%s: ragged nesting: %v", b.Name(), err)
	}
	return out, nil
}

func inferShape(v starlark.Value) ([]int, error) {
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return nil, fmt.Errorf("expected a list or tuple, got %s", v.Type())
	}
	switch v.(type) {
	case *starlark.List, starlark.Tuple, *Array:
	default:
		return nil, fmt.Errorf("expected a list or tuple, got %s", v.Type())
	}
	n := seq.Len()
	if n == 0 {
		return []int{0}, nil
	}
	first := seq.Index(0)
	switch first.(type) {
	case *starlark.List, starlark.Tuple, *Array:
		inner, err := inferShape(first)
		if err != nil {
			return nil, err
		}
		return append([]int{n}, inner...), nil
	}
	return []int{n}, nil
}
