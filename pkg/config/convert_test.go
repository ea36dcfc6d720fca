package config

import (
	"errors"
	"reflect"
	"testing"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

func dictKeys(d *starlark.Dict) []string {
	var keys []string
	for _, k := range d.Keys() {
		keys = append(keys, string(k.(starlark.String)))
	}
	return keys
}

func TestToHost_ScalarFidelity(t *testing.T) {
	tests := []struct {
		name  string
		in    Value
		check func(starlark.Value) bool
	}{
		{"true stays Bool", Boolean(true), func(v starlark.Value) bool {
			b, ok := v.(starlark.Bool)
			return ok && bool(b)
		}},
		{"false stays Bool", Boolean(false), func(v starlark.Value) bool {
			b, ok := v.(starlark.Bool)
			return ok && !bool(b)
		}},
		{"integer stays Int", Integer(1), func(v starlark.Value) bool {
			i, ok := v.(starlark.Int)
			if !ok {
				return false
			}
			n, exact := i.Int64()
			return exact && n == 1
		}},
		{"float stays Float", Float(1.0), func(v starlark.Value) bool {
			f, ok := v.(starlark.Float)
			return ok && f == 1.0
		}},
		{"string", String("tric"), func(v starlark.Value) bool {
			s, ok := v.(starlark.String)
			return ok && s == "tric"
		}},
		{"timestamp as text", Timestamp{Form: LocalDate, Text: "1979-05-27"}, func(v starlark.Value) bool {
			s, ok := v.(starlark.String)
			return ok && s == "1979-05-27"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToHost(tt.in)
			if err != nil {
				t.Fatalf("ToHost() error: %v", err)
			}
			if !tt.check(got) {
				t.Errorf("ToHost(%#v) = %s (%s)", tt.in, got, got.Type())
			}
		})
	}
}

func TestConvertRoot(t *testing.T) {
	v, err := Parse(`
transition           = true
convergence_energy   = 1.0e-8
maxiter              = 300
coordsys             = "tric"
[extra]
list = [1, 2.5, "x"]
`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	dict, err := ConvertRoot(v)
	if err != nil {
		t.Fatalf("ConvertRoot() error: %v", err)
	}

	want := []string{"transition", "convergence_energy", "maxiter", "coordsys", "extra"}
	if got := dictKeys(dict); !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}

	transition, _, _ := dict.Get(starlark.String("transition"))
	if transition != starlark.True {
		t.Errorf("transition = %v (%s), want True", transition, transition.Type())
	}

	extra, _, _ := dict.Get(starlark.String("extra"))
	list, _, _ := extra.(*starlark.Dict).Get(starlark.String("list"))
	l := list.(*starlark.List)
	if l.Len() != 3 {
		t.Fatalf("list length = %d, want 3", l.Len())
	}
	if _, ok := l.Index(0).(starlark.Int); !ok {
		t.Errorf("list[0] type = %s, want int", l.Index(0).Type())
	}
	if _, ok := l.Index(1).(starlark.Float); !ok {
		t.Errorf("list[1] type = %s, want float", l.Index(1).Type())
	}
}

func TestConvertRoot_NonTable(t *testing.T) {
	for _, v := range []Value{Integer(1), String("x"), Array{Integer(1)}, Boolean(true)} {
		_, err := ConvertRoot(v)
		if !errors.Is(err, engine.ErrTypeMismatch) {
			t.Errorf("ConvertRoot(%#v) error = %v, want type mismatch", v, err)
		}
	}
}

func TestConvertInto_FrozenDict(t *testing.T) {
	tbl := NewTable()
	tbl.Set("a", Integer(1))

	dict := starlark.NewDict(1)
	dict.Freeze()

	err := ConvertInto(tbl, dict)
	if !errors.Is(err, engine.ErrMarshaling) {
		t.Fatalf("ConvertInto() error = %v, want marshaling error", err)
	}
}

func TestParseToHost(t *testing.T) {
	dict, err := ParseToHost("check = 1\n")
	if err != nil {
		t.Fatalf("ParseToHost() error: %v", err)
	}
	if dict.Len() != 1 {
		t.Errorf("Len() = %d, want 1", dict.Len())
	}

	if _, err := ParseToHost("check = \n"); !engine.IsParse(err) {
		t.Errorf("ParseToHost(bad) error = %v, want parse error", err)
	}
}

func TestFromHost(t *testing.T) {
	dict := starlark.NewDict(3)
	_ = dict.SetKey(starlark.String("b"), starlark.True)
	_ = dict.SetKey(starlark.String("a"), starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.Float(2)}))
	_ = dict.SetKey(starlark.String("c"), starlark.Tuple{starlark.String("x")})

	got, err := FromHost(dict)
	if err != nil {
		t.Fatalf("FromHost() error: %v", err)
	}

	want := NewTable()
	want.Set("b", Boolean(true))
	want.Set("a", Array{Integer(1), Float(2)})
	want.Set("c", Array{String("x")})
	if !Equal(got, want) {
		t.Errorf("FromHost() = %#v, want %#v", got, want)
	}

	if _, err := FromHost(starlark.None); !engine.IsTypeMismatch(err) {
		t.Errorf("FromHost(None) error = %v, want type mismatch", err)
	}

	bad := starlark.NewDict(1)
	_ = bad.SetKey(starlark.MakeInt(1), starlark.True)
	if _, err := FromHost(bad); !engine.IsTypeMismatch(err) {
		t.Errorf("FromHost(int key) error = %v, want type mismatch", err)
	}
}

func TestRoundTrip_ParseConvert(t *testing.T) {
	doc := `
b = true
i = 7
f = 0.5
s = "text"
nested = { x = 1, y = [true, false] }
`
	v, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	dict, err := ConvertRoot(v)
	if err != nil {
		t.Fatalf("ConvertRoot() error: %v", err)
	}
	back, err := FromHost(dict)
	if err != nil {
		t.Fatalf("FromHost() error: %v", err)
	}
	if !Equal(v, back) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", back, v)
	}
}
