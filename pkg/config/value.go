package config

// Kind identifies the variant held by a Value.
type Kind string

const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindTimestamp Kind = "timestamp"
	KindArray     Kind = "array"
	KindTable     Kind = "table"
)

// Value is a node in a parsed configuration tree.
// The concrete types are String, Integer, Float, Boolean, Timestamp, Array and *Table.
type Value interface {
	Kind() Kind
	isValue()
}

// String is a text value.
type String string

// Integer is a signed 64-bit integer value.
type Integer int64

// Float is a 64-bit floating point value.
type Float float64

// Boolean is a true/false value.
type Boolean bool

// TimestampKind distinguishes the four TOML date-time forms.
type TimestampKind string

const (
	OffsetDateTime TimestampKind = "offset-date-time"
	LocalDateTime  TimestampKind = "local-date-time"
	LocalDate      TimestampKind = "local-date"
	LocalTime      TimestampKind = "local-time"
)

// Timestamp is a date/time value kept as its canonical text form.
type Timestamp struct {
	Form TimestampKind
	Text string
}

// Array is an ordered sequence of values.
type Array []Value

func (String) Kind() Kind    { return KindString }
func (Integer) Kind() Kind   { return KindInteger }
func (Float) Kind() Kind     { return KindFloat }
func (Boolean) Kind() Kind   { return KindBoolean }
func (Timestamp) Kind() Kind { return KindTimestamp }
func (Array) Kind() Kind     { return KindArray }
func (*Table) Kind() Kind    { return KindTable }

func (String) isValue()    {}
func (Integer) isValue()   {}
func (Float) isValue()     {}
func (Boolean) isValue()   {}
func (Timestamp) isValue() {}
func (Array) isValue()     {}
func (*Table) isValue()    {}

// String returns the canonical text of the timestamp.
func (t Timestamp) String() string { return t.Text }

// Table is a mapping from unique string keys to values that remembers
// insertion order.
type Table struct {
	keys   []string
	values map[string]Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{values: make(map[string]Value)}
}

// Set inserts or replaces a key. A replaced key keeps its original position.
func (t *Table) Set(key string, v Value) {
	if t.values == nil {
		t.values = make(map[string]Value)
	}
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value for key.
func (t *Table) Get(key string) (Value, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of keys.
func (t *Table) Len() int {
	return len(t.keys)
}

// Delete removes a key if present.
func (t *Table) Delete(key string) {
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable()
	for _, k := range t.keys {
		out.Set(k, cloneValue(t.values[k]))
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case *Table:
		return val.Clone()
	case Array:
		out := make(Array, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two values have the same variant, the same key order
// and equal leaves.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case *Table:
		bv, ok := b.(*Table)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, k := range av.keys {
			if bv.keys[i] != k || !Equal(av.values[k], bv.values[k]) {
				return false
			}
		}
		return true
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Float:
		bv, ok := b.(Float)
		if !ok {
			return false
		}
		// NaN compares equal to NaN for round-trip purposes.
		return av == bv || (av != av && bv != bv)
	default:
		return a == b
	}
}

// describe renders a short type name for error messages.
func describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return string(v.Kind())
}
