package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// Parse parses TOML text into a configuration tree. Table keys keep the order
// in which they first appear in the document.
func Parse(text string) (Value, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, tomlParseError(err)
	}

	order, err := keyOrder([]byte(text))
	if err != nil {
		return nil, tomlParseError(err)
	}

	return fromRaw(raw, nil, order)
}

func tomlParseError(err error) error {
	perr := engine.NewParseError("failed to parse TOML string", err).WithOperation("config.parse")

	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		line, column := derr.Position()
		perr.WithDetail("line", line).WithDetail("column", column)
		if key := derr.Key(); len(key) > 0 {
			perr.WithDetail("key", strings.Join(key, "."))
		}
	}
	var uerr *unstable.ParserError
	if errors.As(err, &uerr) {
		perr.WithDetail("message", uerr.Message)
	}
	return perr
}

// orderIndex records, per table path, the keys in first-seen order.
type orderIndex struct {
	keys   map[string][]string
	seen   map[string]map[string]bool
	arrays map[string]int
}

func newOrderIndex() *orderIndex {
	return &orderIndex{
		keys:   make(map[string][]string),
		seen:   make(map[string]map[string]bool),
		arrays: make(map[string]int),
	}
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

func elemSegment(i int) string {
	return "#" + strconv.Itoa(i)
}

func (o *orderIndex) add(parent []string, key string) {
	pk := pathKey(parent)
	if o.seen[pk] == nil {
		o.seen[pk] = make(map[string]bool)
	}
	if o.seen[pk][key] {
		return
	}
	o.seen[pk][key] = true
	o.keys[pk] = append(o.keys[pk], key)
}

// descend registers key under parent and returns the child path. If the child
// is an array of tables, the path continues into its most recent element.
func (o *orderIndex) descend(parent []string, key string) []string {
	o.add(parent, key)
	child := append(append([]string(nil), parent...), key)
	if n, ok := o.arrays[pathKey(child)]; ok {
		child = append(child, elemSegment(n-1))
	}
	return child
}

// keyOrder walks the document expressions and records table key order.
func keyOrder(doc []byte) (*orderIndex, error) {
	o := newOrderIndex()
	var current []string

	p := unstable.Parser{}
	p.Reset(doc)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.Table:
			current = nil
			for it := expr.Key(); it.Next(); {
				current = o.descend(current, string(it.Node().Data))
			}
		case unstable.ArrayTable:
			parts := keyParts(expr.Key())
			current = nil
			for _, part := range parts[:len(parts)-1] {
				current = o.descend(current, part)
			}
			last := parts[len(parts)-1]
			o.add(current, last)
			arr := append(append([]string(nil), current...), last)
			idx := o.arrays[pathKey(arr)]
			o.arrays[pathKey(arr)] = idx + 1
			current = append(arr, elemSegment(idx))
		case unstable.KeyValue:
			o.keyValue(current, expr)
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return o, nil
}

func keyParts(it unstable.Iterator) []string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return parts
}

func (o *orderIndex) keyValue(table []string, kv *unstable.Node) {
	parts := keyParts(kv.Key())
	path := table
	for _, part := range parts[:len(parts)-1] {
		path = o.descend(path, part)
	}
	last := parts[len(parts)-1]
	o.add(path, last)
	o.value(append(append([]string(nil), path...), last), kv.Value())
}

func (o *orderIndex) value(path []string, n *unstable.Node) {
	switch n.Kind {
	case unstable.InlineTable:
		for it := n.Children(); it.Next(); {
			o.keyValue(path, it.Node())
		}
	case unstable.Array:
		i := 0
		for it := n.Children(); it.Next(); {
			o.value(append(append([]string(nil), path...), elemSegment(i)), it.Node())
			i++
		}
	}
}

// orderedKeys returns the keys of m in document order. Keys the index does not
// know about follow in sorted order.
func (o *orderIndex) orderedKeys(path []string, m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	used := make(map[string]bool, len(m))
	for _, k := range o.keys[pathKey(path)] {
		if _, ok := m[k]; ok && !used[k] {
			out = append(out, k)
			used[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func fromRaw(v interface{}, path []string, order *orderIndex) (Value, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		t := NewTable()
		for _, k := range order.orderedKeys(path, val) {
			child, err := fromRaw(val[k], append(append([]string(nil), path...), k), order)
			if err != nil {
				return nil, err
			}
			t.Set(k, child)
		}
		return t, nil
	case []interface{}:
		arr := make(Array, len(val))
		for i, item := range val {
			child, err := fromRaw(item, append(append([]string(nil), path...), elemSegment(i)), order)
			if err != nil {
				return nil, err
			}
			arr[i] = child
		}
		return arr, nil
	case []map[string]interface{}:
		arr := make(Array, len(val))
		for i, item := range val {
			child, err := fromRaw(item, append(append([]string(nil), path...), elemSegment(i)), order)
			if err != nil {
				return nil, err
			}
			arr[i] = child
		}
		return arr, nil
	case string:
		return String(val), nil
	case int64:
		return Integer(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Boolean(val), nil
	case time.Time:
		return Timestamp{Form: OffsetDateTime, Text: val.Format(time.RFC3339Nano)}, nil
	case toml.LocalDateTime:
		return Timestamp{Form: LocalDateTime, Text: val.String()}, nil
	case toml.LocalDate:
		return Timestamp{Form: LocalDate, Text: val.String()}, nil
	case toml.LocalTime:
		return Timestamp{Form: LocalTime, Text: val.String()}, nil
	default:
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("unsupported TOML value of type %T at %s", v, displayPath(path)), nil)
	}
}

func displayPath(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	var b strings.Builder
	for i, seg := range path {
		if strings.HasPrefix(seg, "#") {
			b.WriteString("[" + seg[1:] + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
