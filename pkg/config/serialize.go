package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// Serialize renders a table as TOML text that Parse reads back to an equal tree.
// Nested tables and arrays are written inline so key order survives exactly.
func Serialize(t *Table) (string, error) {
	var b strings.Builder
	for _, k := range t.keys {
		b.WriteString(formatKey(k))
		b.WriteString(" = ")
		if err := writeValue(&b, t.values[k]); err != nil {
			return "", err
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func writeValue(b *strings.Builder, v Value) error {
	switch val := v.(type) {
	case String:
		b.WriteString(quote(string(val)))
	case Integer:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		b.WriteString(formatFloat(float64(val)))
	case Boolean:
		b.WriteString(strconv.FormatBool(bool(val)))
	case Timestamp:
		b.WriteString(val.Text)
	case Array:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *Table:
		b.WriteByte('{')
		for i, k := range val.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(formatKey(k))
			b.WriteString(" = ")
			if err := writeValue(b, val.values[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return engine.NewTypeMismatchError(fmt.Sprintf("cannot serialize %s value", describe(v)), nil)
	}
	return nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func formatKey(k string) string {
	if k == "" {
		return `""`
	}
	for _, r := range k {
		bare := r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !bare {
			return quote(k)
		}
	}
	return k
}

// quote writes a TOML basic string.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
