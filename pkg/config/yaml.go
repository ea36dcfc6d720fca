package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// ParseYAML parses a YAML document into a configuration tree. Mapping order is
// preserved and merge keys (<<) are expanded. Timestamps become Timestamp
// values and null is rejected.
func ParseYAML(text string) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, engine.NewParseError("failed to parse YAML", err).WithOperation("config.parse_yaml")
	}
	if doc.Kind == 0 {
		// Empty document.
		return NewTable(), nil
	}
	return fromYAML(&doc)
}

func fromYAML(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewTable(), nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		return yamlMapping(n)
	case yaml.SequenceNode:
		arr := make(Array, 0, len(n.Content))
		for _, item := range n.Content {
			child, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, child)
		}
		return arr, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	default:
		return nil, yamlMismatch(n, "unsupported YAML node")
	}
}

// yamlMapping converts a mapping node. Entries pulled in through a merge key
// never override a key written in the mapping itself, and when several
// mappings are merged the first one listed wins.
func yamlMapping(n *yaml.Node) (*Table, error) {
	explicit := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := n.Content[i]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, yamlMismatch(keyNode, "mapping keys must be scalars")
		}
		if isMergeKey(keyNode) {
			continue
		}
		if explicit[keyNode.Value] {
			return nil, engine.NewParseError(
				fmt.Sprintf("duplicate key %q at line %d", keyNode.Value, keyNode.Line), nil).
				WithDetail("line", keyNode.Line).WithDetail("column", keyNode.Column)
		}
		explicit[keyNode.Value] = true
	}

	t := NewTable()
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		if !isMergeKey(keyNode) {
			child, err := fromYAML(valNode)
			if err != nil {
				return nil, err
			}
			t.Set(keyNode.Value, child)
			continue
		}

		sources, err := yamlMergeSources(valNode)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			for _, key := range src.Keys() {
				if explicit[key] {
					continue
				}
				if _, seen := t.Get(key); seen {
					continue
				}
				v, _ := src.Get(key)
				t.Set(key, v)
			}
		}
	}
	return t, nil
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!merge"
}

// yamlMergeSources returns the mappings named by a merge value: one mapping
// or a sequence of them, each possibly an alias.
func yamlMergeSources(n *yaml.Node) ([]*Table, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	}

	sources := make([]*Table, 0, len(items))
	for _, item := range items {
		if item.Kind == yaml.AliasNode {
			item = item.Alias
		}
		if item.Kind != yaml.MappingNode {
			return nil, yamlMismatch(item, "merge value must be a mapping or a sequence of mappings")
		}
		src, err := yamlMapping(item)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!str":
		// yaml.v3 only resolves timestamps carrying a zone or no time at
		// all; a plain date-time without a zone arrives as a string.
		if n.Style == 0 {
			if ts, ok := parseYAMLTimestamp(n.Value); ok {
				return ts, nil
			}
		}
		return String(n.Value), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, yamlMismatch(n, "integer out of range")
		}
		return Integer(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, yamlMismatch(n, "invalid float")
		}
		return Float(f), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, yamlMismatch(n, "invalid bool")
		}
		return Boolean(b), nil
	case "!!timestamp":
		ts, ok := parseYAMLTimestamp(n.Value)
		if !ok {
			return nil, yamlMismatch(n, "invalid timestamp")
		}
		return ts, nil
	case "!!null":
		return nil, yamlMismatch(n, "null has no configuration equivalent")
	default:
		return String(n.Value), nil
	}
}

// yamlTimestampPattern is the YAML 1.1 timestamp grammar: a date, optionally
// followed by a time and then optionally a zone.
var yamlTimestampPattern = regexp.MustCompile(
	`^(\d{4}-\d{1,2}-\d{1,2})(?:(?:[Tt]|[ \t]+)(\d{1,2}:\d{1,2}:\d{1,2}(?:\.\d*)?)(?:[ \t]*(Z|[-+]\d{1,2}(?::\d{2})?))?)?$`)

// parseYAMLTimestamp classifies a YAML timestamp. A date alone is a local
// date, a date-time without a zone is a local date-time and anything with a
// zone is an offset date-time. The text is normalized but never gains an
// offset the source did not have.
func parseYAMLTimestamp(s string) (Timestamp, bool) {
	m := yamlTimestampPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Timestamp{}, false
	}
	date, clock, zone := m[1], strings.TrimSuffix(m[2], "."), m[3]

	if clock == "" {
		d, err := time.Parse("2006-1-2", date)
		if err != nil {
			return Timestamp{}, false
		}
		return Timestamp{Form: LocalDate, Text: d.Format("2006-01-02")}, true
	}

	local, err := time.Parse("2006-1-2T15:4:5", date+"T"+clock)
	if err != nil {
		return Timestamp{}, false
	}
	if zone == "" {
		return Timestamp{Form: LocalDateTime, Text: local.Format("2006-01-02T15:04:05.999999999")}, true
	}

	loc := time.UTC
	if zone != "Z" {
		offset, ok := zoneOffset(zone)
		if !ok {
			return Timestamp{}, false
		}
		loc = time.FixedZone("", offset)
	}
	ts := time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc)
	return Timestamp{Form: OffsetDateTime, Text: ts.Format(time.RFC3339Nano)}, true
}

// zoneOffset converts "+5", "-05" or "+05:30" to seconds east of UTC.
func zoneOffset(zone string) (int, bool) {
	sign := 1
	if zone[0] == '-' {
		sign = -1
	}
	hh, mm, _ := strings.Cut(zone[1:], ":")
	hours, err := strconv.Atoi(hh)
	if err != nil || hours > 23 {
		return 0, false
	}
	minutes := 0
	if mm != "" {
		if minutes, err = strconv.Atoi(mm); err != nil || minutes > 59 {
			return 0, false
		}
	}
	return sign * (hours*3600 + minutes*60), true
}

func yamlMismatch(n *yaml.Node, message string) error {
	return engine.NewTypeMismatchError(fmt.Sprintf("%s at line %d", message, n.Line), nil).
		WithDetail("line", n.Line).
		WithDetail("column", n.Column)
}
