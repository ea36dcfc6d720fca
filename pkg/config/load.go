package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// LoadFile reads a configuration file and parses it according to its extension:
// .toml, .cue, .yaml or .yml.
func LoadFile(path string) (Value, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, engine.NewParseError("failed to read config file", err).
			WithOperation("config.load").
			WithDetail("path", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return Parse(string(content))
	case ".cue":
		return sharedCUEParser().Parse(path, string(content))
	case ".yaml", ".yml":
		return ParseYAML(string(content))
	default:
		return nil, engine.NewParseError(fmt.Sprintf("unsupported config file extension %q", ext), nil).
			WithDetail("path", path)
	}
}

// LoadTable loads a configuration file whose root must be a table.
func LoadTable(path string) (*Table, error) {
	v, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*Table)
	if !ok {
		return nil, engine.NewTypeMismatchError(
			fmt.Sprintf("configuration root in %s must be a table, got %s", path, describe(v)), nil)
	}
	return t, nil
}
