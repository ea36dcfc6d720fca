package optimize

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
	"github.com/RESTGroup/geometric-bridge/pkg/host"
)

// Keys injected into every optimizer configuration.
const (
	KeyCustomEngine = "customengine"
	KeyCheck        = "check"
	KeyInput        = "input"
)

const tempInputPattern = "geometric-input-*.txt"

// Request is the per-invocation record: a private copy of the caller's
// configuration with the engine, check flag and input path injected. A
// Request that created a temporary input file removes it on Close.
type Request struct {
	Engine    starlark.Value
	Config    *starlark.Dict
	InputPath string

	tempPath string
}

// NewRequest deep-copies cfg and injects engine, check = 1 and the input path.
// With a nil input a fresh, uniquely named empty file is created in tempDir
// (os.TempDir when empty). The caller's cfg is never modified.
func NewRequest(eng starlark.Value, cfg *starlark.Dict, input *string, tempDir string) (*Request, error) {
	merged := starlark.NewDict(3)
	if cfg != nil {
		var err error
		merged, err = host.CopyDict(cfg)
		if err != nil {
			return nil, engine.NewMarshalingError("failed to copy optimizer configuration", err).
				WithOperation("optimize.request")
		}
	}

	req := &Request{Engine: eng, Config: merged}

	if input != nil {
		req.InputPath = *input
	} else {
		f, err := os.CreateTemp(tempDir, tempInputPattern)
		if err != nil {
			return nil, engine.NewOptimizerFailureError("failed to create temporary input file", err).
				WithOperation("optimize.request")
		}
		req.InputPath = f.Name()
		req.tempPath = f.Name()
		if err := f.Close(); err != nil {
			_ = req.Close()
			return nil, engine.NewOptimizerFailureError("failed to close temporary input file", err).
				WithOperation("optimize.request")
		}
	}

	inject := []struct {
		key string
		val starlark.Value
	}{
		{KeyCustomEngine, eng},
		{KeyCheck, starlark.MakeInt(1)},
		{KeyInput, starlark.String(req.InputPath)},
	}
	for _, kv := range inject {
		if err := merged.SetKey(starlark.String(kv.key), kv.val); err != nil {
			_ = req.Close()
			return nil, engine.NewMarshalingError(fmt.Sprintf("failed to set %s", kv.key), err).
				WithOperation("optimize.request")
		}
	}

	return req, nil
}

// Temporary reports whether the input file was created by the request.
func (r *Request) Temporary() bool { return r.tempPath != "" }

// Kwargs returns the merged configuration as keyword arguments, in order.
// Every key must be a string.
func (r *Request) Kwargs() ([]starlark.Tuple, error) {
	items := r.Config.Items()
	kwargs := make([]starlark.Tuple, 0, len(items))
	for _, item := range items {
		if _, ok := item[0].(starlark.String); !ok {
			return nil, engine.NewTypeMismatchError(
				fmt.Sprintf("optimizer configuration key %s is a %s, not a string", item[0], item[0].Type()), nil).
				WithOperation("optimize.request")
		}
		kwargs = append(kwargs, starlark.Tuple{item[0], item[1]})
	}
	return kwargs, nil
}

// Close removes the temporary input file, if any. It is safe to call more
// than once.
func (r *Request) Close() error {
	if r.tempPath == "" {
		return nil
	}
	path := r.tempPath
	r.tempPath = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
