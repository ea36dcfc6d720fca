package host

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/RESTGroup/geometric-bridge/pkg/engine"
)

// moleculeConstructor tags molecule structs so scripts can tell them apart.
var moleculeConstructor = starlark.String("Molecule")

// NewMolecule builds the host molecule object: a struct with elem, the list of
// element symbols, and xyzs, a list of (natom, 3) coordinate arrays. Each frame
// in xyzs must hold exactly 3 coordinates per element.
func NewMolecule(elem []string, xyzs [][]float64) (*starlarkstruct.Struct, error) {
	if len(elem) == 0 {
		return nil, engine.NewContractError("molecule has no atoms", nil)
	}

	elems := make([]starlark.Value, len(elem))
	for i, e := range elem {
		elems[i] = starlark.String(e)
	}

	frames := make([]starlark.Value, len(xyzs))
	for i, frame := range xyzs {
		if len(frame) != 3*len(elem) {
			return nil, engine.NewContractError(
				fmt.Sprintf("frame %d has %d coordinates, want %d for %d atoms", i, len(frame), 3*len(elem), len(elem)), nil)
		}
		arr, err := NewArray(frame, len(elem), 3)
		if err != nil {
			return nil, engine.NewContractError(fmt.Sprintf("frame %d", i), err)
		}
		frames[i] = arr
	}

	return starlarkstruct.FromStringDict(moleculeConstructor, starlark.StringDict{
		"elem": starlark.NewList(elems),
		"xyzs": starlark.NewList(frames),
	}), nil
}

// moleculeBuiltin implements molecule(elem, xyzs) for scripts.
func moleculeBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var elemList, xyzList *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "elem", &elemList, "xyzs", &xyzList); err != nil {
		return nil, err
	}

	elem := make([]string, elemList.Len())
	for i := range elem {
		s, ok := starlark.AsString(elemList.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: elem[%d] must be a string", b.Name(), i)
		}
		elem[i] = s
	}

	xyzs := make([][]float64, xyzList.Len())
	for i := range xyzs {
		frame, err := Floats(xyzList.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%s: xyzs[%d]: %v", b.Name(), i, err)
		}
		xyzs[i] = frame
	}

	return NewMolecule(elem, xyzs)
}
