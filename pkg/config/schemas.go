package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas that configuration files are checked against.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema(OptimizerSchemaName, builtinOptimizerSchema); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check unifies val with the named schema and requires the result to be concrete.
// val is left unchanged; the unified value is only used for the check.
func (sr *SchemaRegistry) Check(schemaName string, val cue.Value) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// OptimizerSchemaName is the name of the built-in optimizer parameter schema.
const OptimizerSchemaName = "optimizer"

// builtinOptimizerSchema constrains the recognized optimizer keys. The struct
// is open, so other keys pass through.
const builtinOptimizerSchema = `
transition?:         bool
convergence_energy?: number & >0
convergence_grms?:   number & >0
convergence_gmax?:   number & >0
convergence_drms?:   number & >0
convergence_dmax?:   number & >0
maxiter?:            int & >0
coordsys?:           "tric" | "cart" | "prim" | "dlc" | "hdlc" | "tric-p"
check?:              int & >=0
`
