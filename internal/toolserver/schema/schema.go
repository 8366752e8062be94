// Package schema compiles and validates the per-tool JSON Schemas the
// Tool Server Fabric attaches to registered tools that declare one
// (spec.md §4.F); a tool without a Schema is not validated.
//
// Grounded on the teacher's wsSchemaRegistry (internal/gateway/ws_schema.go):
// a sync.Once-guarded map of compiled jsonschema.Schema values, looked up
// by name before validating an inbound payload.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry compiles tool-argument schemas once and validates against
// them by tool name thereafter.
type Registry struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{compiled: make(map[string]*jsonschema.Schema)}
}

// Compile parses and caches raw as name's schema. Calling Compile twice
// for the same name recompiles and replaces the cached schema.
func (r *Registry) Compile(name string, raw json.RawMessage) error {
	compiled, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return fmt.Errorf("schema: compile %q: %w", name, err)
	}
	r.mu.Lock()
	r.compiled[name] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks args against name's compiled schema. A tool with no
// registered schema is treated as permissive (validation is advisory,
// never a substitute for the Permission Engine's own checks).
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	s, ok := r.compiled[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.Validate(args); err != nil {
		return fmt.Errorf("schema: %q: %w", name, err)
	}
	return nil
}
