// Package tools implements the three handlers the JSON-RPC layer
// dispatches to: fs_read, fs_write, exec. The Tool interface shape
// (Name/Description/Parameters/Execute) is grounded on
// github.com/nextlevelbuilder/goclaw's internal/tools package (e.g.
// ReadFileTool), adapted from that package's free-text ForLLM/ForUser
// Result to spec.md §4.H's structured JSON-RPC result and valeterr error
// taxonomy — Valet's tools return data for a machine caller, not prose
// for an LLM turn.
package tools

import "context"

// Tool is a single JSON-RPC-callable operation.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{} // JSON-schema-shaped descriptor
	Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)
}

// Descriptor is the shape returned by tools/list (spec.md §4.I).
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Registry holds the fixed set of tools registered at startup.
type Registry struct {
	tools map[string]Tool
	order []string // preserves registration order for tools/list
}

// NewRegistry builds a registry from the given tools, in the order
// supplied.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Get returns the named tool, or false if no such tool is registered.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns descriptors for every registered tool, in registration
// order, so repeated calls are byte-identical given unchanged config
// (spec.md §8's idempotence invariant).
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}
