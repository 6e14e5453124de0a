// Package retrieval implements the Retrieval Method Registry.
//
// A retrieval method is a named fetch that produces one response map shared
// by every parameter routed to it. Methods are registered explicitly during
// bootstrap through a Builder; the published Registry is immutable.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentoven/promptplane/internal/coachapi"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/pkg/models"
)

// Context is the per-resolution retrieval context. It is owned by exactly
// one Process call.
type Context struct {
	Client   coachapi.API
	TenantID string
	UserID   string
	Payload  map[string]any
}

// PayloadString returns payload[key] when it is a non-empty string.
func (c *Context) PayloadString(key string) (string, bool) {
	if c == nil || c.Payload == nil {
		return "", false
	}
	s, ok := c.Payload[key].(string)
	return s, ok && s != ""
}

// Method fetches external data for a retrieval context.
type Method interface {
	Fetch(ctx context.Context, rc *Context) (map[string]any, error)
}

// MethodFunc adapts an ordinary function to Method.
type MethodFunc func(ctx context.Context, rc *Context) (map[string]any, error)

// Fetch calls f(ctx, rc).
func (f MethodFunc) Fetch(ctx context.Context, rc *Context) (map[string]any, error) {
	return f(ctx, rc)
}

// Entry pairs a definition with its implementation.
type Entry struct {
	Definition models.RetrievalMethodDefinition
	Method     Method
}

// Registry is the published retrieval method registry.
type Registry struct {
	table *registry.Table[Entry]
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (Entry, bool) {
	return r.table.Get(name)
}

// List returns the definitions accepted by filter, ordered by name.
func (r *Registry) List(filter func(models.RetrievalMethodDefinition) bool) []models.RetrievalMethodDefinition {
	var out []models.RetrievalMethodDefinition
	for _, e := range r.table.List(nil) {
		if filter == nil || filter(e.Definition) {
			out = append(out, e.Definition)
		}
	}
	return out
}

// Builder collects method registrations.
type Builder struct {
	b *registry.Builder[Entry]
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{b: registry.NewBuilder[Entry]("retrieval method")}
}

// Register adds a method. The definition must name the method, declare at
// least one provided parameter and document its outputs.
func (b *Builder) Register(def models.RetrievalMethodDefinition, m Method) error {
	if m == nil {
		return fmt.Errorf("retrieval method %q: implementation is required", def.Name)
	}
	if len(def.Provides) == 0 {
		return fmt.Errorf("retrieval method %q: provides no parameters", def.Name)
	}
	if len(def.Outputs) == 0 {
		return fmt.Errorf("retrieval method %q: outputs are not documented", def.Name)
	}
	return b.b.Add(def.Name, Entry{Definition: def, Method: m})
}

// MustRegister is Register for bootstrap tables that are known to be valid.
func (b *Builder) MustRegister(def models.RetrievalMethodDefinition, m Method) {
	if err := b.Register(def, m); err != nil {
		panic(err)
	}
}

// Build publishes the registry after checking it against params: every
// parameter routed to a method must reference a registered method that
// declares it, and the root of its extraction path must be a documented
// output of that method.
func (b *Builder) Build(params *registry.Parameters) (*Registry, error) {
	reg := &Registry{table: b.b.Build()}
	if params == nil {
		return reg, nil
	}
	var problems []string
	for _, p := range params.List(func(d models.ParameterDefinition) bool { return d.RetrievalMethod != "" }) {
		e, ok := reg.Get(p.RetrievalMethod)
		if !ok {
			problems = append(problems, fmt.Sprintf("parameter %q: unknown retrieval method %q", p.Name, p.RetrievalMethod))
			continue
		}
		if !e.Definition.ProvidesParam(p.Name) {
			problems = append(problems, fmt.Sprintf("parameter %q: method %q does not declare it", p.Name, p.RetrievalMethod))
		}
		root := strings.SplitN(p.Path(), ".", 2)[0]
		if _, ok := e.Definition.Outputs[root]; !ok {
			problems = append(problems, fmt.Sprintf("parameter %q: path %q is not a documented output of %q", p.Name, p.Path(), p.RetrievalMethod))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("retrieval registry invalid:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return reg, nil
}
