// Package registry holds the static, build-then-publish lookup tables of the
// prompt plane: parameter definitions and interactions.
//
// Tables are assembled once at process start with a Builder and published as
// an immutable Table. Readers never lock and never observe a partially built
// table.
package registry

import (
	"fmt"
	"sort"
)

// Table is an immutable name-keyed lookup table.
type Table[T any] struct {
	entries map[string]T
	keys    []string // sorted
}

// Get returns the entry registered under name.
func (t *Table[T]) Get(name string) (T, bool) {
	v, ok := t.entries[name]
	return v, ok
}

// Has reports whether name is registered.
func (t *Table[T]) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// List returns the entries accepted by filter, ordered by name.
// A nil filter returns every entry.
func (t *Table[T]) List(filter func(T) bool) []T {
	out := make([]T, 0, len(t.keys))
	for _, k := range t.keys {
		v := t.entries[k]
		if filter == nil || filter(v) {
			out = append(out, v)
		}
	}
	return out
}

// Names returns all registered names in sorted order.
func (t *Table[T]) Names() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of entries.
func (t *Table[T]) Len() int { return len(t.keys) }

// Builder accumulates entries for a Table. It is not safe for concurrent use
// and must not be reused after Build.
type Builder[T any] struct {
	kind    string
	entries map[string]T
	built   bool
}

// NewBuilder creates a builder; kind is used in error messages.
func NewBuilder[T any](kind string) *Builder[T] {
	return &Builder[T]{kind: kind, entries: make(map[string]T)}
}

// Add registers v under name. Registration is append-only: a duplicate
// name is an error.
func (b *Builder[T]) Add(name string, v T) error {
	if b.built {
		return fmt.Errorf("%s registry already built", b.kind)
	}
	if name == "" {
		return fmt.Errorf("%s name is required", b.kind)
	}
	if _, dup := b.entries[name]; dup {
		return fmt.Errorf("%s %q already registered", b.kind, name)
	}
	b.entries[name] = v
	return nil
}

// Build publishes the accumulated entries as an immutable Table.
func (b *Builder[T]) Build() *Table[T] {
	b.built = true
	keys := make([]string, 0, len(b.entries))
	entries := make(map[string]T, len(b.entries))
	for k, v := range b.entries {
		keys = append(keys, k)
		entries[k] = v
	}
	sort.Strings(keys)
	return &Table[T]{entries: entries, keys: keys}
}
