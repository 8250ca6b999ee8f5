// ABOUTME: Registry of named form templates declared once at startup.
// ABOUTME: Validates field lists eagerly and stamps out fresh Form instances.

package form

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Templates maps form names to their ordered field lists. It is immutable
// after construction and safe for concurrent use.
type Templates struct {
	fields map[string][]string
}

// NewTemplates validates the declarations and returns a registry.
// Every form needs a name and at least one field, and field names must be
// unique and non-empty within a form.
func NewTemplates(decls map[string][]string) (*Templates, error) {
	t := &Templates{fields: make(map[string][]string, len(decls))}
	for name, fields := range decls {
		if name == "" {
			return nil, errors.New("form name cannot be empty")
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("form %q declares no fields", name)
		}
		seen := make(map[string]bool, len(fields))
		for _, field := range fields {
			if field == "" {
				return nil, fmt.Errorf("form %q has an empty field name", name)
			}
			if seen[field] {
				return nil, fmt.Errorf("form %q declares field %q twice", name, field)
			}
			seen[field] = true
		}
		t.fields[name] = slices.Clone(fields)
	}
	return t, nil
}

// New creates a fresh, unstarted instance of the named form.
func (t *Templates) New(name string) (*Form, error) {
	fields, ok := t.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownForm, name)
	}
	return newForm(name, fields), nil
}

// Has reports whether name was registered.
func (t *Templates) Has(name string) bool {
	_, ok := t.fields[name]
	return ok
}

// Names returns the registered form names in sorted order.
func (t *Templates) Names() []string {
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
