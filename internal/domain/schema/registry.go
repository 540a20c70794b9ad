package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the schemas known to the process, keyed by report type.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// NewDefaultRegistry creates a registry holding the built-in catalog.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range Builtins() {
		r.MustRegister(s)
	}
	return r
}

// Register validates and adds a schema.
func (r *Registry) Register(s *Schema) error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.ReportType]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, s.ReportType)
	}
	r.schemas[s.ReportType] = s
	return nil
}

// MustRegister is Register for load-time declarations.
func (r *Registry) MustRegister(s *Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the schema of a report type.
func (r *Registry) Get(reportType string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[reportType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, reportType)
	}
	return s, nil
}

// List returns all schemas ordered by report type.
func (r *Registry) List() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, s := range r.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportType < out[j].ReportType })
	return out
}
