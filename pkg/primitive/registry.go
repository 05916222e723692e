package primitive

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var (
	// ErrUnknownPrimitive is returned by Lookup for unregistered names.
	ErrUnknownPrimitive = errors.New("primitive: unknown type")

	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("primitive: already registered")
)

// Registry maps type names to primitive implementations.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Primitive
}

// NewRegistry returns a registry holding the given primitives.
// It panics if two of them share a name.
func NewRegistry(prims ...Primitive) *Registry {
	r := &Registry{byName: make(map[string]Primitive)}
	for _, p := range prims {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Builtin returns a registry with the analytic primitives of this package.
func Builtin() *Registry {
	return NewRegistry(Sphere{}, RPP{})
}

// Register adds p under p.Name().
func (r *Registry) Register(p Primitive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	r.byName[name] = p
	return nil
}

// Lookup returns the primitive registered under name.
func (r *Registry) Lookup(name string) (Primitive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrimitive, name)
	}
	return p, nil
}

// Names lists the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.byName)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
