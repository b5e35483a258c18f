// Package generator provides a safe, registered pluggable call generator: a
// named Go implementation of "next_group() -> CallGroup | None" in place of
// an evaluated inline script.
package generator

import (
	"errors"
	"sort"
	"sync"

	"github.com/dutradda/chunli/internal/chunli"
)

// ErrExhausted is returned by NextGroup when a generator has no more
// CallGroups to produce; the dispatcher then gets no group and does not fall
// back to the shared queue.
var ErrExhausted = errors.New("generator: exhausted")

// Generator produces the next CallGroup to dispatch. Implementations decide
// when they are exhausted by returning ErrExhausted.
type Generator interface {
	Name() string
	NextGroup() (chunli.CallGroup, error)
}

// ErrAlreadyRegistered is returned by Register when a name collides.
var ErrAlreadyRegistered = errors.New("generator: already registered")

// ErrNotRegistered is returned by Get for an unknown name.
var ErrNotRegistered = errors.New("generator: not registered")

// Registry holds named Generator factories. A factory, not a shared
// instance, is registered: each run gets its own Generator so two
// concurrent dispatchers never share iterator state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Generator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Generator)}
}

// Register adds a generator factory under name.
func (r *Registry) Register(name string, factory func() Generator) error {
	if name == "" {
		return errors.New("generator: name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return ErrAlreadyRegistered
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register, panicking on error. Intended for init().
func (r *Registry) MustRegister(name string, factory func() Generator) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// New instantiates a fresh Generator registered under name.
func (r *Registry) New(name string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[name]
	if !exists {
		return nil, ErrNotRegistered
	}
	return factory(), nil
}

// List returns the sorted names of every registered factory.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the process-global registry, populated by init()
// functions in generator implementation files.
var DefaultRegistry = NewRegistry()
