package declarative

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/avi3tal/stepflow/pkg/agent"
)

// Registry maps agent type names, as referenced by declarative step
// definitions, to agent factories.
type Registry struct {
	factories map[string]agent.Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]agent.Factory)}
}

// Register binds an agent type name to a factory. Re-registering a name is an
// error.
func (r *Registry) Register(name string, factory agent.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Errorf("agent type %q already registered", name)
	}
	if factory == nil {
		return errors.Errorf("agent type %q has nil factory", name)
	}
	r.factories[name] = factory
	return nil
}

// Lookup resolves an agent type name.
func (r *Registry) Lookup(name string) (agent.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}
