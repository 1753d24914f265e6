package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to factories. It is populated once at
// startup; adding a provider means registering a factory here, the
// orchestrator never changes.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a provider factory under the given name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New resolves a provider instance for the given name and credential.
func (r *Registry) New(name, credential string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %v)", name, r.List())
	}
	return f(credential)
}

// List returns all registered provider names, sorted.
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

// Default returns a registry with all built-in providers registered.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register("openrouter", NewOpenRouter)
	_ = r.Register("uniapi", NewUniAPI)
	_ = r.Register("tikhub", NewTikHub)
	_ = r.Register("volc", NewVolc)
	_ = r.Register("aliyun", NewAliyun)
	_ = r.Register("wxrank", NewWxRank)
	return r
}
