package adapter

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/caselaw-cli/internal/config"
)

// Constructor builds an adapter from configuration. Registered statically;
// no runtime code loading.
type Constructor func(cfg *config.Config) (Adapter, error)

// Registry maps adapter names to their constructors.
type Registry struct {
	constructors map[string]Constructor
	order        []string // registration order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Last registration wins on collision.
func (r *Registry) Register(name string, ctor Constructor) {
	if _, exists := r.constructors[name]; !exists {
		r.order = append(r.order, name)
	}
	r.constructors[name] = ctor
}

// New builds the named adapter.
func (r *Registry) New(name string, cfg *config.Config) (Adapter, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, eris.Errorf("adapter: unknown adapter %q (available: %v)", name, r.Names())
	}
	return ctor(cfg)
}

// Names returns all registered adapter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Default returns the registry with all built-in adapters.
func Default() *Registry {
	r := NewRegistry()
	r.Register("example", func(cfg *config.Config) (Adapter, error) {
		return NewExample(), nil
	})
	r.Register("restapi", func(cfg *config.Config) (Adapter, error) {
		return NewRESTAPI(cfg.Adapter)
	})
	return r
}
