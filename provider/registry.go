package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

// Info describes a registered provider.
type Info struct {
	Name         string
	Capabilities []protocol.Capability
}

// Registry manages named provider configurations with lazy instantiation.
// Configs are stored at registration time; providers are created on first
// Get call and shared afterwards. Thread-safe for concurrent access.
type Registry struct {
	mu        sync.RWMutex
	configs   map[string]Config
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		configs:   make(map[string]Config),
		providers: make(map[string]Provider),
	}
}

// Register adds a named provider configuration.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, name)
	}

	r.configs[name] = cfg
	return nil
}

// Add registers an already constructed provider under name.
func (r *Registry) Add(name string, p Provider) error {
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, name)
	}

	r.configs[name] = Config{Name: p.Name()}
	r.providers[name] = p
	return nil
}

// Get retrieves a named provider, instantiating it on first access. Unknown
// names wrap ErrUnsupportedProvider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, registered := r.configs[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	if p, exists := r.providers[name]; exists {
		return p, nil
	}

	p, err := New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", name, err)
	}

	r.providers[name] = p
	return p, nil
}

// List returns information about all registered providers, sorted by name.
// Capabilities are reported only for providers already instantiated.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.configs))
	for name := range r.configs {
		info := Info{Name: name}
		if p, ok := r.providers[name]; ok {
			info.Capabilities = p.Capabilities()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Unregister removes a named provider.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}

	delete(r.configs, name)
	delete(r.providers, name)
	return nil
}
