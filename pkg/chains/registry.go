package chains

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sigweihq/web3provider/pkg/adapter"
)

// Registry holds the providers of one page/session and the adapter they share
type Registry struct {
	providers map[string]Provider
	adapter   adapter.Adapter
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger.With("component", "registry"),
	}
}

// Register registers a provider (uses provider.Network() as key)
// If a provider already exists for the network, it will be replaced (idempotent).
// The shared adapter, when set, is attached to the provider.
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("cannot register nil provider")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	network := provider.Network()
	if r.adapter != nil {
		provider.SetAdapter(r.adapter)
	}
	r.providers[network] = provider
	r.logger.Debug("registered provider", "network", network)
	return nil
}

// SetAdapter attaches a to every registered provider and to providers registered later
func (r *Registry) SetAdapter(a adapter.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapter = a
	for _, p := range r.providers {
		p.SetAdapter(a)
	}
}

// Adapter returns the shared adapter
func (r *Registry) Adapter() adapter.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapter
}

// Get retrieves a provider by network name
func (r *Registry) Get(network string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[network]
	if !exists {
		return nil, fmt.Errorf("no provider registered for network: %s", network)
	}

	return provider, nil
}

// GetSupportedNetworks returns the registered networks in sorted order
func (r *Registry) GetSupportedNetworks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	networks := make([]string, 0, len(r.providers))
	for network := range r.providers {
		networks = append(networks, network)
	}
	sort.Strings(networks)
	return networks
}

// IsSupported checks if a network is supported
func (r *Registry) IsSupported(network string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[network]
	return exists
}

// Unregister removes a provider
func (r *Registry) Unregister(network string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, network)
}

// SendResponse routes a host answer to the provider of network
func (r *Registry) SendResponse(network, id string, result any) error {
	provider, err := r.Get(network)
	if err != nil {
		return err
	}
	return provider.SendResponse(id, result)
}

// SendError routes a host rejection to the provider of network
func (r *Registry) SendError(network, id string, reason any) error {
	provider, err := r.Get(network)
	if err != nil {
		return err
	}
	return provider.SendError(id, reason)
}
