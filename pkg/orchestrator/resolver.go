package orchestrator

import (
	"fmt"
	"sync"

	"github.com/relaymesh/gateway/pkg/providers"
)

// Resolver is the "factory keyed by provider id" the attempt protocol
// uses to turn a candidate's ProviderID into a live adapter instance.
type Resolver interface {
	Resolve(providerID string) (providers.Provider, error)
}

// StaticResolver is a Resolver backed by a fixed, pre-built map of
// provider id -> adapter instance, populated at startup from
// configuration via pkg/providerfactory.
type StaticResolver struct {
	mu        sync.RWMutex
	providers map[string]providers.Provider
}

// NewStaticResolver creates a resolver over the given provider instances.
func NewStaticResolver(instances map[string]providers.Provider) *StaticResolver {
	r := &StaticResolver{providers: make(map[string]providers.Provider, len(instances))}
	for id, p := range instances {
		r.providers[id] = p
	}
	return r
}

// Register adds or replaces a provider instance, letting callers extend
// the resolver after startup (e.g. a newly enabled provider).
func (r *StaticResolver) Register(providerID string, p providers.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[providerID] = p
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(providerID string) (providers.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	return p, nil
}
