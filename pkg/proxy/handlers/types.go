package handlers

import (
	"context"

	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/router"
)

// ProviderManager is the interface for managing LLM providers, used by
// the liveness/readiness/provider-health endpoints that report on raw
// provider connectivity independent of routing.
type ProviderManager interface {
	GetProvider(name string) (providers.Provider, error)
	GetHealthyProviders() map[string]providers.Provider
	Close() error
}

// Engine is the dispatch surface the chat handler drives: resolve a
// requested model into routing candidates, then dispatch a request
// through them via the Fallback Orchestrator.
type Engine interface {
	GetCandidates(ctx context.Context, requestedModel, tenantID, preferredProvider string) ([]router.Candidate, error)
	Dispatch(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (*providers.CompletionResponse, error)
	DispatchStream(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error)
}
