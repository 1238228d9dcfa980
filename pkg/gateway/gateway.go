// Package gateway composes the Smart Router and Fallback Orchestrator
// into the single dispatch surface the HTTP handlers call: resolve a
// requested model into candidates, then drive a request through them.
package gateway

import (
	"context"

	"github.com/relaymesh/gateway/pkg/orchestrator"
	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/router"
)

// Gateway pairs a Router with the Orchestrator that dispatches against
// its candidate lists.
type Gateway struct {
	Router       *router.Router
	Orchestrator *orchestrator.Orchestrator
}

// New composes r and o into a Gateway.
func New(r *router.Router, o *orchestrator.Orchestrator) *Gateway {
	return &Gateway{Router: r, Orchestrator: o}
}

// GetCandidates resolves requestedModel into an ordered candidate list.
func (g *Gateway) GetCandidates(ctx context.Context, requestedModel, tenantID, preferredProvider string) ([]router.Candidate, error) {
	return g.Router.GetCandidates(ctx, requestedModel, tenantID, preferredProvider)
}

// Dispatch drives req through candidates for a non-streaming request.
func (g *Gateway) Dispatch(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return g.Orchestrator.Dispatch(ctx, candidates, tenantID, req)
}

// DispatchStream drives req through candidates for a streaming request.
func (g *Gateway) DispatchStream(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	return g.Orchestrator.DispatchStream(ctx, candidates, tenantID, req)
}
