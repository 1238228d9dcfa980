package providerfactory

import (
	"context"
	"fmt"

	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/registry/discovery"
)

// modelsListResponse mirrors the OpenAI-compatible GET /v1/models shape
// that most providers in this registry's catalog expose.
type modelsListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HTTPLister is a discovery.Lister that polls a provider's
// OpenAI-compatible /models listing endpoint. Canonicalization of the
// raw provider model id happens via the aliases map supplied at
// construction — an id with no alias entry is skipped, since the
// registry has no way to relate it to a GlobalModel.
type HTTPLister struct {
	providerID string
	baseURL    string
	http       *providers.HTTPProvider
	headers    map[string]string
	aliases    map[string]string // providerModelID -> canonical GlobalModel id
	rateLimit  int
}

// NewHTTPLister creates a Lister for the given provider config. aliases
// maps the raw ids the provider reports to the canonical model id they
// should be reconciled against; ids absent from the map are ignored.
func NewHTTPLister(cfg providers.ProviderConfig, aliases map[string]string, rateLimitRPM int) *HTTPLister {
	return &HTTPLister{
		providerID: cfg.Name,
		baseURL:    cfg.BaseURL,
		http:       providers.NewHTTPProvider(cfg),
		headers:    providers.ApplyCustomHeaders(map[string]string{"Authorization": "Bearer " + cfg.APIKey}, cfg),
		aliases:    aliases,
		rateLimit:  rateLimitRPM,
	}
}

// ProviderID implements discovery.Lister.
func (l *HTTPLister) ProviderID() string {
	return l.providerID
}

// ListModels implements discovery.Lister.
func (l *HTTPLister) ListModels(ctx context.Context) ([]discovery.DiscoveredModel, error) {
	var resp modelsListResponse
	url := l.baseURL + "/models"
	if err := l.http.DoJSONRequest(ctx, "GET", url, nil, &resp, l.headers); err != nil {
		return nil, fmt.Errorf("providerfactory: list models for %s: %w", l.providerID, err)
	}

	out := make([]discovery.DiscoveredModel, 0, len(resp.Data))
	for _, m := range resp.Data {
		canonical, ok := l.aliases[m.ID]
		if !ok {
			continue
		}
		out = append(out, discovery.DiscoveredModel{
			ProviderModelID: m.ID,
			CanonicalID:     canonical,
			RateLimitRPM:    l.rateLimit,
		})
	}
	return out, nil
}
