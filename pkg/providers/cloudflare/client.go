package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/relaymesh/gateway/pkg/providers"
)

// Provider is the Cloudflare Workers AI provider adapter.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new Cloudflare provider instance. BaseURL is
// expected to already carry the account path, e.g.
// "https://api.cloudflare.com/client/v4/accounts/{account_id}/ai/run".
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "cloudflare",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base_url (including account id) is required for Cloudflare",
		}
	}

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Cloudflare",
		}
	}

	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	httpProvider := providers.NewHTTPProvider(config)
	p := &Provider{HTTPProvider: httpProvider}

	slog.Info("Cloudflare provider initialized", "provider", config.Name, "base_url", config.BaseURL)

	return p, nil
}

func (p *Provider) headers() map[string]string {
	return providers.ApplyCustomHeaders(map[string]string{
		"Authorization": "Bearer " + p.GetConfig().APIKey,
		"Content-Type":  "application/json",
	}, p.GetConfig())
}

// modelURL carries the provider-specific model id verbatim as a raw path
// segment (the id itself may contain slashes, e.g. "@cf/meta/llama-3").
func (p *Provider) modelURL(model string) string {
	return fmt.Sprintf("%s/%s", p.GetConfig().BaseURL, model)
}

// SendCompletion sends a unary /ai/run/{model} request.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cfReq := transformRequest(req)

	var cfResp CloudflareResponse
	if err := p.DoJSONRequest(ctx, "POST", p.modelURL(req.Model), cfReq, &cfResp, p.headers()); err != nil {
		return nil, err
	}

	if !cfResp.Success {
		msg := "cloudflare request failed"
		if len(cfResp.Errors) > 0 {
			msg = cfResp.Errors[0].Message
		}
		return nil, &providers.ProviderError{Provider: p.GetName(), Message: msg}
	}

	resp, err := transformResponse(&cfResp, req.Model)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.GetName(), Cause: err}
	}

	slog.Debug("completion request succeeded", "provider", p.GetName(), "model", resp.Model)

	return resp, nil
}

// StreamCompletion sends a streaming /ai/run/{model} request.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cfReq := transformRequest(req)
	cfReq.Stream = true

	body, err := json.Marshal(cfReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, p.HTTPProvider, req.Model, p.modelURL(req.Model), body, headers)
	if err != nil {
		return nil, err
	}

	return providers.ForwardStream(ctx, stream, req.Model, false), nil
}

func validateRequest(req *providers.CompletionRequest) error {
	if req == nil {
		return &providers.ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &providers.ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &providers.ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}
