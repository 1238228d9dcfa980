package cohere

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaymesh/gateway/pkg/providers"
)

// Provider is the Cohere provider adapter, implementing providers.Provider
// against Cohere's v2 chat API.
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new Cohere provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "cohere",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://api.cohere.com"
	}

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Cohere",
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

	slog.Info("Cohere provider initialized", "provider", config.Name, "base_url", config.BaseURL)

	return p, nil
}

func (p *Provider) headers() map[string]string {
	return providers.ApplyCustomHeaders(map[string]string{
		"Authorization": "Bearer " + p.GetConfig().APIKey,
		"Content-Type":  "application/json",
	}, p.GetConfig())
}

// SendCompletion sends a unary v2/chat request.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cohereReq := transformRequest(req)

	url := fmt.Sprintf("%s/v2/chat", p.GetConfig().BaseURL)

	var cohereResp CohereResponse
	if err := p.DoJSONRequest(ctx, "POST", url, cohereReq, &cohereResp, p.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&cohereResp)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.GetName(), Cause: err}
	}
	resp.Model = req.Model

	slog.Debug("completion request succeeded", "provider", p.GetName(), "model", resp.Model)

	return resp, nil
}

// StreamCompletion sends a streaming v2/chat request.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	cohereReq := transformRequest(req)
	cohereReq.Stream = true

	url := fmt.Sprintf("%s/v2/chat", p.GetConfig().BaseURL)
	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, p.HTTPProvider, url, cohereReq, headers)
	if err != nil {
		return nil, err
	}

	return providers.ForwardStream(ctx, stream, req.Model, true), nil
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
