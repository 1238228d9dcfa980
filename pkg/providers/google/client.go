package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/relaymesh/gateway/pkg/providers"
)

// Provider is the Google provider adapter. It implements the
// providers.Provider interface for Google's generateContent API
// (Gemini family).
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new Google provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "google",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Google",
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

	slog.Info("Google provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)

	return p, nil
}

func (p *Provider) headers() map[string]string {
	return providers.ApplyCustomHeaders(map[string]string{
		"x-goog-api-key": p.GetConfig().APIKey,
		"Content-Type":   "application/json",
	}, p.GetConfig())
}

// SendCompletion sends a unary generateContent request.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	googleReq, err := transformRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.GetConfig().BaseURL, req.Model)

	var googleResp GoogleResponse
	if err := p.DoJSONRequest(ctx, "POST", url, googleReq, &googleResp, p.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&googleResp, req.Model)
	if err != nil {
		return nil, &providers.ParseError{
			Provider: p.GetName(),
			Cause:    err,
		}
	}

	slog.Debug("completion request succeeded",
		"provider", p.GetName(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return resp, nil
}

// StreamCompletion sends a streaming generateContent?alt=sse request.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	googleReq, err := transformRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(googleReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.GetConfig().BaseURL, req.Model)
	headers := p.headers()
	headers["Accept"] = "text/event-stream"

	stream, err := newStreamReader(ctx, p.HTTPProvider, req.Model, url, body, headers)
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
