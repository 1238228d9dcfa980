package promptcollapse

import (
	"context"
	"io"
	"log/slog"

	"github.com/relaymesh/gateway/pkg/providers"
)

// Provider is the prompt-collapse adapter for providers that only accept a
// single plain-text prompt (no chat message structure, no JSON envelope).
type Provider struct {
	*providers.HTTPProvider
}

// NewProvider creates a new prompt-collapse provider instance.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "promptcollapse",
			Field:    "name",
			Message:  "provider name is required",
		}
	}

	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base_url is required",
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

	slog.Info("prompt-collapse provider initialized", "provider", config.Name, "base_url", config.BaseURL)

	return p, nil
}

func (p *Provider) headers() map[string]string {
	headers := map[string]string{"Content-Type": "text/plain"}
	if p.GetConfig().APIKey != "" {
		headers["Authorization"] = "Bearer " + p.GetConfig().APIKey
	}
	return providers.ApplyCustomHeaders(headers, p.GetConfig())
}

// SendCompletion posts the collapsed prompt and returns the raw text body.
func (p *Provider) SendCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	prompt := collapsePrompt(req)

	resp, err := p.DoRequest(ctx, "POST", p.GetConfig().BaseURL, []byte(prompt), p.headers())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.GetName(), Cause: err}
	}

	result := transformResponse(req.Model, string(body))

	slog.Debug("completion request succeeded", "provider", p.GetName(), "model", result.Model)

	return result, nil
}

// StreamCompletion posts the collapsed prompt and streams raw text lines.
func (p *Provider) StreamCompletion(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	prompt := collapsePrompt(req)

	stream, err := newStreamReader(ctx, p.HTTPProvider, req.Model, p.GetConfig().BaseURL, []byte(prompt), p.headers())
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
