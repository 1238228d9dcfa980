package cloudflare

import (
	"github.com/relaymesh/gateway/pkg/providers"
)

// CloudflareRequest represents a Workers AI /ai/run/{model} request body.
type CloudflareRequest struct {
	Messages    []CloudflareMessage `json:"messages"`
	Temperature float64             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

// CloudflareMessage mirrors the role-for-role chat shape Workers AI expects.
type CloudflareMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CloudflareResponse wraps the unary result envelope.
type CloudflareResponse struct {
	Result  CloudflareResult  `json:"result"`
	Success bool              `json:"success"`
	Errors  []CloudflareError `json:"errors,omitempty"`
}

// CloudflareResult carries the generated text and, when present, usage.
type CloudflareResult struct {
	Response string           `json:"response"`
	Usage    *CloudflareUsage `json:"usage,omitempty"`
}

// CloudflareUsage carries token accounting when Workers AI supplies it.
type CloudflareUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CloudflareError is one entry of the API's error envelope.
type CloudflareError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CloudflareStreamFrame is one data: {...} line of a streaming response.
type CloudflareStreamFrame struct {
	Response string `json:"response"`
}

func transformRequest(req *providers.CompletionRequest) *CloudflareRequest {
	out := &CloudflareRequest{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages:    make([]CloudflareMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		out.Messages[i] = CloudflareMessage{Role: msg.Role, Content: msg.Content}
	}

	return out
}

func transformResponse(resp *CloudflareResponse, model string) (*providers.CompletionResponse, error) {
	result := &providers.CompletionResponse{
		Model:        model,
		Content:      resp.Result.Response,
		FinishReason: providers.FinishReasonStop,
		Metadata:     make(map[string]string),
	}

	if resp.Result.Usage != nil {
		result.Usage = providers.TokenUsage{
			PromptTokens:     resp.Result.Usage.PromptTokens,
			CompletionTokens: resp.Result.Usage.CompletionTokens,
			TotalTokens:      resp.Result.Usage.TotalTokens,
		}
	}

	return result, nil
}
