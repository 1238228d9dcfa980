package google

import (
	"fmt"

	"github.com/relaymesh/gateway/pkg/providers"
)

// GoogleRequest represents a generateContent request body.
type GoogleRequest struct {
	Contents          []GoogleContent   `json:"contents"`
	SystemInstruction *GoogleContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

// GoogleContent is one turn of conversation.
type GoogleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GooglePart `json:"parts"`
}

// GooglePart is a single content part. Only text parts are supported by
// this adapter; the Google wire format also supports inlineData for
// vision input, which is out of scope here.
type GooglePart struct {
	Text string `json:"text,omitempty"`
}

// GenerationConfig carries sampling parameters.
type GenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// GoogleResponse represents a generateContent response body.
type GoogleResponse struct {
	Candidates    []GoogleCandidate    `json:"candidates"`
	UsageMetadata *GoogleUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
}

// GoogleCandidate is one generated candidate.
type GoogleCandidate struct {
	Content      GoogleContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GoogleUsageMetadata carries token accounting.
type GoogleUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GoogleStreamEnvelope wraps each SSE frame under ?alt=sse.
type GoogleStreamEnvelope struct {
	Response GoogleResponse `json:"response"`
}

// transformRequest hoists system messages into systemInstruction and maps
// user/assistant roles to user/model.
func transformRequest(req *providers.CompletionRequest) (*GoogleRequest, error) {
	out := &GoogleRequest{}

	var systemParts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case providers.RoleUser:
			out.Contents = append(out.Contents, GoogleContent{Role: "user", Parts: []GooglePart{{Text: msg.Content}}})
		case providers.RoleAssistant:
			out.Contents = append(out.Contents, GoogleContent{Role: "model", Parts: []GooglePart{{Text: msg.Content}}})
		case providers.RoleTool:
			return nil, &providers.ValidationError{
				Field:   "messages",
				Message: "google adapter cannot represent tool-role messages",
			}
		default:
			return nil, &providers.ValidationError{
				Field:   "messages",
				Message: fmt.Sprintf("unsupported message role %q for google adapter", msg.Role),
			}
		}
	}

	if len(systemParts) > 0 {
		combined := ""
		for i, p := range systemParts {
			if i > 0 {
				combined += "\n"
			}
			combined += p
		}
		out.SystemInstruction = &GoogleContent{Parts: []GooglePart{{Text: combined}}}
	}

	cfg := &GenerationConfig{
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	out.GenerationConfig = cfg

	return out, nil
}

// transformResponse converts a unary GoogleResponse to the canonical shape.
func transformResponse(resp *GoogleResponse, model string) (*providers.CompletionResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	cand := resp.Candidates[0]
	result := &providers.CompletionResponse{
		Model:        model,
		Content:      joinParts(cand.Content.Parts),
		FinishReason: normalizeFinishReason(cand.FinishReason),
		Metadata:     make(map[string]string),
	}

	if resp.UsageMetadata != nil {
		result.Usage = providers.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return result, nil
}

// transformStreamChunk extracts a StreamChunk from one SSE frame's wrapped
// {response:{candidates:[...]}} envelope.
func transformStreamChunk(env *GoogleStreamEnvelope, model string) (*providers.StreamChunk, error) {
	if len(env.Response.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in stream frame")
	}

	cand := env.Response.Candidates[0]
	chunk := &providers.StreamChunk{
		Model:        model,
		Delta:        joinParts(cand.Content.Parts),
		FinishReason: normalizeFinishReason(cand.FinishReason),
	}

	if env.Response.UsageMetadata != nil {
		chunk.Usage = &providers.TokenUsage{
			PromptTokens:     env.Response.UsageMetadata.PromptTokenCount,
			CompletionTokens: env.Response.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      env.Response.UsageMetadata.TotalTokenCount,
		}
	}

	return chunk, nil
}

func joinParts(parts []GooglePart) string {
	out := ""
	for _, p := range parts {
		out += p.Text
	}
	return out
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return providers.FinishReasonStop
	case "MAX_TOKENS":
		return providers.FinishReasonLength
	case "SAFETY", "RECITATION":
		return providers.FinishReasonContentFilter
	case "":
		return ""
	default:
		return reason
	}
}
