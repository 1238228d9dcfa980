package cohere

import (
	"github.com/relaymesh/gateway/pkg/providers"
)

// CohereRequest represents a v2/chat request body.
type CohereRequest struct {
	Model         string          `json:"model"`
	Messages      []CohereMessage `json:"messages"`
	Temperature   float64         `json:"temperature,omitempty"`
	P             float64         `json:"p,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

// CohereMessage is a single role-for-role message.
type CohereMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CohereResponse represents a unary v2/chat response.
type CohereResponse struct {
	ID           string        `json:"id"`
	Message      CohereRespMsg `json:"message"`
	FinishReason string        `json:"finish_reason"`
	Usage        *CohereUsage  `json:"usage,omitempty"`
}

// CohereRespMsg carries the generated content blocks.
type CohereRespMsg struct {
	Role    string        `json:"role"`
	Content []CohereBlock `json:"content"`
}

// CohereBlock is one content block (Cohere's v2 content is an array of
// typed blocks; this adapter only extracts "text" blocks).
type CohereBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CohereUsage carries token accounting, nested under billed_units.
type CohereUsage struct {
	BilledUnits CohereBilledUnits `json:"billed_units"`
}

// CohereBilledUnits is Cohere's token accounting shape.
type CohereBilledUnits struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}

// Named SSE event payloads for the streaming API.

// ContentDeltaEvent is the content-delta named SSE event.
type ContentDeltaEvent struct {
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"delta"`
}

// MessageEndEvent is the message-end named SSE event.
type MessageEndEvent struct {
	Delta struct {
		FinishReason string       `json:"finish_reason"`
		Usage        *CohereUsage `json:"usage,omitempty"`
	} `json:"delta"`
}

// transformRequest maps messages role-for-role onto Cohere's chat schema.
func transformRequest(req *providers.CompletionRequest) *CohereRequest {
	out := &CohereRequest{
		Model:         req.Model,
		Temperature:   req.Temperature,
		P:             req.TopP,
		MaxTokens:     req.MaxTokens,
		StopSequences: req.Stop,
		Messages:      make([]CohereMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		out.Messages[i] = CohereMessage{Role: msg.Role, Content: msg.Content}
	}

	return out
}

func transformResponse(resp *CohereResponse) (*providers.CompletionResponse, error) {
	result := &providers.CompletionResponse{
		ID:           resp.ID,
		Content:      joinBlocks(resp.Message.Content),
		FinishReason: normalizeFinishReason(resp.FinishReason),
		Metadata:     make(map[string]string),
	}

	if resp.Usage != nil {
		result.Usage = usageFromBilledUnits(resp.Usage.BilledUnits)
	}

	return result, nil
}

func joinBlocks(blocks []CohereBlock) string {
	out := ""
	for _, b := range blocks {
		if b.Type == "text" || b.Type == "" {
			out += b.Text
		}
	}
	return out
}

func usageFromBilledUnits(u CohereBilledUnits) providers.TokenUsage {
	in := int(u.InputTokens)
	out := int(u.OutputTokens)
	return providers.TokenUsage{
		PromptTokens:     in,
		CompletionTokens: out,
		TotalTokens:      in + out,
	}
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "COMPLETE":
		return providers.FinishReasonStop
	case "MAX_TOKENS":
		return providers.FinishReasonLength
	case "TOOL_CALL":
		return providers.FinishReasonToolCalls
	case "":
		return ""
	default:
		return reason
	}
}
