package promptcollapse

import (
	"strings"

	"github.com/relaymesh/gateway/pkg/providers"
)

// collapsePrompt concatenates messages into "role: content\n" lines, the
// only shape providers in this family accept.
func collapsePrompt(req *providers.CompletionRequest) string {
	var b strings.Builder
	for _, msg := range req.Messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func transformResponse(model, body string) *providers.CompletionResponse {
	return &providers.CompletionResponse{
		Model:        model,
		Content:      strings.TrimRight(body, "\n"),
		FinishReason: providers.FinishReasonStop,
		Metadata:     make(map[string]string),
	}
}
