package orchestrator

import (
	"github.com/relaymesh/gateway/pkg/processing/tokens"
	"github.com/relaymesh/gateway/pkg/providers"
	prototypes "github.com/relaymesh/gateway/pkg/proxy/types"
)

// usageEstimator falls back to a local character-based estimate when an
// adapter's response carries no usage block. With no estimator wired,
// usage stays unknown rather than being guessed at zero.
type usageEstimator struct {
	estimator tokens.Estimator
}

func newUsageEstimator(est tokens.Estimator) *usageEstimator {
	return &usageEstimator{estimator: est}
}

// estimatePromptTokens estimates prompt tokens for req when the upstream
// response omitted usage. Returns (0, false) if no estimator is wired.
func (u *usageEstimator) estimatePromptTokens(req *providers.CompletionRequest) (int, bool) {
	if u == nil || u.estimator == nil {
		return 0, false
	}
	msgs := make([]prototypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, prototypes.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	n, err := u.estimator.EstimateMessages(msgs, req.Model)
	if err != nil {
		return 0, false
	}
	return n, true
}

// estimateCompletionTokens estimates completion tokens for generated text
// when the upstream response omitted usage.
func (u *usageEstimator) estimateCompletionTokens(content, model string) (int, bool) {
	if u == nil || u.estimator == nil {
		return 0, false
	}
	n, err := u.estimator.EstimateText(content, model)
	if err != nil {
		return 0, false
	}
	return n, true
}

// billingAmount computes input-price*input-tokens + output-price*output-tokens,
// with prices expressed per million tokens.
func billingAmount(inputPricePerM, outputPricePerM float64, usage providers.TokenUsage) float64 {
	return (inputPricePerM/1_000_000)*float64(usage.PromptTokens) + (outputPricePerM/1_000_000)*float64(usage.CompletionTokens)
}
