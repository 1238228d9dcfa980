package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/relaymesh/gateway/pkg/evidence/recorder"
	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/router"
)

// AttemptRecorder persists an audit trail of orchestrator attempts,
// one record per candidate tried. *recorder.Recorder satisfies this;
// nil disables audit recording entirely.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a recorder.AttemptRecord) error
}

// requestMetadata keys the orchestrator reads off CompletionRequest.Metadata
// to attribute an audit record without threading extra parameters through
// every call site. Set by the HTTP handler layer from the request context.
const (
	metaRequestID = "request_id"
	metaUserID    = "user_id"
	metaAPIKey    = "api_key"
)

// recordAttempt reports one candidate attempt to both the evidence audit
// trail and the metrics collector; either sink is skipped when unconfigured.
func (o *Orchestrator) recordAttempt(ctx context.Context, req *providers.CompletionRequest, cand router.Candidate, position int, requestTime time.Time, providerLatency time.Duration, outcome health.Outcome, usage providers.TokenUsage, cost float64, finishReason string, attemptErr error) {
	o.recordMetrics(cand, outcome, providerLatency, time.Since(requestTime), usage, cost, attemptErr)

	if o.audit == nil {
		return
	}

	a := recorder.AttemptRecord{
		RequestID:         req.Metadata[metaRequestID],
		RequestTime:       requestTime,
		Model:             req.Model,
		Provider:          cand.ProviderID,
		ProviderModel:     cand.ProviderModelID,
		CandidatePosition: position,
		RequestHash:       promptHash(req),
		Outcome:           string(outcome),
		PromptTokens:      usage.PromptTokens,
		CompletionTokens:  usage.CompletionTokens,
		Cost:              cost,
		FinishReason:      finishReason,
		ProviderLatency:   providerLatency,
		UserID:            req.Metadata[metaUserID],
		APIKey:            req.Metadata[metaAPIKey],
	}
	if attemptErr != nil {
		a.Error = attemptErr.Error()
	}

	if err := o.audit.RecordAttempt(ctx, a); err != nil {
		o.logger.Warn("attempt audit record dropped", "provider", cand.ProviderID, "error", err)
	}
}

// promptHash fingerprints the request's message content so audit records
// for the same request across candidates can be correlated and verified.
func promptHash(req *providers.CompletionRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return recorder.HashString(b.String())
}

// recordMetrics is a no-op when o.metrics is nil.
func (o *Orchestrator) recordMetrics(cand router.Candidate, outcome health.Outcome, providerLatency, totalDuration time.Duration, usage providers.TokenUsage, cost float64, attemptErr error) {
	if o.metrics == nil {
		return
	}

	status := "success"
	if attemptErr != nil {
		status = "error"
		if outcome == health.OutcomeRateLimit {
			status = "blocked"
		}
		o.metrics.RecordProviderError(cand.ProviderID, string(outcome))
	}

	o.metrics.RecordProviderLatency(cand.ProviderID, cand.ProviderModelID, providerLatency.Seconds())
	o.metrics.UpdateProviderHealth(cand.ProviderID, outcome == health.OutcomeSuccess)
	o.metrics.RecordRequest(cand.ProviderID, cand.ProviderModelID, status, totalDuration, usage.PromptTokens+usage.CompletionTokens, cost)
}
