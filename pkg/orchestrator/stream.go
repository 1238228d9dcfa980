package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/router"
	"github.com/relaymesh/gateway/pkg/telemetry/tracing"
)

// DispatchStream drives req through candidates for a streaming request.
// Rotation across candidates is permitted only before the first chunk is
// forwarded to the caller (the streaming hand-off commitment rule);
// once committed, any later upstream error is surfaced on the returned
// channel as a stream abort rather than triggering a retry.
func (o *Orchestrator) DispatchStream(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	var details []AttemptError

	for position, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, committed, err := o.attemptStream(ctx, cand, position, tenantID, req)
		if committed {
			return out, nil
		}

		details = append(details, AttemptError{ProviderID: cand.ProviderID, Err: err})
	}

	return nil, &AllCandidatesFailedError{Details: details}
}

// attemptStream returns (channel, true, nil) once committed to this
// candidate. A (nil, false, err) result means the caller should rotate to
// the next candidate.
func (o *Orchestrator) attemptStream(ctx context.Context, cand router.Candidate, position int, tenantID string, req *providers.CompletionRequest) (<-chan *providers.StreamChunk, bool, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.attempt_stream")
	tracing.SetProviderAttributes(span, cand.ProviderID, cand.ProviderModelID)
	tracing.SetRouteAttributes(span, position, cand.IsFree)

	requestTime := time.Now()

	if cand.RateLimitRPM > 0 {
		allowed, _, err := o.health.CheckQuota(ctx, cand.ProviderID, o.quotaWindow, int64(cand.RateLimitRPM), true)
		if err != nil {
			span.End()
			return nil, false, err
		}
		if !allowed {
			_ = o.health.RecordOutcome(ctx, cand.ProviderID, health.OutcomeRateLimit)
			span.End()
			err := &providers.RateLimitError{Provider: cand.ProviderID, Message: "quota exhausted before dispatch"}
			o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeRateLimit, providers.TokenUsage{}, 0, "", err)
			return nil, false, err
		}
	}

	adapter, err := o.resolver.Resolve(cand.ProviderID)
	if err != nil {
		span.End()
		o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeTransportError, providers.TokenUsage{}, 0, "", err)
		return nil, false, err
	}

	o.logAttempt(cand.ProviderID, stateDispatching)
	inner, err := adapter.StreamCompletion(ctx, req)
	if err != nil {
		outcome := classify(err)
		_ = o.health.RecordOutcome(ctx, cand.ProviderID, outcome)
		tracing.SetErrorAttributes(span, err, string(outcome))
		o.logAttempt(cand.ProviderID, stateAborted)
		span.End()
		o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), outcome, providers.TokenUsage{}, 0, "", err)
		return nil, false, err
	}

	first, ok := <-inner
	if !ok {
		// Stream closed with no chunks at all; treat as a pre-header
		// transport failure so the next candidate still gets a chance.
		err := &providers.StreamError{Provider: cand.ProviderID, Message: "stream closed before any chunk"}
		_ = o.health.RecordOutcome(ctx, cand.ProviderID, health.OutcomeTransportError)
		span.End()
		o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeTransportError, providers.TokenUsage{}, 0, "", err)
		return nil, false, err
	}

	if first.Error != nil {
		// Zero chunks have been forwarded to the caller, so this failure
		// is still pre-commitment no matter where the upstream died
		// (even between headers and the first SSE line); rotate.
		outcome := classify(first.Error)
		_ = o.health.RecordOutcome(ctx, cand.ProviderID, outcome)
		tracing.SetErrorAttributes(span, first.Error, string(outcome))
		o.logAttempt(cand.ProviderID, stateAborted)
		span.End()
		o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), outcome, providers.TokenUsage{}, 0, "", first.Error)
		return nil, false, first.Error
	}

	// Committed: headers/first token received. No further rotation.
	o.logAttempt(cand.ProviderID, stateCommitted)
	if err := o.health.RecordOutcome(ctx, cand.ProviderID, health.OutcomeSuccess); err != nil {
		o.logger.Warn("record outcome failed", "provider", cand.ProviderID, "error", err)
	}
	o.logAttempt(cand.ProviderID, stateStreaming)

	out := make(chan *providers.StreamChunk)
	go o.relayCommitted(ctx, span, cand, position, tenantID, req, requestTime, inner, first, out)

	return out, true, nil
}

// relayCommitted forwards a committed stream to the caller, accumulating
// content for billing estimation and tracking the final usage block if
// the provider supplied one.
func (o *Orchestrator) relayCommitted(ctx context.Context, span trace.Span, cand router.Candidate, position int, tenantID string, req *providers.CompletionRequest, requestTime time.Time, inner <-chan *providers.StreamChunk, first *providers.StreamChunk, out chan<- *providers.StreamChunk) {
	defer close(out)
	defer span.End()

	var content strings.Builder
	var usage providers.TokenUsage
	var sawUsage bool
	finishReason := ""

	forward := func(c *providers.StreamChunk) bool {
		if c.Delta != "" {
			content.WriteString(c.Delta)
		}
		if c.Usage != nil {
			usage = *c.Usage
			sawUsage = true
		}
		if c.FinishReason != "" {
			finishReason = c.FinishReason
		}
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !forward(first) {
		return
	}

	for c := range inner {
		if !forward(c) {
			return
		}
		if c.Error != nil {
			// Post-commitment error: surfaced to caller as a stream
			// abort per the hand-off rule, no rotation and no health
			// penalty (the attempt already succeeded at commitment).
			o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeTransportError, usage, 0, finishReason, c.Error)
			return
		}
	}

	if !sawUsage {
		if pt, ok := o.estimate.estimatePromptTokens(req); ok {
			usage.PromptTokens = pt
		}
		if ct, ok := o.estimate.estimateCompletionTokens(content.String(), req.Model); ok {
			usage.CompletionTokens = ct
		}
	}

	cost := o.accrueBilling(ctx, tenantID, cand.GlobalModelID, usage)
	o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeSuccess, usage, cost, finishReason, nil)
}
