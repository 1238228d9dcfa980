package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/processing/tokens"
	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/registry"
	"github.com/relaymesh/gateway/pkg/router"
	"github.com/relaymesh/gateway/pkg/telemetry/metrics"
	"github.com/relaymesh/gateway/pkg/telemetry/tracing"
)

var instrumentationName = "github.com/relaymesh/gateway/pkg/orchestrator"

// Orchestrator is the Fallback Orchestrator.
type Orchestrator struct {
	health   health.Store
	registry registry.Store
	resolver Resolver
	estimate *usageEstimator
	audit    AttemptRecorder
	metrics  *metrics.Collector
	logger   *slog.Logger
	tracer   trace.Tracer

	quotaWindow string
}

// Config configures an Orchestrator.
type Config struct {
	QuotaWindow string // must match the window the router peeked against
	Estimator   tokens.Estimator

	// Recorder, if set, receives one AttemptRecord per candidate tried,
	// building a durable audit trail that preserves attempt order and
	// provider attribution. Nil disables audit recording.
	Recorder AttemptRecorder

	// Metrics, if set, receives per-attempt provider latency, error, and
	// request counters. Nil disables metrics collection.
	Metrics *metrics.Collector
}

// New creates an Orchestrator.
func New(hstore health.Store, reg registry.Store, resolver Resolver, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuotaWindow == "" {
		cfg.QuotaWindow = "1m"
	}
	return &Orchestrator{
		health:      hstore,
		registry:    reg,
		resolver:    resolver,
		estimate:    newUsageEstimator(cfg.Estimator),
		audit:       cfg.Recorder,
		metrics:     cfg.Metrics,
		logger:      logger.With("component", "orchestrator"),
		tracer:      otel.Tracer(instrumentationName),
		quotaWindow: cfg.QuotaWindow,
	}
}

// Dispatch drives req through candidates for a non-streaming request,
// returning the first successful response or AllCandidatesFailedError.
func (o *Orchestrator) Dispatch(ctx context.Context, candidates []router.Candidate, tenantID string, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	var details []AttemptError

	for position, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := o.attemptUnary(ctx, cand, position, tenantID, req)
		if err == nil {
			return resp, nil
		}

		details = append(details, AttemptError{ProviderID: cand.ProviderID, Err: err})
	}

	return nil, &AllCandidatesFailedError{Details: details}
}

func (o *Orchestrator) attemptUnary(ctx context.Context, cand router.Candidate, position int, tenantID string, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.attempt")
	defer span.End()
	tracing.SetProviderAttributes(span, cand.ProviderID, cand.ProviderModelID)
	tracing.SetRouteAttributes(span, position, cand.IsFree)

	requestTime := time.Now()

	if cand.RateLimitRPM > 0 {
		allowed, _, err := o.health.CheckQuota(ctx, cand.ProviderID, o.quotaWindow, int64(cand.RateLimitRPM), true)
		if err != nil {
			return nil, err
		}
		if !allowed {
			_ = o.health.RecordOutcome(ctx, cand.ProviderID, health.OutcomeRateLimit)
			err := &providers.RateLimitError{Provider: cand.ProviderID, Message: "quota exhausted before dispatch"}
			o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeRateLimit, providers.TokenUsage{}, 0, "", err)
			return nil, err
		}
	}

	adapter, err := o.resolver.Resolve(cand.ProviderID)
	if err != nil {
		o.recordAttempt(ctx, req, cand, position, requestTime, time.Since(requestTime), health.OutcomeTransportError, providers.TokenUsage{}, 0, "", err)
		return nil, err
	}

	o.logAttempt(cand.ProviderID, stateDispatching)
	providerStart := time.Now()
	resp, err := adapter.SendCompletion(ctx, req)
	providerLatency := time.Since(providerStart)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		outcome := classify(err)
		_ = o.health.RecordOutcome(ctx, cand.ProviderID, outcome)
		tracing.SetErrorAttributes(span, err, string(outcome))
		o.logAttempt(cand.ProviderID, stateAborted)
		o.recordAttempt(ctx, req, cand, position, requestTime, providerLatency, outcome, providers.TokenUsage{}, 0, "", err)
		return nil, err
	}

	o.logAttempt(cand.ProviderID, stateUnaryBody)
	if err := o.health.RecordOutcome(ctx, cand.ProviderID, health.OutcomeSuccess); err != nil {
		o.logger.Warn("record outcome failed", "provider", cand.ProviderID, "error", err)
	}
	o.logAttempt(cand.ProviderID, stateSuccess)

	usage := resp.Usage
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		if pt, ok := o.estimate.estimatePromptTokens(req); ok {
			usage.PromptTokens = pt
		}
		if ct, ok := o.estimate.estimateCompletionTokens(resp.Content, req.Model); ok {
			usage.CompletionTokens = ct
		}
	}

	cost := o.accrueBilling(ctx, tenantID, cand.GlobalModelID, usage)
	tracing.SetTokenAttributes(span, usage.PromptTokens, usage.CompletionTokens)
	o.recordAttempt(ctx, req, cand, position, requestTime, providerLatency, health.OutcomeSuccess, usage, cost, resp.FinishReason, nil)

	return resp, nil
}

func (o *Orchestrator) logAttempt(providerID string, s attemptState) {
	o.logger.Debug("attempt state transition", "provider", providerID, "state", s.String())
}

// accrueBilling charges usage against tenantID's monthly budget and
// returns the amount charged (0 if tenantID is empty, the model can't be
// resolved, or the computed amount is zero).
func (o *Orchestrator) accrueBilling(ctx context.Context, tenantID, globalModelID string, usage providers.TokenUsage) float64 {
	if tenantID == "" {
		return 0
	}

	g, _, err := o.registry.ResolveModel(ctx, globalModelID)
	if err != nil {
		o.logger.Warn("billing: resolve global model failed", "model", globalModelID, "error", err)
		return 0
	}

	amount := billingAmount(g.InputPricePerM, g.OutputPricePerM, usage)
	if amount == 0 {
		return 0
	}

	if err := o.registry.AccrueSpend(ctx, tenantID, globalModelID, amount); err != nil {
		o.logger.Warn("billing: accrue spend failed", "tenant", tenantID, "model", globalModelID, "error", err)
	}
	return amount
}
