package providers

import (
	"context"
	"log/slog"
	"time"
)

// StartHealthChecker starts a background goroutine that periodically
// probes the upstream and updates this instance's health counters.
//
// This per-process probe feeds the readiness endpoints only; routing
// decisions consult the shared Health & Quota Store's circuit breaker,
// which every gateway instance updates from real request outcomes.
//
// The health checker runs until the provider is closed or the context is
// cancelled. It implements exponential backoff when the provider is
// unhealthy to reduce load.
func (p *HTTPProvider) StartHealthChecker(ctx context.Context) {
	go p.runHealthChecker(ctx)
}

// runHealthChecker is the main health checking loop.
func (p *HTTPProvider) runHealthChecker(ctx context.Context) {
	defer close(p.healthCheckStopped)

	interval := p.config.HealthCheckInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("health checker started",
		"provider", p.config.Name,
		"interval", interval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("health checker stopped (context cancelled)", "provider", p.config.Name)
			return

		case <-p.stopHealthCheck:
			slog.Debug("health checker stopped (provider closed)", "provider", p.config.Name)
			return

		case <-ticker.C:
			p.performHealthCheck(ctx)

			if !p.IsHealthy() {
				health := p.GetHealth()
				backoffInterval := calculateBackoff(health.ConsecutiveFailures, interval)
				ticker.Reset(backoffInterval)

				slog.Debug("health check backoff",
					"provider", p.config.Name,
					"consecutive_failures", health.ConsecutiveFailures,
					"next_check_in", backoffInterval,
				)
			} else {
				ticker.Reset(interval)
			}
		}
	}
}

// performHealthCheck executes a single health check.
func (p *HTTPProvider) performHealthCheck(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := p.healthCheckImpl(checkCtx)
	latency := time.Since(start)

	if err != nil {
		p.updateHealth(false, err)
		slog.Error("health check failed",
			"provider", p.config.Name,
			"error", err,
			"latency", latency,
		)
	} else {
		p.updateHealth(true, nil)
		slog.Debug("health check passed",
			"provider", p.config.Name,
			"latency", latency,
		)

		// Log when provider recovers from unhealthy state
		health := p.GetHealth()
		if health.ConsecutiveFailures > 0 {
			slog.Info("provider marked healthy",
				"provider", p.config.Name,
				"previous_failures", health.ConsecutiveFailures,
			)
		}
	}
}

// healthCheckImpl is a lightweight reachability probe against the
// provider's base URL. It does not exercise the chat-completion path, so a
// passing probe means the upstream is reachable, not that it will serve a
// real request.
func (p *HTTPProvider) healthCheckImpl(ctx context.Context) error {
	headers := make(map[string]string)
	if p.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.config.APIKey
	}

	resp, err := p.DoRequest(ctx, "GET", p.config.BaseURL, nil, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return nil
}

// calculateBackoff doubles baseInterval per consecutive failure, capped at
// 10x the base and 5 minutes absolute.
func calculateBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 1 << uint(consecutiveFailures)
	if multiplier > 10 {
		multiplier = 10
	}

	backoff := baseInterval * time.Duration(multiplier)

	const maxBackoff = 5 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	return backoff
}

// HealthCheck performs a synchronous health check (part of Provider interface).
// This is called on-demand, while StartHealthChecker runs periodic checks.
func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	return p.healthCheckImpl(ctx)
}
