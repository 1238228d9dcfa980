package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/registry"
	"github.com/relaymesh/gateway/pkg/telemetry/metrics"
)

// Config configures a Router instance.
type Config struct {
	Weights Weights

	// CanonicalAliases maps a semantic alias name to an ordered list of
	// canonical model ids. Aliases never resolve to other aliases.
	CanonicalAliases map[string][]string

	// StalenessHorizon forces a ProviderModel unavailable on read once
	// time.Since(LastSeen) exceeds it. Zero disables the check.
	StalenessHorizon time.Duration

	// QuotaWindow is the window key passed to CheckQuota (e.g. "1m").
	QuotaWindow string

	// MaxObservedLatencyMS normalizes P95LatencyMS into [0,1]; latencies
	// at or above this are scored as the worst.
	MaxObservedLatencyMS float64

	// FreeProviders forces every candidate from these provider ids into
	// the free tier regardless of the registry's price fields.
	FreeProviders map[string]bool

	// Metrics, if set, receives candidate counts, decision outcomes, and
	// circuit state observed while scoring candidates. Nil disables it.
	Metrics *metrics.Collector
}

// DefaultConfig returns sane defaults for a single-tenant deployment.
func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		CanonicalAliases:     map[string][]string{},
		StalenessHorizon:     30 * time.Minute,
		QuotaWindow:          "1m",
		MaxObservedLatencyMS: 10000,
	}
}

// Router is the Smart Router.
type Router struct {
	registry registry.Store
	health   health.Store
	cfg      Config
	logger   *slog.Logger
}

// New creates a Router backed by the given registry and health stores.
func New(reg registry.Store, hstore health.Store, cfg Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuotaWindow == "" {
		cfg.QuotaWindow = "1m"
	}
	if cfg.MaxObservedLatencyMS == 0 {
		cfg.MaxObservedLatencyMS = 10000
	}
	return &Router{registry: reg, health: hstore, cfg: cfg, logger: logger.With("component", "router")}
}

type candidateRecord struct {
	pm            registry.ProviderModel
	global        registry.GlobalModel
	aliasPosition int
}

// GetCandidates resolves requestedModel (direct or semantic alias) to a
// scored, filtered, tenant-budget-checked list of ordered candidates.
func (r *Router) GetCandidates(ctx context.Context, requestedModel, tenantID, preferredProvider string) ([]Candidate, error) {
	records, err := r.resolve(ctx, requestedModel)
	if err != nil {
		r.recordDecision(requestedModel, "no_candidates", 0)
		return nil, err
	}

	if tenantID != "" {
		for _, rec := range records {
			budget, err := r.registry.GetTenantBudget(ctx, tenantID, rec.global.ID)
			if err != nil {
				return nil, fmt.Errorf("router: GetTenantBudget: %w", err)
			}
			if budget != nil && budget.ExceedsBudget() {
				r.recordDecision(requestedModel, "budget_exceeded", 0)
				return nil, ErrBudgetExceeded
			}
		}
	}

	filtered := make([]candidateRecord, 0, len(records))
	for _, rec := range records {
		if !r.passesFilter(ctx, rec) {
			continue
		}
		filtered = append(filtered, rec)
	}

	candidates := make([]Candidate, 0, len(filtered))
	for _, rec := range filtered {
		isFree := rec.global.IsFree() || r.cfg.FreeProviders[rec.pm.ProviderID]
		candidates = append(candidates, Candidate{
			ProviderID:      rec.pm.ProviderID,
			ProviderModelID: rec.pm.ProviderModelID,
			GlobalModelID:   rec.global.ID,
			IsFree:          isFree,
			AliasPosition:   rec.aliasPosition,
			Score:           r.score(ctx, rec, isFree),
			RateLimitRPM:    rec.pm.RateLimitRPM,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		aPreferred := preferredProvider != "" && a.ProviderID == preferredProvider
		bPreferred := preferredProvider != "" && b.ProviderID == preferredProvider
		if aPreferred != bPreferred {
			return aPreferred
		}

		if a.IsFree != b.IsFree {
			return a.IsFree
		}

		if a.AliasPosition != b.AliasPosition {
			return a.AliasPosition < b.AliasPosition
		}

		if a.Score != b.Score {
			return a.Score > b.Score
		}

		return a.ProviderID < b.ProviderID
	})

	r.recordDecision(requestedModel, "ok", len(candidates))
	return candidates, nil
}

// recordDecision is a no-op when r.cfg.Metrics is nil.
func (r *Router) recordDecision(requestedModel, outcome string, count int) {
	if r.cfg.Metrics == nil {
		return
	}
	r.cfg.Metrics.RecordRouterDecision(requestedModel, outcome, count)
}

// resolve expands requestedModel, handling the semantic-alias case by
// tagging every provider record with the alias position of its canonical
// id in the alias's configured order.
func (r *Router) resolve(ctx context.Context, requestedModel string) ([]candidateRecord, error) {
	if aliasTargets, ok := r.cfg.CanonicalAliases[requestedModel]; ok {
		var out []candidateRecord
		for pos, canonicalID := range aliasTargets {
			g, pms, err := r.registry.ResolveModel(ctx, canonicalID)
			if err != nil {
				if err == registry.ErrModelNotFound {
					continue
				}
				return nil, fmt.Errorf("router: resolve alias member %q: %w", canonicalID, err)
			}
			for _, pm := range pms {
				out = append(out, candidateRecord{pm: pm, global: g, aliasPosition: pos})
			}
		}
		if len(out) == 0 {
			return nil, ErrModelNotFound
		}
		return out, nil
	}

	g, pms, err := r.registry.ResolveModel(ctx, requestedModel)
	if err != nil {
		if err == registry.ErrModelNotFound {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("router: ResolveModel: %w", err)
	}

	out := make([]candidateRecord, 0, len(pms))
	for _, pm := range pms {
		out = append(out, candidateRecord{pm: pm, global: g})
	}
	return out, nil
}

// passesFilter discards unusable provider records: availability, stale
// last-seen, open circuit, and a quota peek (no increment — the real
// increment happens in the orchestrator's attempt protocol).
func (r *Router) passesFilter(ctx context.Context, rec candidateRecord) bool {
	if !rec.pm.Available {
		return false
	}

	if r.cfg.StalenessHorizon > 0 && time.Since(rec.pm.LastSeen) > r.cfg.StalenessHorizon {
		return false
	}

	rh, err := r.health.CheckHealth(ctx, rec.pm.ProviderID)
	if err != nil {
		r.logger.Warn("health check failed, excluding candidate", "provider", rec.pm.ProviderID, "error", err)
		return false
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.UpdateCircuitState(rec.pm.ProviderID, rh.Circuit == health.CircuitOpen)
	}
	if rh.Circuit == health.CircuitOpen {
		return false
	}

	limit := int64(rec.pm.RateLimitRPM)
	if limit > 0 {
		allowed, _, err := r.health.CheckQuota(ctx, rec.pm.ProviderID, r.cfg.QuotaWindow, limit, false)
		if err != nil {
			r.logger.Warn("quota peek failed, excluding candidate", "provider", rec.pm.ProviderID, "error", err)
			return false
		}
		if !allowed {
			return false
		}
	}

	return true
}

// score combines tier, health, latency, and cost into one weighted value.
func (r *Router) score(ctx context.Context, rec candidateRecord, isFree bool) float64 {
	tier := 0.5
	if isFree {
		tier = 1.0
	}
	if rec.aliasPosition > 0 {
		tier -= float64(rec.aliasPosition) * 0.01
	}

	healthScore := 1.0
	if rh, err := r.health.CheckHealth(ctx, rec.pm.ProviderID); err == nil {
		healthScore = rh.SuccessRate
	}

	normalizedLatency := 0.5
	if rec.pm.P95LatencyMS > 0 && r.cfg.MaxObservedLatencyMS > 0 {
		normalizedLatency = math.Min(1.0, rec.pm.P95LatencyMS/r.cfg.MaxObservedLatencyMS)
	}

	costFactor := 1.0
	if isFree {
		costFactor = 0.0
	}

	w := r.cfg.Weights
	return w.Tier*tier + w.Health*healthScore + w.Latency*(1-normalizedLatency) + w.Cost*(1-costFactor)
}
