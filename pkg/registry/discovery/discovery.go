// Package discovery is the fast-cadence Registry Writer: it polls each
// configured provider's model-listing endpoint and reconciles observed
// models into the Dynamic Model Registry, marking models the provider
// stopped reporting as unavailable.
//
// Per-provider failures log and continue; one unreachable provider never
// stops the sweep.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/relaymesh/gateway/pkg/registry"
)

// DiscoveredModel is a single model observed from a provider's listing
// endpoint, already normalized to a candidate canonical id.
type DiscoveredModel struct {
	ProviderModelID string
	CanonicalID     string
	RateLimitRPM    int
}

// Lister lists the models a single provider currently serves. Provider
// adapters that support discovery implement this directly.
type Lister interface {
	ProviderID() string
	ListModels(ctx context.Context) ([]DiscoveredModel, error)
}

// Scheduler runs Lister sweeps across providers on a cron schedule.
// Each provider's sweep is isolated: one provider's listing failure does
// not affect others nor abort the cycle.
type Scheduler struct {
	listers []Lister
	store   registry.Store
	guard   *registry.WriteGuard
	logger  *slog.Logger

	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// Config configures a discovery Scheduler.
type Config struct {
	// Schedule is a standard cron expression for the fast-cadence sweep
	// (e.g. "*/5 * * * *" for every five minutes).
	Schedule string
}

// New creates a discovery Scheduler. guard is shared with the catalogsync
// writer.
func New(listers []Lister, store registry.Store, guard *registry.WriteGuard, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		listers:  listers,
		store:    store,
		guard:    guard,
		logger:   logger.With("component", "registry.discovery"),
		schedule: cfg.Schedule,
		cron:     cron.New(),
	}
}

// Start begins the scheduled sweep. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("discovery: already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.schedule == "" {
		return fmt.Errorf("discovery: schedule must be configured")
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("discovery: invalid schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("discovery: schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info("discovery sweep started", "schedule", s.schedule, "providers", len(s.listers))

	// Sweep immediately on startup so availability reflects reality
	// before the first scheduled cycle.
	s.runOnce(ctx)

	<-ctx.Done()
	s.cron.Stop()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("discovery sweep stopped")
	return nil
}

// runOnce sweeps every configured Lister once.
func (s *Scheduler) runOnce(ctx context.Context) {
	for _, l := range s.listers {
		s.sweepProvider(ctx, l)
	}
}

func (s *Scheduler) sweepProvider(ctx context.Context, l Lister) {
	providerID := l.ProviderID()

	if !s.guard.TryAcquire(providerID) {
		s.logger.Debug("skipping sweep, writer busy", "provider", providerID)
		return
	}
	defer s.guard.Release(providerID)

	models, err := l.ListModels(ctx)
	if err != nil {
		s.logger.Warn("model listing failed, skipping provider this cycle", "provider", providerID, "error", err)
		return
	}

	seen := make(map[string]bool, len(models))
	var upserted, failed int

	for _, m := range models {
		seen[m.ProviderModelID] = true

		if _, _, err := s.store.ResolveModel(ctx, m.CanonicalID); err != nil {
			s.logger.Debug("observed model has no canonical catalog entry, skipping",
				"provider", providerID, "model", m.ProviderModelID, "canonical", m.CanonicalID)
			continue
		}

		pm := registry.ProviderModel{
			ProviderID:      providerID,
			ProviderModelID: m.ProviderModelID,
			GlobalModelID:   m.CanonicalID,
			Available:       true,
			RateLimitRPM:    m.RateLimitRPM,
		}
		if err := s.store.UpsertProviderModel(ctx, pm); err != nil {
			s.logger.Warn("upsert provider model failed", "provider", providerID, "model", m.ProviderModelID, "error", err)
			failed++
			continue
		}
		upserted++
	}

	if err := s.store.MarkProviderModelsStale(ctx, providerID, seen); err != nil {
		s.logger.Warn("mark stale failed", "provider", providerID, "error", err)
	}

	s.logger.Info("discovery sweep complete", "provider", providerID, "upserted", upserted, "failed", failed)
}

// Stop requests cron to stop; safe to call even if Start was never
// called.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.cron.Stop()
		s.running = false
	}
}
