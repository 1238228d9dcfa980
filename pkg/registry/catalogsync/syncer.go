package catalogsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/relaymesh/gateway/pkg/registry"
)

// Syncer reconciles a Source into a registry.Store on a cron schedule and
// whenever the watched catalog path changes on disk.
type Syncer struct {
	source Source
	store  registry.Store
	guard  *registry.WriteGuard
	logger *slog.Logger

	schedule string
	cron     *cron.Cron
	watcher  *fsnotify.Watcher
	watchDir string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// Config configures a Syncer.
type Config struct {
	// Schedule is a standard cron expression for the slow-cadence full
	// reconcile (e.g. "0 */6 * * *" for every six hours).
	Schedule string

	// WatchPath, if set, is also watched with fsnotify for immediate
	// reconciliation on file change, independent of Schedule.
	WatchPath string
}

// New creates a catalog Syncer. guard is shared with the discovery writer
// so the two never upsert the same provider's models concurrently.
func New(source Source, store registry.Store, guard *registry.WriteGuard, cfg Config, logger *slog.Logger) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Syncer{
		source:   source,
		store:    store,
		guard:    guard,
		logger:   logger.With("component", "registry.catalogsync"),
		schedule: cfg.Schedule,
		watchDir: cfg.WatchPath,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}

	if cfg.WatchPath != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("catalogsync: fsnotify: %w", err)
		}
		if err := w.Add(cfg.WatchPath); err != nil {
			w.Close()
			return nil, fmt.Errorf("catalogsync: watch %q: %w", cfg.WatchPath, err)
		}
		s.watcher = w
	}

	return s, nil
}

// Start begins scheduled and watched reconciliation. It blocks until ctx
// is cancelled.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("catalogsync: already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.schedule != "" {
		if _, err := cron.ParseStandard(s.schedule); err != nil {
			return fmt.Errorf("catalogsync: invalid schedule %q: %w", s.schedule, err)
		}
		if _, err := s.cron.AddFunc(s.schedule, func() { s.runOnce(ctx) }); err != nil {
			return fmt.Errorf("catalogsync: schedule: %w", err)
		}
		s.cron.Start()
		defer s.cron.Stop()
	}

	s.logger.Info("catalog sync started", "schedule", s.schedule, "watch_path", s.watchDir)

	// Reconcile immediately on startup so a fresh instance can route
	// without waiting for the first scheduled cycle.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("catalog sync stopped")
			if s.watcher != nil {
				s.watcher.Close()
			}
			return nil
		case <-s.stopCh:
			return nil
		case event := <-s.events():
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.logger.Debug("catalog file changed, reconciling", "path", event.Name)
				s.runOnce(ctx)
			}
		}
	}
}

// events returns the watcher's event channel, or a nil channel (which
// blocks forever in a select) when no watcher is configured.
func (s *Syncer) events() <-chan fsnotify.Event {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Events
}

const writerKey = "catalogsync"

// runOnce performs a single full reconcile pass. Each provider mapping's
// upsert is isolated: a failure on one record is logged and skipped
// rather than aborting the batch.
func (s *Syncer) runOnce(ctx context.Context) {
	if !s.guard.TryAcquire(writerKey) {
		s.logger.Debug("skipping cycle, writer busy")
		return
	}
	defer s.guard.Release(writerKey)

	entries, err := s.source.Load()
	if err != nil {
		s.logger.Error("catalog load failed", "error", err)
		return
	}

	var upserted, failed int
	for _, e := range entries {
		g := registry.GlobalModel{
			ID:              e.ID,
			DisplayName:     e.DisplayName,
			ContextWindow:   e.ContextWindow,
			InputPricePerM:  e.InputPricePerM,
			OutputPricePerM: e.OutputPricePerM,
			Capabilities:    e.Capabilities,
		}
		if err := s.store.UpsertGlobalModel(ctx, g); err != nil {
			s.logger.Warn("upsert global model failed, skipping entry", "model", e.ID, "error", err)
			failed++
			continue
		}

		for _, pm := range e.Providers {
			rec := registry.ProviderModel{
				ProviderID:      pm.ProviderID,
				ProviderModelID: pm.ProviderModelID,
				GlobalModelID:   e.ID,
				Available:       true,
				RateLimitRPM:    pm.RateLimitRPM,
			}
			if err := s.store.UpsertProviderModel(ctx, rec); err != nil {
				s.logger.Warn("upsert provider model failed, skipping mapping",
					"model", e.ID, "provider", pm.ProviderID, "error", err)
				failed++
				continue
			}
			upserted++
		}
	}

	s.logger.Info("catalog sync cycle complete", "upserted", upserted, "failed", failed)
}

// Stop requests the Syncer's Start loop to return.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}
