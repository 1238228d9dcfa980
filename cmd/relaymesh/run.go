package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/relaymesh/gateway/pkg/cli"
	"github.com/relaymesh/gateway/pkg/config"
	"github.com/relaymesh/gateway/pkg/evidence"
	"github.com/relaymesh/gateway/pkg/evidence/recorder"
	"github.com/relaymesh/gateway/pkg/evidence/retention"
	"github.com/relaymesh/gateway/pkg/evidence/storage"
	"github.com/relaymesh/gateway/pkg/gateway"
	"github.com/relaymesh/gateway/pkg/health"
	healthmemstore "github.com/relaymesh/gateway/pkg/health/memstore"
	"github.com/relaymesh/gateway/pkg/health/redisstore"
	"github.com/relaymesh/gateway/pkg/orchestrator"
	"github.com/relaymesh/gateway/pkg/processing/tokens"
	"github.com/relaymesh/gateway/pkg/providerfactory"
	"github.com/relaymesh/gateway/pkg/providers"
	"github.com/relaymesh/gateway/pkg/registry"
	"github.com/relaymesh/gateway/pkg/registry/catalogsync"
	"github.com/relaymesh/gateway/pkg/registry/discovery"
	registrymemstore "github.com/relaymesh/gateway/pkg/registry/memstore"
	"github.com/relaymesh/gateway/pkg/registry/sqlitestore"
	"github.com/relaymesh/gateway/pkg/router"
	"github.com/relaymesh/gateway/pkg/security/secrets"
	securitytls "github.com/relaymesh/gateway/pkg/security/tls"
	"github.com/relaymesh/gateway/pkg/server"
	"github.com/relaymesh/gateway/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the RelayMesh proxy server",
	Long: `Start the RelayMesh proxy server with the specified configuration.

The server listens on the configured address and proxies LLM API requests through
the Smart Router, Fallback Orchestrator, and Dynamic Model Registry.

Examples:
  # Start with default config
  relaymesh run

  # Start with custom config
  relaymesh run --config /etc/relaymesh/config.yaml

  # Override listen address
  relaymesh run --listen 0.0.0.0:8080

  # Validate config without starting server
  relaymesh run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	// Initialize logging based on config
	var logLevel slog.Level
	switch cfg.Telemetry.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Print startup banner
	printBanner(cfg)

	// Create provider manager
	slog.Info("initializing provider manager")
	manager := providerfactory.NewManager()
	defer manager.Close()

	secretsManager, err := newSecretsManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	if secretsManager != nil {
		fmt.Println("✓ Secrets manager initialized")
	}

	// Convert provider configs to slice for loading
	providerConfigs := make([]providers.ProviderConfig, 0, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		apiKey := providerCfg.APIKey
		if secretsManager != nil {
			resolved, rErr := secretsManager.ResolveReferences(context.Background(), providerCfg.APIKey)
			if rErr != nil {
				return fmt.Errorf("provider %s: resolve api key: %w", name, rErr)
			}
			apiKey = resolved
		}

		pc := providers.ProviderConfig{
			Name:          name,
			Type:          providerCfg.Type,
			BaseURL:       providerCfg.BaseURL,
			APIKey:        apiKey,
			Timeout:       providerCfg.Timeout,
			MaxRetries:    providerCfg.MaxRetries,
			IsFree:        providerCfg.IsFree,
			CustomHeaders: providerCfg.CustomHeaders,
		}
		if providerCfg.ClientCertFile != "" || providerCfg.CAFile != "" {
			tlsCfg, err := securitytls.ClientConfig(providerCfg.ClientCertFile, providerCfg.ClientKeyFile, providerCfg.CAFile)
			if err != nil {
				return fmt.Errorf("provider %s: %w", name, err)
			}
			pc.TLSClientConfig = tlsCfg
		}
		providerConfigs = append(providerConfigs, pc)
	}

	if len(providerConfigs) > 0 {
		if err := manager.LoadFromConfig(providerConfigs); err != nil {
			slog.Warn("some providers failed to initialize", "error", err)
		}
	} else {
		slog.Warn("no providers configured")
	}

	fmt.Printf("✓ Providers initialized (%d providers)\n", manager.ProviderCount())

	// Initialize evidence recording (if enabled)
	var evidenceRecorder *recorder.Recorder
	var pruner *retention.Pruner
	if cfg.Evidence.Enabled {
		slog.Info("initializing evidence recording",
			"backend", cfg.Evidence.Backend,
		)

		var evidenceStorage evidence.Storage
		var err error
		switch cfg.Evidence.Backend {
		case "sqlite":
			sqliteConfig := &storage.SQLiteConfig{
				Path:         cfg.Evidence.SQLite.Path,
				MaxOpenConns: cfg.Evidence.SQLite.MaxOpenConns,
				MaxIdleConns: cfg.Evidence.SQLite.MaxIdleConns,
				WALMode:      cfg.Evidence.SQLite.WALMode,
				BusyTimeout:  cfg.Evidence.SQLite.BusyTimeout,
			}
			evidenceStorage, err = storage.NewSQLiteStorage(sqliteConfig)
			if err != nil {
				return fmt.Errorf("failed to create SQLite storage: %w", err)
			}
		case "memory":
			evidenceStorage = storage.NewMemoryStorage()
		default:
			return fmt.Errorf("unsupported evidence backend: %s", cfg.Evidence.Backend)
		}
		defer evidenceStorage.Close()

		recorderConfig := &recorder.Config{
			Enabled:        true,
			AsyncBuffer:    cfg.Evidence.Recorder.AsyncBuffer,
			WriteTimeout:   cfg.Evidence.Recorder.WriteTimeout,
			RedactAPIKeys:  cfg.Evidence.Recorder.RedactAPIKeys,
			MaxFieldLength: cfg.Evidence.Recorder.MaxFieldLength,
		}
		evidenceRecorder = recorder.NewRecorder(evidenceStorage, recorderConfig)
		defer evidenceRecorder.Close()

		// Start retention pruner if schedule is configured
		if cfg.Evidence.Retention.PruneSchedule != "" {
			retentionConfig := &retention.Config{
				RetentionDays:       cfg.Evidence.Retention.Days,
				PruneSchedule:       cfg.Evidence.Retention.PruneSchedule,
				ArchiveBeforeDelete: cfg.Evidence.Retention.ArchiveBeforeDelete,
				ArchivePath:         cfg.Evidence.Retention.ArchivePath,
				MaxRecords:          cfg.Evidence.Retention.MaxRecords,
			}
			pruner = retention.NewPruner(evidenceStorage, retentionConfig)
			ctx := context.Background()
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
				if next := pruner.NextPruning(); next != nil {
					slog.Debug("evidence retention scheduler started", "next_pruning", next)
				}
			}
		}

		fmt.Println("✓ Evidence store initialized")
	}

	// Build the Dynamic Model Registry backing store.
	slog.Info("initializing model registry", "backend", cfg.Registry.Backend)
	regStore, err := newRegistryStore(cfg, cfg.Routing.StalenessHorizon)
	if err != nil {
		return fmt.Errorf("failed to initialize registry store: %w", err)
	}
	defer regStore.Close()

	// Build the Health & Quota Store shared by the router and orchestrator.
	// Close is deferred on the Store itself: the redis-backed variant
	// closes its wrapped client too.
	slog.Info("initializing health store", "backend", cfg.HealthStore.Backend)
	hstore, err := newHealthStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize health store: %w", err)
	}
	defer hstore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the two Registry Writers: catalogsync (slow, checked-in
	// catalog) and discovery (fast, live provider listing).
	guard := registry.NewWriteGuard()

	if cfg.Registry.CatalogPath != "" {
		source := catalogsync.NewFileSource(cfg.Registry.CatalogPath)
		syncer, err := catalogsync.New(source, regStore, guard, catalogsync.Config{
			Schedule:  cfg.Registry.CatalogSyncSchedule,
			WatchPath: cfg.Registry.CatalogPath,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize catalog sync: %w", err)
		}
		go func() {
			if err := syncer.Start(ctx); err != nil {
				slog.Error("catalog sync stopped", "error", err)
			}
		}()
		fmt.Println("✓ Catalog sync writer started")
	} else {
		slog.Warn("no registry catalog path configured, skipping catalog sync")
	}

	listers := buildDiscoveryListers(cfg, manager)
	if len(listers) > 0 && cfg.Registry.DiscoverySchedule != "" {
		scheduler := discovery.New(listers, regStore, guard, discovery.Config{
			Schedule: cfg.Registry.DiscoverySchedule,
		}, logger)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("provider discovery stopped", "error", err)
			}
		}()
		fmt.Printf("✓ Provider discovery writer started (%d providers)\n", len(listers))
	} else {
		slog.Warn("no discovery listers configured, skipping provider discovery")
	}

	// Metrics collection is optional; a nil collector leaves the router
	// and orchestrator's metrics hooks as no-ops.
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		fmt.Println("✓ Metrics collector initialized")
	}

	// Wire the Smart Router and Fallback Orchestrator over the registry
	// and health stores, then compose them into the dispatch Engine.
	freeProviders := make(map[string]bool)
	for name, providerCfg := range cfg.Providers {
		if providerCfg.IsFree {
			freeProviders[name] = true
		}
	}

	routerCfg := router.Config{
		Weights: router.Weights{
			Tier:    cfg.Routing.Weights.Tier,
			Health:  cfg.Routing.Weights.Health,
			Latency: cfg.Routing.Weights.Latency,
			Cost:    cfg.Routing.Weights.Cost,
		},
		CanonicalAliases:     cfg.Routing.CanonicalAliases,
		StalenessHorizon:     cfg.Routing.StalenessHorizon,
		QuotaWindow:          cfg.Routing.QuotaWindow,
		MaxObservedLatencyMS: cfg.Routing.MaxObservedLatencyMS,
		FreeProviders:        freeProviders,
		Metrics:              collector,
	}
	smartRouter := router.New(regStore, hstore, routerCfg, logger)

	resolver := orchestrator.NewStaticResolver(manager.GetProviders())

	var estimator tokens.Estimator
	if cfg.Processing.Tokens.Estimator != "" {
		estimator = tokens.NewSimpleEstimator(&cfg.Processing.Tokens)
	}

	// A typed-nil *recorder.Recorder stored directly in the
	// orchestrator.AttemptRecorder interface would be a non-nil interface
	// value, so only assign when evidence recording is actually enabled.
	var auditRecorder orchestrator.AttemptRecorder
	if evidenceRecorder != nil {
		auditRecorder = evidenceRecorder
	}

	fallback := orchestrator.New(hstore, regStore, resolver, orchestrator.Config{
		QuotaWindow: cfg.Routing.QuotaWindow,
		Estimator:   estimator,
		Recorder:    auditRecorder,
		Metrics:     collector,
	}, logger)

	engine := gateway.New(smartRouter, fallback)

	// Create HTTP server
	slog.Info("creating HTTP server")
	srv := server.NewServer(&cfg.Proxy, &cfg.Security, manager, engine, regStore)
	if collector != nil {
		srv.SetMetricsHandler(cfg.Telemetry.Metrics.Path, collector.Handler())
	}

	// Start server in background goroutine
	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server",
			"address", cfg.Proxy.ListenAddress,
			"tls_enabled", cfg.Security.TLS.Enabled,
		)
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Wait for server to be ready
	if err := waitForServerReady(cfg.Proxy.ListenAddress, 5*time.Second); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Proxy.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Proxy.ListenAddress)
	if collector != nil {
		path := cfg.Telemetry.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Proxy.ListenAddress, path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for shutdown signal or server error
	sigChan := cli.WaitForShutdown()

	select {
	case err := <-errChan:
		return cli.NewCommandError("run", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
		cancel()

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
			return cli.NewCommandError("run", err)
		}

		fmt.Println("✓ Server stopped")
		return nil
	}
}

// newSecretsManager builds a secrets.Manager from cfg.Security.Secrets, used
// to resolve "${secret:name}" references in provider.api_key before a
// provider adapter is constructed. Returns a nil manager (not an error) when
// no provider is configured, so callers can skip resolution entirely.
func newSecretsManager(cfg *config.Config) (*secrets.Manager, error) {
	scfg := cfg.Security.Secrets
	if len(scfg.Providers) == 0 {
		return nil, nil
	}

	var cacheTTL time.Duration
	if scfg.Cache.TTL != "" {
		d, err := time.ParseDuration(scfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid secrets cache ttl %q: %w", scfg.Cache.TTL, err)
		}
		cacheTTL = d
	}

	var backends []secrets.SecretProvider
	for _, pc := range scfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch pc.Type {
		case "env":
			backends = append(backends, secrets.NewEnvProvider(pc.Prefix))
		case "file":
			fp, err := secrets.NewFileProvider(pc.Path, pc.Watch)
			if err != nil {
				return nil, fmt.Errorf("secrets provider %q: %w", pc.Type, err)
			}
			backends = append(backends, fp)
		case "aws_kms":
			backends = append(backends, secrets.NewAWSKMSProvider(pc.Region, pc.KeyID, true))
		case "gcp_kms":
			backends = append(backends, secrets.NewGCPKMSProvider(pc.Project, pc.Location, pc.KeyRing, pc.Key, true))
		case "vault":
			backends = append(backends, secrets.NewVaultProvider(pc.Address, pc.Token, pc.VaultPath, true))
		default:
			return nil, fmt.Errorf("unsupported secrets provider type: %s", pc.Type)
		}
	}

	if len(backends) == 0 {
		return nil, nil
	}

	return secrets.NewManager(backends, secrets.CacheConfig{
		Enabled: scfg.Cache.Enabled,
		TTL:     cacheTTL,
		MaxSize: scfg.Cache.MaxSize,
	}), nil
}

// newRegistryStore builds the Dynamic Model Registry's backing store per
// cfg.Registry.Backend. "memory" is intended for tests and single-process
// trial deployments; "sqlite" is the durable default. stalenessHorizon is
// applied at the registry read (spec §4.3), ahead of the router's own
// health/quota filter.
func newRegistryStore(cfg *config.Config, stalenessHorizon time.Duration) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case "memory":
		return registrymemstore.NewWithStalenessHorizon(stalenessHorizon), nil
	case "sqlite", "":
		return sqlitestore.New(sqlitestore.Config{
			DBPath:           cfg.Registry.SQLitePath,
			StalenessHorizon: stalenessHorizon,
		})
	default:
		return nil, fmt.Errorf("unsupported registry backend: %s", cfg.Registry.Backend)
	}
}

// newHealthStore builds the Health & Quota Store per cfg.HealthStore.Backend.
func newHealthStore(cfg *config.Config) (health.Store, error) {
	cooldowns := make(health.CooldownTable, len(cfg.HealthStore.CooldownByClass))
	for class, d := range cfg.HealthStore.CooldownByClass {
		cooldowns[health.Outcome(class)] = d
	}

	switch cfg.HealthStore.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.HealthStore.RedisAddr,
			Password: cfg.HealthStore.RedisPassword,
			DB:       cfg.HealthStore.RedisDB,
		})
		store := redisstore.New(client)
		store.SetCooldowns(cooldowns)
		return store, nil
	case "memory", "":
		store := healthmemstore.New(cfg.HealthStore.Bucket)
		store.SetCooldowns(cooldowns)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported health store backend: %s", cfg.HealthStore.Backend)
	}
}

// buildDiscoveryListers constructs one HTTPLister per configured provider
// whose models are reachable in the checked-in catalog, so discovery can
// relate what it observes back to a canonical model id.
func buildDiscoveryListers(cfg *config.Config, manager *providerfactory.Manager) []discovery.Lister {
	aliasesByProvider := make(map[string]map[string]string)
	if cfg.Registry.CatalogPath != "" {
		entries, err := catalogsync.NewFileSource(cfg.Registry.CatalogPath).Load()
		if err != nil {
			slog.Warn("failed to load catalog for discovery aliasing", "error", err)
		}
		for _, e := range entries {
			for _, pm := range e.Providers {
				byProvider, ok := aliasesByProvider[pm.ProviderID]
				if !ok {
					byProvider = make(map[string]string)
					aliasesByProvider[pm.ProviderID] = byProvider
				}
				byProvider[pm.ProviderModelID] = e.ID
			}
		}
	}

	listers := make([]discovery.Lister, 0, len(cfg.Providers))
	for name, providerCfg := range cfg.Providers {
		aliases := aliasesByProvider[name]
		if len(aliases) == 0 {
			continue
		}
		pc := providers.ProviderConfig{
			Name:          name,
			Type:          providerCfg.Type,
			BaseURL:       providerCfg.BaseURL,
			APIKey:        providerCfg.APIKey,
			Timeout:       providerCfg.Timeout,
			MaxRetries:    providerCfg.MaxRetries,
			CustomHeaders: providerCfg.CustomHeaders,
		}
		listers = append(listers, providerfactory.NewHTTPLister(pc, aliases, 0))
	}
	return listers
}

func printBanner(cfg *config.Config) {
	fmt.Printf("RelayMesh v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Count providers
	providerCount := len(cfg.Providers)
	if providerCount > 0 {
		slog.Debug("providers configured", "count", providerCount)
	}

	slog.Debug("registry backend", "backend", cfg.Registry.Backend)
	slog.Debug("health store backend", "backend", cfg.HealthStore.Backend)

	// Evidence info
	if cfg.Evidence.Enabled {
		slog.Debug("evidence enabled", "backend", cfg.Evidence.Backend)
	}
}

func waitForServerReady(address string, timeout time.Duration) error {
	// Simple delay for MVP - in production this should poll the health endpoint
	time.Sleep(100 * time.Millisecond)
	return nil
}
