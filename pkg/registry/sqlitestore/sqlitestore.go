// Package sqlitestore is the durable Dynamic Model Registry backend:
// WAL mode, a single writer connection, and prepared statements for
// every hot path.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaymesh/gateway/pkg/registry"
)

// Store is a SQLite-backed implementation of registry.Store.
type Store struct {
	db               *sql.DB
	mu               sync.RWMutex
	stalenessHorizon time.Duration

	upsertGlobalStmt        *sql.Stmt
	upsertProviderStmt      *sql.Stmt
	resolveGlobalStmt       *sql.Stmt
	resolveProviderStmt     *sql.Stmt
	resolveByProviderIDStmt *sql.Stmt
	getBudgetStmt           *sql.Stmt
	upsertBudgetStmt        *sql.Stmt
}

// Config configures the SQLite registry backend.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration

	// StalenessHorizon forces a ProviderModel unavailable on read once
	// time.Since(LastSeen) exceeds it (spec §4.3). Zero disables the check.
	StalenessHorizon time.Duration
}

// New opens (creating if necessary) a SQLite-backed registry store.
func New(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("sqlitestore: db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, stalenessHorizon: cfg.StalenessHorizon}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: prepare: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS global_models (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		context_window INTEGER NOT NULL DEFAULT 0,
		input_price_per_m REAL NOT NULL DEFAULT 0,
		output_price_per_m REAL NOT NULL DEFAULT 0,
		cap_tools INTEGER NOT NULL DEFAULT 0,
		cap_vision INTEGER NOT NULL DEFAULT 0,
		cap_streaming INTEGER NOT NULL DEFAULT 0,
		last_sync INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS provider_models (
		provider_id TEXT NOT NULL,
		provider_model_id TEXT NOT NULL,
		global_model_id TEXT NOT NULL,
		available INTEGER NOT NULL DEFAULT 1,
		last_seen INTEGER NOT NULL,
		rate_limit_rpm INTEGER NOT NULL DEFAULT 0,
		successes INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		p95_latency_ms REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (provider_id, provider_model_id),
		FOREIGN KEY (global_model_id) REFERENCES global_models(id)
	);

	CREATE INDEX IF NOT EXISTS idx_provider_models_global ON provider_models(global_model_id);
	CREATE INDEX IF NOT EXISTS idx_provider_models_provider ON provider_models(provider_id);
	CREATE INDEX IF NOT EXISTS idx_provider_models_provider_model ON provider_models(provider_model_id);

	CREATE TABLE IF NOT EXISTS tenant_budgets (
		tenant_id TEXT NOT NULL,
		global_model_id TEXT NOT NULL,
		allowed_rpm INTEGER NOT NULL DEFAULT 0,
		monthly_budget REAL NOT NULL DEFAULT 0,
		current_month_key TEXT NOT NULL,
		current_month_spend REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, global_model_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.upsertGlobalStmt, err = s.db.Prepare(`
		INSERT INTO global_models (id, display_name, context_window, input_price_per_m, output_price_per_m, cap_tools, cap_vision, cap_streaming, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			context_window = excluded.context_window,
			input_price_per_m = excluded.input_price_per_m,
			output_price_per_m = excluded.output_price_per_m,
			cap_tools = excluded.cap_tools,
			cap_vision = excluded.cap_vision,
			cap_streaming = excluded.cap_streaming,
			last_sync = excluded.last_sync
	`)
	if err != nil {
		return fmt.Errorf("upsert global: %w", err)
	}

	s.upsertProviderStmt, err = s.db.Prepare(`
		INSERT INTO provider_models (provider_id, provider_model_id, global_model_id, available, last_seen, rate_limit_rpm, successes, failures, p95_latency_ms)
		VALUES (?, ?, ?, 1, ?, ?, 0, 0, 0)
		ON CONFLICT (provider_id, provider_model_id) DO UPDATE SET
			global_model_id = excluded.global_model_id,
			available = 1,
			last_seen = excluded.last_seen,
			rate_limit_rpm = excluded.rate_limit_rpm
	`)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}

	s.resolveGlobalStmt, err = s.db.Prepare(`
		SELECT id, display_name, context_window, input_price_per_m, output_price_per_m, cap_tools, cap_vision, cap_streaming, last_sync
		FROM global_models WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("resolve global: %w", err)
	}

	s.resolveProviderStmt, err = s.db.Prepare(`
		SELECT provider_id, provider_model_id, global_model_id, available, last_seen, rate_limit_rpm, successes, failures, p95_latency_ms
		FROM provider_models WHERE global_model_id = ?
	`)
	if err != nil {
		return fmt.Errorf("resolve providers: %w", err)
	}

	s.resolveByProviderIDStmt, err = s.db.Prepare(`
		SELECT global_model_id FROM provider_models WHERE provider_model_id = ? LIMIT 1
	`)
	if err != nil {
		return fmt.Errorf("resolve by provider model id: %w", err)
	}

	s.getBudgetStmt, err = s.db.Prepare(`
		SELECT tenant_id, global_model_id, allowed_rpm, monthly_budget, current_month_key, current_month_spend
		FROM tenant_budgets WHERE tenant_id = ? AND global_model_id = ?
	`)
	if err != nil {
		return fmt.Errorf("get budget: %w", err)
	}

	s.upsertBudgetStmt, err = s.db.Prepare(`
		INSERT INTO tenant_budgets (tenant_id, global_model_id, allowed_rpm, monthly_budget, current_month_key, current_month_spend)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, global_model_id) DO UPDATE SET
			allowed_rpm = excluded.allowed_rpm,
			monthly_budget = excluded.monthly_budget,
			current_month_key = excluded.current_month_key,
			current_month_spend = excluded.current_month_spend
	`)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	return nil
}

func (s *Store) ResolveModel(ctx context.Context, requestedID string) (registry.GlobalModel, []registry.ProviderModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g registry.GlobalModel
	var lastSync int64
	var capTools, capVision, capStreaming int

	lookupID := requestedID
	err := s.resolveGlobalStmt.QueryRowContext(ctx, lookupID).Scan(
		&g.ID, &g.DisplayName, &g.ContextWindow, &g.InputPricePerM, &g.OutputPricePerM,
		&capTools, &capVision, &capStreaming, &lastSync,
	)
	if err == sql.ErrNoRows {
		// requestedID didn't match a canonical GlobalModel id; fall back
		// to a provider-specific id lookup per the normalized-lookup rule.
		var globalID string
		ferr := s.resolveByProviderIDStmt.QueryRowContext(ctx, requestedID).Scan(&globalID)
		if ferr == sql.ErrNoRows {
			return registry.GlobalModel{}, nil, registry.ErrModelNotFound
		}
		if ferr != nil {
			return registry.GlobalModel{}, nil, fmt.Errorf("sqlitestore: ResolveModel provider lookup: %w", ferr)
		}
		lookupID = globalID
		err = s.resolveGlobalStmt.QueryRowContext(ctx, lookupID).Scan(
			&g.ID, &g.DisplayName, &g.ContextWindow, &g.InputPricePerM, &g.OutputPricePerM,
			&capTools, &capVision, &capStreaming, &lastSync,
		)
		if err == sql.ErrNoRows {
			return registry.GlobalModel{}, nil, registry.ErrModelNotFound
		}
	}
	if err != nil {
		return registry.GlobalModel{}, nil, fmt.Errorf("sqlitestore: ResolveModel: %w", err)
	}
	g.Capabilities = registry.Capabilities{Tools: capTools != 0, Vision: capVision != 0, Streaming: capStreaming != 0}
	g.LastSync = time.Unix(lastSync, 0)

	rows, err := s.resolveProviderStmt.QueryContext(ctx, g.ID)
	if err != nil {
		return registry.GlobalModel{}, nil, fmt.Errorf("sqlitestore: ResolveModel providers: %w", err)
	}
	defer rows.Close()

	var pms []registry.ProviderModel
	for rows.Next() {
		var pm registry.ProviderModel
		var available int
		var lastSeen int64
		if err := rows.Scan(&pm.ProviderID, &pm.ProviderModelID, &pm.GlobalModelID, &available, &lastSeen,
			&pm.RateLimitRPM, &pm.Successes, &pm.Failures, &pm.P95LatencyMS); err != nil {
			return registry.GlobalModel{}, nil, fmt.Errorf("sqlitestore: ResolveModel scan: %w", err)
		}
		pm.Available = available != 0
		pm.LastSeen = time.Unix(lastSeen, 0)
		if !pm.Available {
			continue
		}
		if s.stalenessHorizon > 0 && time.Since(pm.LastSeen) > s.stalenessHorizon {
			continue
		}
		pms = append(pms, pm)
	}
	if err := rows.Err(); err != nil {
		return registry.GlobalModel{}, nil, fmt.Errorf("sqlitestore: ResolveModel rows: %w", err)
	}

	return g, pms, nil
}

func (s *Store) ListGlobalModels(ctx context.Context) ([]registry.GlobalModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, context_window, input_price_per_m, output_price_per_m, cap_tools, cap_vision, cap_streaming, last_sync
		FROM global_models
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: ListGlobalModels: %w", err)
	}
	defer rows.Close()

	var out []registry.GlobalModel
	for rows.Next() {
		var g registry.GlobalModel
		var lastSync int64
		var capTools, capVision, capStreaming int
		if err := rows.Scan(&g.ID, &g.DisplayName, &g.ContextWindow, &g.InputPricePerM, &g.OutputPricePerM,
			&capTools, &capVision, &capStreaming, &lastSync); err != nil {
			return nil, fmt.Errorf("sqlitestore: ListGlobalModels scan: %w", err)
		}
		g.Capabilities = registry.Capabilities{Tools: capTools != 0, Vision: capVision != 0, Streaming: capStreaming != 0}
		g.LastSync = time.Unix(lastSync, 0)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: ListGlobalModels rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetTenantBudget(ctx context.Context, tenantID, globalModelID string) (*registry.TenantBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b registry.TenantBudget
	err := s.getBudgetStmt.QueryRowContext(ctx, tenantID, globalModelID).Scan(
		&b.TenantID, &b.GlobalModelID, &b.AllowedRPM, &b.MonthlyBudget, &b.CurrentMonthKey, &b.CurrentMonthSpend,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: GetTenantBudget: %w", err)
	}

	currentKey := registry.MonthKey(time.Now())
	if b.CurrentMonthKey != currentKey {
		b.CurrentMonthKey = currentKey
		b.CurrentMonthSpend = 0
		if _, err := s.upsertBudgetStmt.ExecContext(ctx, b.TenantID, b.GlobalModelID, b.AllowedRPM, b.MonthlyBudget, b.CurrentMonthKey, b.CurrentMonthSpend); err != nil {
			return nil, fmt.Errorf("sqlitestore: GetTenantBudget reset: %w", err)
		}
	}

	return &b, nil
}

func (s *Store) UpsertGlobalModel(ctx context.Context, model registry.GlobalModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	_, err := s.upsertGlobalStmt.ExecContext(ctx,
		model.ID, model.DisplayName, model.ContextWindow, model.InputPricePerM, model.OutputPricePerM,
		b2i(model.Capabilities.Tools), b2i(model.Capabilities.Vision), b2i(model.Capabilities.Streaming),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: UpsertGlobalModel: %w", err)
	}
	return nil
}

func (s *Store) UpsertProviderModel(ctx context.Context, pm registry.ProviderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.upsertProviderStmt.ExecContext(ctx,
		pm.ProviderID, pm.ProviderModelID, pm.GlobalModelID, time.Now().Unix(), pm.RateLimitRPM,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: UpsertProviderModel: %w", err)
	}
	return nil
}

func (s *Store) MarkProviderModelsStale(ctx context.Context, providerID string, seenIDs map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT provider_model_id FROM provider_models WHERE provider_id = ?`, providerID)
	if err != nil {
		return fmt.Errorf("sqlitestore: MarkProviderModelsStale query: %w", err)
	}

	var stale []string
	for rows.Next() {
		var providerModelID string
		if err := rows.Scan(&providerModelID); err != nil {
			rows.Close()
			return fmt.Errorf("sqlitestore: MarkProviderModelsStale scan: %w", err)
		}
		if !seenIDs[providerModelID] {
			stale = append(stale, providerModelID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlitestore: MarkProviderModelsStale rows: %w", err)
	}

	for _, providerModelID := range stale {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE provider_models SET available = 0 WHERE provider_id = ? AND provider_model_id = ?`,
			providerID, providerModelID,
		); err != nil {
			return fmt.Errorf("sqlitestore: MarkProviderModelsStale update: %w", err)
		}
	}

	return nil
}

func (s *Store) SetTenantBudget(ctx context.Context, tenantID, globalModelID string, allowedRPM int, monthlyBudget float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing registry.TenantBudget
	err := s.getBudgetStmt.QueryRowContext(ctx, tenantID, globalModelID).Scan(
		&existing.TenantID, &existing.GlobalModelID, &existing.AllowedRPM, &existing.MonthlyBudget,
		&existing.CurrentMonthKey, &existing.CurrentMonthSpend,
	)

	currentKey := registry.MonthKey(time.Now())

	switch {
	case err == sql.ErrNoRows:
		existing = registry.TenantBudget{TenantID: tenantID, GlobalModelID: globalModelID, CurrentMonthKey: currentKey}
	case err != nil:
		return fmt.Errorf("sqlitestore: SetTenantBudget: %w", err)
	case existing.CurrentMonthKey != currentKey:
		existing.CurrentMonthKey = currentKey
		existing.CurrentMonthSpend = 0
	}

	existing.AllowedRPM = allowedRPM
	existing.MonthlyBudget = monthlyBudget

	_, err = s.upsertBudgetStmt.ExecContext(ctx,
		existing.TenantID, existing.GlobalModelID, existing.AllowedRPM, existing.MonthlyBudget,
		existing.CurrentMonthKey, existing.CurrentMonthSpend,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: SetTenantBudget upsert: %w", err)
	}
	return nil
}

func (s *Store) AccrueSpend(ctx context.Context, tenantID, globalModelID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing registry.TenantBudget
	err := s.getBudgetStmt.QueryRowContext(ctx, tenantID, globalModelID).Scan(
		&existing.TenantID, &existing.GlobalModelID, &existing.AllowedRPM, &existing.MonthlyBudget,
		&existing.CurrentMonthKey, &existing.CurrentMonthSpend,
	)

	currentKey := registry.MonthKey(time.Now())

	switch {
	case err == sql.ErrNoRows:
		existing = registry.TenantBudget{TenantID: tenantID, GlobalModelID: globalModelID, CurrentMonthKey: currentKey}
	case err != nil:
		return fmt.Errorf("sqlitestore: AccrueSpend: %w", err)
	case existing.CurrentMonthKey != currentKey:
		existing.CurrentMonthKey = currentKey
		existing.CurrentMonthSpend = 0
	}

	existing.CurrentMonthSpend += amount

	_, err = s.upsertBudgetStmt.ExecContext(ctx,
		existing.TenantID, existing.GlobalModelID, existing.AllowedRPM, existing.MonthlyBudget,
		existing.CurrentMonthKey, existing.CurrentMonthSpend,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: AccrueSpend upsert: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
