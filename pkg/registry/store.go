package registry

import (
	"context"
	"errors"
)

// ErrModelNotFound is returned by ResolveModel when requestedID matches
// no global model and no configured alias.
var ErrModelNotFound = errors.New("registry: model not found")

// ErrProviderModelNotFound is returned by writers when an upsert or stale
// marker targets a provider/global pairing that was never registered.
var ErrProviderModelNotFound = errors.New("registry: provider model not found")

// Store is the read/write surface of the Dynamic Model Registry. Reads
// (ResolveModel, GetTenantBudget) are on the Smart Router's hot path and
// must be fast and side-effect free; writes are confined to the
// catalogsync and discovery writers plus billing accrual from the
// fallback orchestrator.
type Store interface {
	// ResolveModel looks up the canonical model for requestedID, which may
	// be a canonical GlobalModel id or a provider-specific id registered
	// against one (the normalized lookup), and returns it together with
	// every currently-available, non-stale ProviderModel registered
	// against it (spec §4.3: availability and staleness are filtered at
	// the registry read, not left to callers). The router's own filter
	// still re-checks health and quota, which this layer knows nothing
	// about.
	ResolveModel(ctx context.Context, requestedID string) (GlobalModel, []ProviderModel, error)

	// GetTenantBudget returns the tenant's budget row for globalModelID,
	// applying the UTC month-boundary reset if the stored row is from a
	// prior month. Returns (nil, nil) when no budget is configured for
	// the pair, which callers must treat as unlimited.
	GetTenantBudget(ctx context.Context, tenantID, globalModelID string) (*TenantBudget, error)

	// ListGlobalModels returns every canonical model, backing the
	// gateway's model-listing endpoint. Staleness
	// filtering on provider availability does not apply here: this lists
	// canonical models, not provider offerings.
	ListGlobalModels(ctx context.Context) ([]GlobalModel, error)

	// UpsertGlobalModel inserts or updates a canonical model record.
	UpsertGlobalModel(ctx context.Context, model GlobalModel) error

	// UpsertProviderModel inserts or updates a single provider/model
	// mapping, stamping LastSeen to the current time.
	UpsertProviderModel(ctx context.Context, pm ProviderModel) error

	// SetTenantBudget configures (or reconfigures) the rate and monthly
	// spend guardrails for a (tenant, model) pair, preserving any
	// already-accrued current-month spend.
	SetTenantBudget(ctx context.Context, tenantID, globalModelID string, allowedRPM int, monthlyBudget float64) error

	// MarkProviderModelsStale flips Available to false for every
	// ProviderModel owned by providerID whose ProviderModelID is absent
	// from seenIDs. Used by discovery after a full listing sweep so
	// models the upstream stopped reporting fall out of routing without
	// being deleted outright.
	MarkProviderModelsStale(ctx context.Context, providerID string, seenIDs map[string]bool) error

	// AccrueSpend adds amount to the tenant's current-month spend for
	// globalModelID, creating the budget row (with no configured limit)
	// if one does not already exist. Applies the month-boundary reset
	// first if the existing row is stale.
	AccrueSpend(ctx context.Context, tenantID, globalModelID string, amount float64) error

	Close() error
}
