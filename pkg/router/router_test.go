package router

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/gateway/pkg/health"
	"github.com/relaymesh/gateway/pkg/health/memstore"
	"github.com/relaymesh/gateway/pkg/registry"
	regmem "github.com/relaymesh/gateway/pkg/registry/memstore"
)

func newTestRouter(t *testing.T, cfg Config) (*Router, registry.Store, health.Store) {
	t.Helper()
	reg := regmem.New()
	hst := memstore.New(time.Millisecond)
	return New(reg, hst, cfg, nil), reg, hst
}

func seedModel(t *testing.T, reg registry.Store, global registry.GlobalModel, pms ...registry.ProviderModel) {
	t.Helper()
	if err := reg.UpsertGlobalModel(context.Background(), global); err != nil {
		t.Fatalf("seed global: %v", err)
	}
	for _, pm := range pms {
		pm.LastSeen = time.Now()
		if err := reg.UpsertProviderModel(context.Background(), pm); err != nil {
			t.Fatalf("seed provider model: %v", err)
		}
	}
}

func TestGetCandidatesModelNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t, DefaultConfig())
	_, err := r.GetCandidates(context.Background(), "ghost", "", "")
	if err != ErrModelNotFound {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestGetCandidatesOrdersFreeBeforePaid(t *testing.T) {
	cfg := DefaultConfig()
	r, reg, _ := newTestRouter(t, cfg)

	seedModel(t, reg, registry.GlobalModel{ID: "m", InputPricePerM: 5},
		registry.ProviderModel{ProviderID: "paid-provider", ProviderModelID: "x", GlobalModelID: "m", Available: true})
	seedModel(t, reg, registry.GlobalModel{ID: "m"}, // re-upsert as free overwrites price to 0
		registry.ProviderModel{ProviderID: "free-provider", ProviderModelID: "y", GlobalModelID: "m", Available: true})

	cands, err := r.GetCandidates(context.Background(), "m", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].ProviderID != "free-provider" {
		t.Fatalf("expected free provider first, got %s", cands[0].ProviderID)
	}
}

func TestGetCandidatesFreeProviderOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FreeProviders = map[string]bool{"self-hosted": true}
	r, reg, _ := newTestRouter(t, cfg)

	// Both providers serve a paid model; self-hosted is flagged free in
	// config and must therefore order first.
	seedModel(t, reg, registry.GlobalModel{ID: "m", InputPricePerM: 5},
		registry.ProviderModel{ProviderID: "commercial", ProviderModelID: "x", GlobalModelID: "m", Available: true},
		registry.ProviderModel{ProviderID: "self-hosted", ProviderModelID: "y", GlobalModelID: "m", Available: true},
	)

	cands, err := r.GetCandidates(context.Background(), "m", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].ProviderID != "self-hosted" || !cands[0].IsFree {
		t.Fatalf("expected config-flagged free provider first, got %+v", cands)
	}
}

func TestGetCandidatesFiltersUnavailableAndOpenCircuit(t *testing.T) {
	cfg := DefaultConfig()
	r, reg, hst := newTestRouter(t, cfg)

	seedModel(t, reg, registry.GlobalModel{ID: "m"},
		registry.ProviderModel{ProviderID: "down-provider", ProviderModelID: "x", GlobalModelID: "m", Available: false},
		registry.ProviderModel{ProviderID: "open-circuit-provider", ProviderModelID: "y", GlobalModelID: "m", Available: true},
		registry.ProviderModel{ProviderID: "healthy-provider", ProviderModelID: "z", GlobalModelID: "m", Available: true},
	)

	if err := hst.RecordOutcome(context.Background(), "open-circuit-provider", health.OutcomeRateLimit); err != nil {
		t.Fatalf("seed health: %v", err)
	}

	cands, err := r.GetCandidates(context.Background(), "m", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].ProviderID != "healthy-provider" {
		t.Fatalf("expected only healthy-provider to survive filtering, got %+v", cands)
	}
}

func TestGetCandidatesPreferredProviderOrdersFirst(t *testing.T) {
	cfg := DefaultConfig()
	r, reg, _ := newTestRouter(t, cfg)

	seedModel(t, reg, registry.GlobalModel{ID: "m"},
		registry.ProviderModel{ProviderID: "a-provider", ProviderModelID: "a", GlobalModelID: "m", Available: true},
		registry.ProviderModel{ProviderID: "z-provider", ProviderModelID: "z", GlobalModelID: "m", Available: true},
	)

	cands, err := r.GetCandidates(context.Background(), "m", "", "z-provider")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cands[0].ProviderID != "z-provider" {
		t.Fatalf("expected preferred provider first despite lexicographic order, got %s", cands[0].ProviderID)
	}
}

func TestGetCandidatesBudgetExceeded(t *testing.T) {
	cfg := DefaultConfig()
	r, reg, _ := newTestRouter(t, cfg)

	seedModel(t, reg, registry.GlobalModel{ID: "m"},
		registry.ProviderModel{ProviderID: "p", ProviderModelID: "x", GlobalModelID: "m", Available: true})

	if err := reg.SetTenantBudget(context.Background(), "tenant-a", "m", 0, 10); err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	if err := reg.AccrueSpend(context.Background(), "tenant-a", "m", 10); err != nil {
		t.Fatalf("seed spend: %v", err)
	}

	_, err := r.GetCandidates(context.Background(), "m", "tenant-a", "")
	if err != ErrBudgetExceeded {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestGetCandidatesAliasExpandsInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CanonicalAliases = map[string][]string{
		"smart": {"tier-1-model", "tier-2-model"},
	}
	r, reg, _ := newTestRouter(t, cfg)

	seedModel(t, reg, registry.GlobalModel{ID: "tier-1-model"},
		registry.ProviderModel{ProviderID: "provider-a", ProviderModelID: "a", GlobalModelID: "tier-1-model", Available: true})
	seedModel(t, reg, registry.GlobalModel{ID: "tier-2-model"},
		registry.ProviderModel{ProviderID: "provider-b", ProviderModelID: "b", GlobalModelID: "tier-2-model", Available: true})

	cands, err := r.GetCandidates(context.Background(), "smart", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates from alias expansion, got %d", len(cands))
	}
	if cands[0].GlobalModelID != "tier-1-model" {
		t.Fatalf("expected tier-1-model (alias position 0) first, got %s", cands[0].GlobalModelID)
	}
}
