package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/relaymesh/gateway/pkg/registry"
)

func TestResolveModelNotFound(t *testing.T) {
	s := New()
	_, _, err := s.ResolveModel(context.Background(), "ghost-model")
	if err != registry.ErrModelNotFound {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestUpsertAndResolve(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := registry.GlobalModel{ID: "gpt-4-class", DisplayName: "GPT-4 class", ContextWindow: 128000}
	if err := s.UpsertGlobalModel(ctx, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pm := registry.ProviderModel{ProviderID: "openai-primary", ProviderModelID: "gpt-4o", GlobalModelID: g.ID, Available: true}
	if err := s.UpsertProviderModel(ctx, pm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, pms, err := s.ResolveModel(ctx, "gpt-4-class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != g.ID {
		t.Fatalf("expected model id %s, got %s", g.ID, got.ID)
	}
	if len(pms) != 1 || pms[0].ProviderModelID != "gpt-4o" {
		t.Fatalf("expected one provider model gpt-4o, got %+v", pms)
	}
}

func TestResolveModelByProviderSpecificID(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := registry.GlobalModel{ID: "gpt-4-class", DisplayName: "GPT-4 class"}
	if err := s.UpsertGlobalModel(ctx, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pm := registry.ProviderModel{ProviderID: "openai-primary", ProviderModelID: "gpt-4o", GlobalModelID: g.ID, Available: true}
	if err := s.UpsertProviderModel(ctx, pm); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, pms, err := s.ResolveModel(ctx, "gpt-4o")
	if err != nil {
		t.Fatalf("unexpected error resolving by provider-specific id: %v", err)
	}
	if got.ID != g.ID {
		t.Fatalf("expected model id %s, got %s", g.ID, got.ID)
	}
	if len(pms) != 1 || pms[0].ProviderModelID != "gpt-4o" {
		t.Fatalf("expected one provider model gpt-4o, got %+v", pms)
	}
}

func TestMarkProviderModelsStale(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := registry.GlobalModel{ID: "gpt-4-class"}
	_ = s.UpsertGlobalModel(ctx, g)
	_ = s.UpsertProviderModel(ctx, registry.ProviderModel{ProviderID: "openai-primary", ProviderModelID: "gpt-4o", GlobalModelID: g.ID})

	if err := s.MarkProviderModelsStale(ctx, "openai-primary", map[string]bool{"gpt-4o-mini": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, pms, _ := s.ResolveModel(ctx, "gpt-4-class")
	if len(pms) != 1 || pms[0].Available {
		t.Fatalf("expected provider model to be marked unavailable, got %+v", pms)
	}
}

func TestAccrueSpendCreatesAndResetsAtMonthBoundary(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.AccrueSpend(ctx, "tenant-a", "gpt-4-class", 1.50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := s.GetTenantBudget(ctx, "tenant-a", "gpt-4-class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil || b.CurrentMonthSpend != 1.50 {
		t.Fatalf("expected spend 1.50, got %+v", b)
	}

	// Simulate a stale month key and confirm the next accrual resets it.
	s.mu.Lock()
	stale := s.budgets[budgetKey("tenant-a", "gpt-4-class")]
	stale.CurrentMonthKey = "2000-01"
	s.budgets[budgetKey("tenant-a", "gpt-4-class")] = stale
	s.mu.Unlock()

	if err := s.AccrueSpend(ctx, "tenant-a", "gpt-4-class", 2.00); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, _ = s.GetTenantBudget(ctx, "tenant-a", "gpt-4-class")
	if b.CurrentMonthSpend != 2.00 {
		t.Fatalf("expected spend reset to 2.00 after month rollover, got %f", b.CurrentMonthSpend)
	}
	if b.CurrentMonthKey != registry.MonthKey(time.Now()) {
		t.Fatalf("expected current month key to be refreshed, got %s", b.CurrentMonthKey)
	}
}

func TestTenantBudgetExceeded(t *testing.T) {
	b := registry.TenantBudget{MonthlyBudget: 10, CurrentMonthSpend: 10}
	if !b.ExceedsBudget() {
		t.Fatal("expected budget at exactly the limit to be exceeded")
	}

	unlimited := registry.TenantBudget{MonthlyBudget: 0, CurrentMonthSpend: 1000}
	if unlimited.ExceedsBudget() {
		t.Fatal("expected zero monthly budget to mean unlimited")
	}
}
