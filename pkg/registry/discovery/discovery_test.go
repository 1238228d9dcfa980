package discovery

import (
	"context"
	"testing"

	"github.com/relaymesh/gateway/pkg/registry"
	"github.com/relaymesh/gateway/pkg/registry/memstore"
)

type staticLister struct {
	providerID string
	models     []DiscoveredModel
	err        error
}

func (l *staticLister) ProviderID() string { return l.providerID }

func (l *staticLister) ListModels(ctx context.Context) ([]DiscoveredModel, error) {
	return l.models, l.err
}

func seedCatalog(t *testing.T, store registry.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := store.UpsertGlobalModel(context.Background(), registry.GlobalModel{ID: id}); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}
}

func TestSweepProviderUpsertsObservedModels(t *testing.T) {
	store := memstore.New()
	guard := registry.NewWriteGuard()
	seedCatalog(t, store, "gpt-4-class")

	lister := &staticLister{providerID: "openai-primary", models: []DiscoveredModel{
		{ProviderModelID: "gpt-4o", CanonicalID: "gpt-4-class", RateLimitRPM: 500},
	}}

	s := New([]Lister{lister}, store, guard, Config{Schedule: "*/5 * * * *"}, nil)
	s.sweepProvider(context.Background(), lister)

	_, pms, err := store.ResolveModel(context.Background(), "gpt-4-class")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pms) != 1 || !pms[0].Available {
		t.Fatalf("expected available provider model, got %+v", pms)
	}
}

func TestSweepProviderMarksUnseenModelsStale(t *testing.T) {
	store := memstore.New()
	guard := registry.NewWriteGuard()
	seedCatalog(t, store, "gpt-4-class", "gpt-4-legacy-class")

	_ = store.UpsertProviderModel(context.Background(), registry.ProviderModel{
		ProviderID: "openai-primary", ProviderModelID: "gpt-4-legacy", GlobalModelID: "gpt-4-legacy-class", Available: true,
	})

	// This sweep no longer reports the legacy provider-model id, so its
	// mapping should go stale without a matching catalog entry being touched.
	lister := &staticLister{providerID: "openai-primary", models: []DiscoveredModel{
		{ProviderModelID: "gpt-4o", CanonicalID: "gpt-4-class"},
	}}

	s := New([]Lister{lister}, store, guard, Config{Schedule: "*/5 * * * *"}, nil)
	s.sweepProvider(context.Background(), lister)

	_, pms, _ := store.ResolveModel(context.Background(), "gpt-4-legacy-class")
	if len(pms) != 1 || pms[0].Available {
		t.Fatalf("expected stale legacy model marked unavailable, got %+v", pms)
	}
}

func TestSweepProviderSkipsModelWithNoCatalogEntry(t *testing.T) {
	store := memstore.New()
	guard := registry.NewWriteGuard()
	// No catalog entry seeded for "unknown-model".

	lister := &staticLister{providerID: "openai-primary", models: []DiscoveredModel{
		{ProviderModelID: "mystery", CanonicalID: "unknown-model"},
	}}

	s := New([]Lister{lister}, store, guard, Config{Schedule: "*/5 * * * *"}, nil)
	s.sweepProvider(context.Background(), lister) // must not panic or error
}

func TestSweepProviderIsolatesListingFailure(t *testing.T) {
	store := memstore.New()
	guard := registry.NewWriteGuard()

	failing := &staticLister{providerID: "broken-provider", err: context.DeadlineExceeded}
	s := New([]Lister{failing}, store, guard, Config{Schedule: "*/5 * * * *"}, nil)
	s.sweepProvider(context.Background(), failing) // must not panic
}
