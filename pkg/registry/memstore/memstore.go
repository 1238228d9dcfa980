// Package memstore is the in-process Dynamic Model Registry backend, used
// for tests and single-process deployments that don't need the registry
// to survive a restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/relaymesh/gateway/pkg/registry"
)

func providerKey(providerID, providerModelID string) string {
	return providerID + "/" + providerModelID
}

// Store is an in-memory implementation of registry.Store.
type Store struct {
	mu                sync.RWMutex
	globals           map[string]registry.GlobalModel
	provider          map[string]map[string]registry.ProviderModel // globalID -> providerKey(providerID, providerModelID) -> ProviderModel
	byProviderModelID map[string]string                            // providerModelID -> globalID, for normalized-lookup fallback
	budgets           map[string]registry.TenantBudget             // tenantID+"/"+globalID -> budget
	stalenessHorizon  time.Duration
}

// New creates an empty in-memory registry store.
func New() *Store {
	return &Store{
		globals:           make(map[string]registry.GlobalModel),
		provider:          make(map[string]map[string]registry.ProviderModel),
		byProviderModelID: make(map[string]string),
		budgets:           make(map[string]registry.TenantBudget),
	}
}

// NewWithStalenessHorizon is New with a staleness horizon: a ProviderModel
// is excluded from ResolveModel once time.Since(LastSeen) exceeds it (spec
// §4.3). Zero disables the check.
func NewWithStalenessHorizon(horizon time.Duration) *Store {
	s := New()
	s.stalenessHorizon = horizon
	return s
}

func (s *Store) ResolveModel(_ context.Context, requestedID string) (registry.GlobalModel, []registry.ProviderModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.globals[requestedID]
	if !ok {
		// requestedID didn't match a canonical GlobalModel id; fall back
		// to a provider-specific id lookup per the normalized-lookup rule.
		globalID, found := s.byProviderModelID[requestedID]
		if !found {
			return registry.GlobalModel{}, nil, registry.ErrModelNotFound
		}
		g, ok = s.globals[globalID]
		if !ok {
			return registry.GlobalModel{}, nil, registry.ErrModelNotFound
		}
	}

	byProvider := s.provider[g.ID]
	pms := make([]registry.ProviderModel, 0, len(byProvider))
	for _, pm := range byProvider {
		if !pm.Available {
			continue
		}
		if s.stalenessHorizon > 0 && time.Since(pm.LastSeen) > s.stalenessHorizon {
			continue
		}
		pms = append(pms, pm)
	}

	return g, pms, nil
}

func (s *Store) ListGlobalModels(_ context.Context) ([]registry.GlobalModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]registry.GlobalModel, 0, len(s.globals))
	for _, g := range s.globals {
		out = append(out, g)
	}
	return out, nil
}

func budgetKey(tenantID, globalID string) string {
	return tenantID + "/" + globalID
}

func (s *Store) GetTenantBudget(_ context.Context, tenantID, globalModelID string) (*registry.TenantBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey(tenantID, globalModelID)
	b, ok := s.budgets[key]
	if !ok {
		return nil, nil
	}

	b = resetIfStale(b)
	s.budgets[key] = b

	out := b
	return &out, nil
}

func resetIfStale(b registry.TenantBudget) registry.TenantBudget {
	currentKey := registry.MonthKey(time.Now())
	if b.CurrentMonthKey != currentKey {
		b.CurrentMonthKey = currentKey
		b.CurrentMonthSpend = 0
	}
	return b
}

func (s *Store) UpsertGlobalModel(_ context.Context, model registry.GlobalModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	model.LastSync = time.Now()
	s.globals[model.ID] = model
	return nil
}

func (s *Store) UpsertProviderModel(_ context.Context, pm registry.ProviderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProvider, ok := s.provider[pm.GlobalModelID]
	if !ok {
		byProvider = make(map[string]registry.ProviderModel)
		s.provider[pm.GlobalModelID] = byProvider
	}

	pm.LastSeen = time.Now()
	byProvider[providerKey(pm.ProviderID, pm.ProviderModelID)] = pm
	s.byProviderModelID[pm.ProviderModelID] = pm.GlobalModelID
	return nil
}

func (s *Store) MarkProviderModelsStale(_ context.Context, providerID string, seenIDs map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for globalID, byProvider := range s.provider {
		for key, pm := range byProvider {
			if pm.ProviderID != providerID {
				continue
			}
			if !seenIDs[pm.ProviderModelID] {
				pm.Available = false
				byProvider[key] = pm
				s.provider[globalID] = byProvider
			}
		}
	}
	return nil
}

func (s *Store) SetTenantBudget(_ context.Context, tenantID, globalModelID string, allowedRPM int, monthlyBudget float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey(tenantID, globalModelID)
	b, ok := s.budgets[key]
	if !ok {
		b = registry.TenantBudget{
			TenantID:        tenantID,
			GlobalModelID:   globalModelID,
			CurrentMonthKey: registry.MonthKey(time.Now()),
		}
	} else {
		b = resetIfStale(b)
	}

	b.AllowedRPM = allowedRPM
	b.MonthlyBudget = monthlyBudget
	s.budgets[key] = b
	return nil
}

func (s *Store) AccrueSpend(_ context.Context, tenantID, globalModelID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := budgetKey(tenantID, globalModelID)
	b, ok := s.budgets[key]
	if !ok {
		b = registry.TenantBudget{
			TenantID:        tenantID,
			GlobalModelID:   globalModelID,
			CurrentMonthKey: registry.MonthKey(time.Now()),
		}
	} else {
		b = resetIfStale(b)
	}

	b.CurrentMonthSpend += amount
	s.budgets[key] = b
	return nil
}

func (s *Store) Close() error {
	return nil
}
