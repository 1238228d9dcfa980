// Package memstore is the in-process Health & Quota Store backend: a
// TTL-keyed concurrent map for per-provider health records, and rolling
// bucketed counters for per-(provider, window) quota. State is shared
// across requests, not request-local.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/relaymesh/gateway/pkg/health"
)

type providerState struct {
	mu             sync.Mutex
	circuit        health.CircuitState
	successes      int
	total          int
	lastOutcome    health.Outcome
	cooldownExpiry time.Time
}

// Store is an in-memory implementation of health.Store.
type Store struct {
	mu        sync.Mutex
	providers map[string]*providerState
	windows   map[string]*quotaWindow // key: provider+"/"+window
	bucket    time.Duration
	cooldowns health.CooldownTable
}

// New creates an in-memory Health & Quota Store. bucket controls the
// granularity of the quota sliding windows (e.g. time.Second).
func New(bucket time.Duration) *Store {
	if bucket <= 0 {
		bucket = time.Second
	}
	return &Store{
		providers: make(map[string]*providerState),
		windows:   make(map[string]*quotaWindow),
		bucket:    bucket,
	}
}

// SetCooldowns overrides the per-outcome-class cooldown table. Call
// before the store is shared across goroutines.
func (s *Store) SetCooldowns(t health.CooldownTable) {
	s.cooldowns = t
}

func (s *Store) stateFor(provider string) *providerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.providers[provider]
	if !ok {
		st = &providerState{circuit: health.CircuitClosed}
		s.providers[provider] = st
	}
	return st
}

func (s *Store) CheckHealth(_ context.Context, provider string) (health.HealthRecord, error) {
	st := s.stateFor(provider)

	st.mu.Lock()
	defer st.mu.Unlock()

	// open -> half-open once cooldown has elapsed.
	if st.circuit == health.CircuitOpen && time.Now().After(st.cooldownExpiry) {
		st.circuit = health.CircuitHalfOpen
	}

	rate := 1.0
	if st.total > 0 {
		rate = float64(st.successes) / float64(st.total)
	}

	return health.HealthRecord{
		Provider:       provider,
		Circuit:        st.circuit,
		SuccessRate:    rate,
		LastOutcome:    st.lastOutcome,
		CooldownExpiry: st.cooldownExpiry,
	}, nil
}

func (s *Store) RecordOutcome(_ context.Context, provider string, outcome health.Outcome) error {
	st := s.stateFor(provider)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.lastOutcome = outcome
	st.total++
	if outcome == health.OutcomeSuccess {
		st.successes++
	}

	if outcome == health.OutcomeSuccess {
		// A success while the cooldown still holds does not close the
		// circuit; the provider must pass through half-open first.
		if st.circuit != health.CircuitOpen || time.Now().After(st.cooldownExpiry) {
			st.circuit = health.CircuitClosed
		}
	} else if outcome.Opens() {
		st.circuit = health.CircuitOpen
		st.cooldownExpiry = time.Now().Add(s.cooldowns.For(outcome))
	}

	return nil
}

func (s *Store) windowFor(provider, window string) *quotaWindow {
	key := provider + "/" + window

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		dur, err := time.ParseDuration(window)
		if err != nil || dur <= 0 {
			dur = time.Minute
		}
		w = newQuotaWindow(dur, s.bucket)
		s.windows[key] = w
	}
	return w
}

func (s *Store) CheckQuota(_ context.Context, provider, window string, limit int64, increment bool) (bool, int64, error) {
	if limit <= 0 {
		return true, -1, nil
	}

	w := s.windowFor(provider, window)

	if !increment {
		current := w.Sum()
		if current >= limit {
			return false, 0, nil
		}
		return true, limit - current, nil
	}

	allowed, sum := w.TryAdd(limit, 1)
	if !allowed {
		return false, 0, nil
	}
	return true, limit - sum, nil
}

func (s *Store) Close() error {
	return nil
}
