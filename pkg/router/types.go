// Package router implements the Smart Router: it turns a requested model
// id into a totally ordered list of Candidates, gating on tenant budget
// and filtering on health/quota state along the way.
//
// Ordering is deterministic: for a fixed registry, health, and quota
// state, identical inputs always produce the same candidate list.
package router

import (
	"errors"

	"github.com/relaymesh/gateway/pkg/registry"
)

// Candidate is one fully-scored, ordered routing option for a request.
type Candidate struct {
	ProviderID      string
	ProviderModelID string
	GlobalModelID   string
	IsFree          bool
	AliasPosition   int // 0 when the request was not an alias
	Score           float64
	RateLimitRPM    int // 0 means unlimited; orchestrator uses this for the increment-checked quota re-check
}

// Weights configures the scoring formula's four terms. All weights are
// expected to sum to roughly 1.0 but this is not enforced; callers own
// normalization.
type Weights struct {
	Tier    float64
	Health  float64
	Latency float64
	Cost    float64
}

// DefaultWeights mirrors a balanced, health-and-cost-leaning default.
func DefaultWeights() Weights {
	return Weights{Tier: 0.2, Health: 0.35, Latency: 0.2, Cost: 0.25}
}

// ErrModelNotFound is returned when requested-model resolves to nothing,
// directly in canonical form and via no configured alias either.
var ErrModelNotFound = registry.ErrModelNotFound

// ErrBudgetExceeded is returned by the tenant gate step.
var ErrBudgetExceeded = errors.New("router: tenant budget exceeded")
