// Package registry implements the Dynamic Model Registry: the persisted
// GlobalModel <-> ProviderModel graph and per-tenant budget guardrails,
// plus the read queries the Smart Router depends on.
//
// Writes are performed only by the background writers in
// pkg/registry/catalogsync and pkg/registry/discovery — no foreground
// request path writes to the registry directly, preserving read
// consistency for routing.
package registry

import "time"

// Capabilities are the optional capability flags a GlobalModel may carry.
type Capabilities struct {
	Tools     bool `json:"tools"`
	Vision    bool `json:"vision"`
	Streaming bool `json:"streaming"`
}

// GlobalModel is the canonical, vendor-neutral model entry.
// Id is immutable once written. Prices are non-negative; both prices ==
// 0 marks the model free-tier.
type GlobalModel struct {
	ID              string
	DisplayName     string
	ContextWindow   int
	InputPricePerM  float64
	OutputPricePerM float64
	Capabilities    Capabilities
	LastSync        time.Time
}

// IsFree reports whether the model is free-tier (input price is zero).
func (g GlobalModel) IsFree() bool {
	return g.InputPricePerM == 0
}

// ProviderModel records which provider serves which canonical model, at
// what provider-specific id. The pair (ProviderID, ProviderModelID) is
// unique.
type ProviderModel struct {
	ProviderID      string
	ProviderModelID string
	GlobalModelID   string
	Available       bool
	LastSeen        time.Time
	RateLimitRPM    int
	Successes       int64
	Failures        int64
	P95LatencyMS    float64 // 0 means not observed
}

// TenantBudget is a per-(tenant, model) guardrail. Spend resets at the
// UTC calendar-month boundary, not on a rolling window.
type TenantBudget struct {
	TenantID          string
	GlobalModelID     string
	AllowedRPM        int
	MonthlyBudget     float64
	CurrentMonthKey   string // "YYYY-MM" in UTC
	CurrentMonthSpend float64
}

// ExceedsBudget reports whether the router's tenant-budget gate should
// reject: current-month-spend >= monthly-budget.
func (b TenantBudget) ExceedsBudget() bool {
	if b.MonthlyBudget <= 0 {
		return false // no budget configured means unlimited
	}
	return b.CurrentMonthSpend >= b.MonthlyBudget
}

// MonthKey returns the UTC "YYYY-MM" key for t, used to detect and apply
// month-boundary resets.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
