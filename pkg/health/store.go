package health

import "context"

// Store is the shared Health & Quota Store contract. Implementations
// must be safe for concurrent use by many request goroutines at once.
type Store interface {
	// CheckHealth returns the current HealthRecord for a provider.
	// A provider with no recorded history returns {closed, 1.0}.
	CheckHealth(ctx context.Context, provider string) (HealthRecord, error)

	// RecordOutcome updates the provider's sliding success rate and,
	// depending on the outcome and current circuit state, its circuit
	// state and cooldown expiry. See CircuitState transition rules in
	// the package doc.
	RecordOutcome(ctx context.Context, provider string, outcome Outcome) error

	// CheckQuota atomically tests-and-optionally-increments the counter
	// for (provider, window). If increment is false this is a peek: the
	// counter is not modified, only compared. limit <= 0 means
	// unlimited (always allowed, no increment).
	CheckQuota(ctx context.Context, provider, window string, limit int64, increment bool) (allowed bool, remaining int64, err error)

	// Close releases any resources (connections, background goroutines).
	Close() error
}
