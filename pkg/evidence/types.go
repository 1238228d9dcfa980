package evidence

import (
	"context"
	"time"
)

// EvidenceRecord is the durable audit trail for one orchestrator attempt
// against one routing candidate. A request that rotates across providers
// produces one record per candidate tried, in attempt order, so the full
// fallback chain can be reconstructed after the fact.
type EvidenceRecord struct {
	// Identity
	ID        string `json:"id"`         // UUID v4
	RequestID string `json:"request_id"` // Correlates records across candidates

	// Timestamps
	RequestTime      time.Time `json:"request_time"`       // When the attempt chain started
	ProviderCallTime time.Time `json:"provider_call_time"` // When this candidate was dispatched
	ResponseTime     time.Time `json:"response_time"`      // When the attempt settled
	RecordedTime     time.Time `json:"recorded_time"`      // When evidence was recorded

	// Request
	RequestHash string `json:"request_hash"` // SHA-256 prompt fingerprint, same across candidates
	Model       string `json:"model"`        // Requested (canonical or alias) model id

	// Routing
	Provider          string `json:"provider"`           // Candidate's provider id
	ProviderModel     string `json:"provider_model"`     // Provider-specific model id
	CandidatePosition int    `json:"candidate_position"` // 0-based position in the candidate list
	Outcome           string `json:"outcome"`            // success, rate-limit, server-error, ...

	// Result
	FinishReason     string        `json:"finish_reason"`     // stop, length, tool_calls
	PromptTokens     int           `json:"prompt_tokens"`     // Actual or estimated prompt tokens
	CompletionTokens int           `json:"completion_tokens"` // Actual or estimated completion tokens
	TotalTokens      int           `json:"total_tokens"`      // Total tokens
	ActualCost       float64       `json:"actual_cost"`       // Amount accrued against the tenant budget
	ProviderLatency  time.Duration `json:"provider_latency"`  // Upstream round-trip time

	// Attribution
	UserID string `json:"user_id"` // Tenant/user identifier
	APIKey string `json:"api_key"` // API key (hashed or redacted)

	// Error info
	Error string `json:"error"` // Error message if the attempt failed
}

// Query defines filter parameters for querying evidence records.
type Query struct {
	// Time range
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive end time

	// Filters
	UserID   string `json:"user_id,omitempty"`  // Filter by user ID
	APIKey   string `json:"api_key,omitempty"`  // Filter by API key
	Provider string `json:"provider,omitempty"` // Filter by provider
	Model    string `json:"model,omitempty"`    // Filter by model
	Outcome  string `json:"outcome,omitempty"`  // Filter by attempt outcome class

	// Thresholds
	MinCost   *float64 `json:"min_cost,omitempty"`   // Minimum cost
	MaxCost   *float64 `json:"max_cost,omitempty"`   // Maximum cost
	MinTokens *int     `json:"min_tokens,omitempty"` // Minimum tokens
	MaxTokens *int     `json:"max_tokens,omitempty"` // Maximum tokens

	// Status
	Status string `json:"status,omitempty"` // "success", "error"

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "timestamp", "cost", "tokens"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage defines the interface for evidence storage backends.
// Implementations must be thread-safe and support concurrent access.
type Storage interface {
	// Store persists an evidence record.
	// Returns an error if the record cannot be written.
	Store(ctx context.Context, record *EvidenceRecord) error

	// Query retrieves evidence records matching the query filters.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*EvidenceRecord, error)

	// QueryStream returns a channel of evidence records for memory-efficient streaming.
	// Use this for large result sets to avoid loading everything in memory.
	//
	// Returns:
	//   - recordsCh: Channel of evidence records (buffered)
	//   - errCh: Channel for errors (buffered, max 1 error)
	//   - error: Immediate error (e.g., invalid query)
	//
	// The channels will be closed when the query completes or errors.
	// Callers should read from both channels until they are closed.
	QueryStream(ctx context.Context, query *Query) (<-chan *EvidenceRecord, <-chan error, error)

	// Count returns the number of evidence records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes evidence records matching the query filters.
	// Returns the number of records deleted.
	// Used for retention policy enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}
