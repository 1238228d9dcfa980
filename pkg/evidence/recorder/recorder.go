package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaymesh/gateway/pkg/evidence"
)

// Config contains configuration for the evidence recorder.
type Config struct {
	// Enabled enables evidence recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing evidence to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RedactAPIKeys enables API key redaction.
	// Default: true
	RedactAPIKeys bool

	// MaxFieldLength is the maximum length for text fields before truncation.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		AsyncBuffer:    1000,
		WriteTimeout:   5 * time.Second,
		RedactAPIKeys:  true,
		MaxFieldLength: 500,
	}
}

// AttemptRecord captures one orchestrator attempt against a single
// candidate, extending the in-memory attempt-error aggregation into a
// durable audit trail. One is produced per candidate tried, in attempt
// order, whether it succeeded, rotated, or aborted a stream.
type AttemptRecord struct {
	RequestID         string
	RequestTime       time.Time
	Model             string // requested (canonical or alias) model id
	Provider          string
	ProviderModel     string
	CandidatePosition int    // 0-based position in the candidate list
	RequestHash       string // SHA-256 of the prompt content, for integrity checks
	Outcome           string
	PromptTokens      int
	CompletionTokens  int
	Cost              float64
	FinishReason      string
	ProviderLatency   time.Duration
	Error             string
	UserID            string
	APIKey            string
}

// Recorder records per-attempt evidence for LLM gateway requests. It
// writes asynchronously so a slow storage backend never adds latency to
// the request path.
type Recorder struct {
	storage    evidence.Storage
	config     *Config
	recordChan chan *evidence.EvidenceRecord
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
}

// NewRecorder creates a new evidence recorder with the provided storage backend and configuration.
func NewRecorder(storage evidence.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *evidence.EvidenceRecord, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "evidence.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("evidence recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// RecordAttempt enqueues one attempt for async writing to storage. It
// returns immediately and never blocks the request path on a storage
// write; a full channel drops the record with a logged error.
func (r *Recorder) RecordAttempt(ctx context.Context, a AttemptRecord) error {
	if !r.config.Enabled {
		return nil
	}

	record := r.toEvidenceRecord(a)

	select {
	case r.recordChan <- record:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("evidence record channel full, dropping record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return evidence.NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-r.done:
		return evidence.NewRecorderError(record.ID, context.Canceled)
	}
}

// Close gracefully shuts down the recorder by draining the async channel and
// waiting for all pending writes to complete.
func (r *Recorder) Close() error {
	r.logger.Info("shutting down evidence recorder")
	close(r.done)
	r.wg.Wait()
	r.logger.Info("evidence recorder shut down complete")
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Info("draining evidence channel before shutdown", "pending_count", len(r.recordChan))
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					r.logger.Info("evidence channel drained")
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *evidence.EvidenceRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store evidence record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	r.logger.Debug("evidence recorded",
		"record_id", record.ID,
		"request_id", record.RequestID,
		"provider", record.Provider,
		"duration_ms", duration.Milliseconds(),
	)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow evidence write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}

func (r *Recorder) toEvidenceRecord(a AttemptRecord) *evidence.EvidenceRecord {
	now := time.Now()

	record := &evidence.EvidenceRecord{
		ID:               uuid.New().String(),
		RequestID:        a.RequestID,
		RequestTime:      a.RequestTime,
		ProviderCallTime: a.RequestTime,
		ResponseTime:     now,
		RecordedTime:     now,

		Model:             a.Model,
		Provider:          a.Provider,
		ProviderModel:     a.ProviderModel,
		CandidatePosition: a.CandidatePosition,
		RequestHash:       a.RequestHash,

		PromptTokens:     a.PromptTokens,
		CompletionTokens: a.CompletionTokens,
		TotalTokens:      a.PromptTokens + a.CompletionTokens,
		ActualCost:       a.Cost,
		FinishReason:     a.FinishReason,
		ProviderLatency:  a.ProviderLatency,

		Outcome: a.Outcome,
		Error:   TruncateString(a.Error, r.config.MaxFieldLength),

		UserID: a.UserID,
	}

	if a.APIKey != "" {
		if r.config.RedactAPIKeys {
			record.APIKey = RedactAPIKey(a.APIKey)
		} else {
			record.APIKey = a.APIKey
		}
	}

	return record
}
