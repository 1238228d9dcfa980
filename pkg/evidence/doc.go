// Package evidence provides the durable attempt-audit trail for the
// gateway: every orchestrator attempt against a routing candidate is
// recorded as an immutable evidence record, so the full fallback chain
// of any request can be reconstructed for billing disputes, provider
// postmortems, and compliance audits.
//
// # Architecture
//
// The evidence system consists of three layers:
//
//  1. Evidence Recorder - Turns orchestrator attempts into records
//  2. Storage Backend - Persists evidence records (SQLite, in-memory)
//  3. Query Engine - Retrieves and filters evidence records
//
// # Evidence Records
//
// Each evidence record captures one attempt:
//
//   - Routing attribution (provider, provider model, candidate position)
//   - Outcome class (success, rate-limit, server-error, ...)
//   - Usage and billing (tokens, accrued cost, finish reason)
//   - Prompt fingerprint (SHA-256, shared across a request's attempts)
//   - Timestamps and upstream latency
//   - Error information (if the attempt failed)
//
// # Recording Flow
//
// Evidence is recorded asynchronously to avoid adding latency to the
// dispatch path:
//
//	Orchestrator Attempt → Settles (success / rotate / abort)
//	     ↓
//	Evidence Recorder (async channel)
//	     ↓
//	Build Evidence Record
//	     ↓
//	Storage Backend (SQLite, WAL mode)
//
// # Basic Usage
//
//	// Initialize storage backend
//	storage, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path: "data/evidence.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer storage.Close()
//
//	// Create evidence recorder
//	recorder := recorder.NewRecorder(storage, &recorder.Config{
//	    Enabled: true,
//	    AsyncBuffer: 1000,
//	})
//	defer recorder.Close()
//
//	// Record one attempt (async, non-blocking)
//	recorder.RecordAttempt(ctx, attempt)
//
// # Querying Evidence
//
//	// Build query
//	query := &evidence.Query{
//	    StartTime: &startTime,
//	    EndTime: &endTime,
//	    UserID: "tenant-123",
//	    Outcome: "rate-limit",
//	    Limit: 100,
//	}
//
//	// Execute query
//	records, err := storage.Query(ctx, query)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Retention Policies
//
// Evidence can be automatically pruned based on age:
//
//	// Create retention pruner
//	pruner := retention.NewPruner(storage, &retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *", // Daily at 3 AM
//	    ArchiveBeforeDelete: true,
//	})
//
//	// Start background pruning
//	pruner.Start(ctx)
//	defer pruner.Stop()
//
// # Performance
//
// The evidence system is designed for high throughput:
//   - Async recording: >1000 writes/sec, <5ms per record
//   - Indexed queries: <100ms for typical queries
//   - WAL mode: Concurrent reads/writes without blocking
//   - Prepared statements: Reduced query overhead
//
// # Thread Safety
//
// All evidence types are safe for concurrent use:
//   - Recorder: Thread-safe async channel
//   - Storage: Thread-safe with connection pooling
//   - Query: Stateless, can be executed concurrently
//
// Custom storage backends can be implemented by satisfying the Storage
// interface.
package evidence
