// Package recorder provides attempt-audit recording for the RelayMesh
// gateway. It turns each orchestrator attempt against an upstream
// candidate into a durable evidence record: which provider was tried,
// in what order, with what outcome, token usage, and cost.
//
// # Recording Flow
//
// Evidence is recorded asynchronously to avoid blocking request handling:
//
//  1. The orchestrator dispatches a request to a candidate provider
//  2. The attempt settles (success, rotation, or stream abort)
//  3. RecordAttempt creates an evidence record and enqueues it (non-blocking)
//  4. A background goroutine drains the channel and writes to storage
//  5. Graceful shutdown drains the channel before exit (zero data loss)
//
// # Basic Usage
//
//	// Create evidence recorder
//	recorder := recorder.NewRecorder(storage, &recorder.Config{
//	    Enabled: true,
//	    AsyncBuffer: 1000,
//	    WriteTimeout: 5 * time.Second,
//	    RedactAPIKeys: true,
//	})
//	defer recorder.Close()
//
//	// Record one attempt (async)
//	recorder.RecordAttempt(ctx, attempt)
//
// # Hashing
//
// Prompt content is fingerprinted with SHA-256:
//
//   - Hash only first 1MB of large content (prevents memory exhaustion)
//   - Hashes are hex-encoded for storage
//   - Records for the same request across candidates share the hash
//
// # API Key Redaction
//
// API keys are redacted before storage to prevent leakage:
//
//   - Hash API keys with SHA-256 (cannot be reversed)
//   - Redaction can be disabled via configuration
//
// # Thread Safety
//
// The recorder is thread-safe and can be used concurrently:
//
//   - RecordAttempt() is safe from many request goroutines at once
//   - The background goroutine is the only writer to storage
package recorder
