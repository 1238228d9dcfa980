package providers

import (
	"context"
	"errors"
	"io"
)

// Provider is the uniform capability every upstream adapter implements:
// one unary chat call and one streaming chat call over a single wire
// family (OpenAI-shaped, Google-shaped, Cohere-shaped, Cloudflare-shaped,
// prompt-collapse, or a vendor-specific wrapper). The router and fallback
// orchestrator treat all candidates through this contract; nothing above
// the adapter layer knows which wire format a candidate speaks.
//
// Adapters are stateless with respect to requests. Credentials, endpoint
// base, and custom headers are bound at construction via ProviderConfig;
// instances are safe for concurrent invocation across requests.
//
// All methods accept a context.Context. Cancelling it must abort the
// in-flight upstream connection and return promptly.
type Provider interface {
	// SendCompletion performs one unary chat call: the canonical request
	// is translated to the wire format, sent upstream, and the response
	// normalized back, with usage counts when the upstream supplies them.
	//
	// Failures come back as the typed errors in this package so the
	// orchestrator can classify them (rotate, open circuit, or abort).
	SendCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion performs one streaming chat call, returning a lazy
	// finite sequence of updates in wire-arrival order. The terminal
	// update carries the finish reason and, when the upstream supplies
	// them, usage totals.
	//
	// The adapter is the sole producer on the returned channel and closes
	// it on all exit paths. A mid-stream failure is delivered as a final
	// chunk with Error set, never a silent close. Abandoning the channel
	// (cancelling ctx) tears down the upstream transport.
	StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// HealthCheck sends a lightweight probe to verify the upstream is
	// reachable. It feeds the readiness endpoints, not routing: the
	// router consults the shared health store instead.
	HealthCheck(ctx context.Context) error

	// GetName returns the provider id candidates are keyed by.
	GetName() string

	// GetType returns the wire-family type (openai, google, cohere, ...).
	GetType() string

	// GetConfig returns the configuration the adapter was built with.
	GetConfig() ProviderConfig

	// IsHealthy reports this instance's transport-level health. This is
	// per-process state, distinct from the shared circuit breaker.
	IsHealthy() bool

	// GetHealth returns detailed per-instance health counters.
	GetHealth() ProviderHealth

	// Close releases the adapter's transport resources (connection pool,
	// background probes). The adapter must not be used afterwards.
	Close() error
}

// StreamReader is the pull side of an adapter's wire-format parser: it
// decodes one upstream frame per call, hiding SSE/JSON-lines/raw-text
// differences behind a single read loop.
type StreamReader interface {
	// Read returns the next decoded chunk. Malformed frames are dropped
	// by the reader, not surfaced. Returns (nil, io.EOF) when the stream
	// ends normally, and (nil, nil) when the reader has nothing more to
	// yield but the end marker was implicit.
	Read(ctx context.Context) (*StreamChunk, error)

	// Close tears down the upstream connection.
	Close() error
}

// ForwardStream bridges a StreamReader onto the channel the dispatch
// path consumes, implementing the producer half of the streaming
// contract shared by every adapter: chunks are forwarded in arrival
// order, a read failure becomes a terminal error chunk, and the channel
// is closed on every exit path with the upstream torn down.
//
// model stamps chunks the wire format leaves unlabeled. stopAtFinish
// ends the stream at the first finish-reason-bearing chunk, for wire
// formats whose terminal event carries everything; leave it false when
// usage may trail the finish reason in a later frame.
func ForwardStream(ctx context.Context, r StreamReader, model string, stopAtFinish bool) <-chan *StreamChunk {
	chunks := make(chan *StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer r.Close()

		for {
			chunk, err := r.Read(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				chunks <- &StreamChunk{Error: err}
				return
			}
			if chunk == nil {
				return
			}

			if chunk.Model == "" {
				chunk.Model = model
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}

			if stopAtFinish && chunk.FinishReason != "" {
				return
			}
		}
	}()

	return chunks
}
