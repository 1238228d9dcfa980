package promptcollapse

import (
	"bufio"
	"context"
	"io"

	"github.com/relaymesh/gateway/pkg/providers"
)

// streamReader reads a prompt-collapse provider's raw-text stream, one
// line-buffered chunk at a time. There is no event framing: each line the
// upstream flushes becomes one StreamChunk delta.
type streamReader struct {
	provider *providers.HTTPProvider
	model    string
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool
}

func newStreamReader(ctx context.Context, provider *providers.HTTPProvider, model, url string, body []byte, headers map[string]string) (*streamReader, error) {
	resp, err := provider.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		provider: provider,
		model:    model,
		resp:     resp.Body,
		scanner:  bufio.NewScanner(resp.Body),
	}, nil
}

// Read returns the next line of raw text as a delta.
func (s *streamReader) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, &providers.StreamError{
				Provider: s.provider.GetName(),
				Message:  "failed to read stream",
				Cause:    err,
			}
		}
		return nil, io.EOF
	}

	return &providers.StreamChunk{Model: s.model, Delta: s.scanner.Text() + "\n"}, nil
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
