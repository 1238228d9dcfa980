package cloudflare

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/relaymesh/gateway/pkg/providers"
)

// streamReader reads Workers AI's data: {"response": "..."} stream,
// terminated by a literal data: [DONE] line.
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

// Read reads the next delta chunk from the stream.
func (s *streamReader) Read(ctx context.Context) (*providers.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
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

		line := s.scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var frame CloudflareStreamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// Malformed frame: dropped, not fatal.
			continue
		}

		return &providers.StreamChunk{Model: s.model, Delta: frame.Response}, nil
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
