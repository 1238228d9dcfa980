package cohere

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/relaymesh/gateway/pkg/providers"
)

// streamReader reads Cohere's named-SSE-event stream: content-delta
// carries text deltas, message-end carries finish-reason and usage.
// Unknown event names are ignored.
type streamReader struct {
	provider *providers.HTTPProvider
	resp     io.ReadCloser
	scanner  *bufio.Scanner
	closed   bool
}

func newStreamReader(ctx context.Context, provider *providers.HTTPProvider, url string, req *CohereRequest, headers map[string]string) (*streamReader, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := provider.DoRequest(ctx, "POST", url, body, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		provider: provider,
		resp:     resp.Body,
		scanner:  bufio.NewScanner(resp.Body),
	}, nil
}

// Read reads the next chunk, skipping named events this adapter does not
// forward (message-start, content-start, content-end, etc.) until it has
// a content-delta or message-end to return.
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

		eventType, data, err := s.readEvent()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &providers.StreamError{
				Provider: s.provider.GetName(),
				Message:  "failed to read stream",
				Cause:    err,
			}
		}

		switch eventType {
		case "content-delta":
			var ev ContentDeltaEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				// Malformed frame: dropped, not fatal.
				continue
			}
			return &providers.StreamChunk{Delta: ev.Delta.Message.Content.Text}, nil

		case "message-end":
			var ev MessageEndEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}
			chunk := &providers.StreamChunk{FinishReason: normalizeFinishReason(ev.Delta.FinishReason)}
			if ev.Delta.Usage != nil {
				u := usageFromBilledUnits(ev.Delta.Usage.BilledUnits)
				chunk.Usage = &u
			}
			return chunk, nil

		default:
			// Unknown/uninteresting named event: ignored, keep reading.
			continue
		}
	}
}

// readEvent reads one SSE event (event: name\ndata: json\n\n) and returns
// its name and raw data payload.
func (s *streamReader) readEvent() (string, string, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}

	if eventType == "" && len(dataLines) == 0 {
		return "", "", io.EOF
	}

	return eventType, strings.Join(dataLines, "\n"), nil
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Close()
}
