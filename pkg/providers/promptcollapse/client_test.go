package promptcollapse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	testhelpers "github.com/relaymesh/gateway/internal/providers"
	"github.com/relaymesh/gateway/pkg/providers"
)

func TestPromptCollapseProvider_SendCompletion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       "Hello, world!",
	})

	config := testhelpers.TestConfigWithURL("promptcollapse", "promptcollapse", mock.URL())
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.CompletionRequest{
		Model:    "collapsed-model",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hi there"}},
	}

	resp, err := provider.SendCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("SendCompletion failed: %v", err)
	}

	if resp.Content != "Hello, world!" {
		t.Errorf("expected content %q, got %q", "Hello, world!", resp.Content)
	}
}

func TestPromptCollapseProvider_CollapsesMessages(t *testing.T) {
	req := &providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "be terse"},
			{Role: providers.RoleUser, Content: "hi"},
		},
	}

	got := collapsePrompt(req)
	want := "system: be terse\nuser: hi\n"
	if got != want {
		t.Errorf("expected collapsed prompt %q, got %q", want, got)
	}
}

func TestPromptCollapseProvider_StreamCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, "Hello")
		flusher.Flush()
		fmt.Fprintln(w, "world!")
		flusher.Flush()
	}))
	defer server.Close()

	config := testhelpers.TestConfigWithURL("promptcollapse", "promptcollapse", server.URL)
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.CompletionRequest{
		Model:    "collapsed-model",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hi"}},
		Stream:   true,
	}

	chunks, err := provider.StreamCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}

	var lines []string
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Error)
		}
		lines = append(lines, chunk.Delta)
	}

	if len(lines) != 2 || lines[0] != "Hello\n" || lines[1] != "world!\n" {
		t.Errorf("expected two line-buffered chunks, got %v", lines)
	}
}
