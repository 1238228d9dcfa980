package google

import (
	"context"
	"testing"

	testhelpers "github.com/relaymesh/gateway/internal/providers"
	"github.com/relaymesh/gateway/pkg/providers"
)

func TestGoogleProvider_SendCompletion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/models/gemini-pro:generateContent", testhelpers.MockResponse{
		StatusCode: 200,
		Body: map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role": "model",
						"parts": []map[string]interface{}{
							{"text": "Hello, world!"},
						},
					},
					"finishReason": "STOP",
				},
			},
			"usageMetadata": map[string]interface{}{
				"promptTokenCount":     5,
				"candidatesTokenCount": 10,
				"totalTokenCount":      15,
			},
		},
	})

	config := testhelpers.TestConfigWithURL("google", "google", mock.URL())
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.CompletionRequest{
		Model: "gemini-pro",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "Be terse."},
			{Role: providers.RoleUser, Content: "Hi"},
		},
	}

	ctx := context.Background()
	resp, err := provider.SendCompletion(ctx, req)
	if err != nil {
		t.Fatalf("SendCompletion failed: %v", err)
	}

	if resp.Content != "Hello, world!" {
		t.Errorf("expected content %q, got %q", "Hello, world!", resp.Content)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("expected finish reason %q, got %q", providers.FinishReasonStop, resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected total tokens 15, got %d", resp.Usage.TotalTokens)
	}
}

func TestGoogleProvider_ToolRoleRejected(t *testing.T) {
	config := testhelpers.TestConfig("google", "google")
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.CompletionRequest{
		Model: "gemini-pro",
		Messages: []providers.Message{
			{Role: providers.RoleTool, Content: "result", ToolCallID: "call_1"},
		},
	}

	_, err = provider.SendCompletion(context.Background(), req)
	if err == nil {
		t.Fatal("expected validation error for tool-role message, got nil")
	}
	if _, ok := err.(*providers.ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestGoogleProvider_StreamCompletion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	frame := func(text, finish string) string {
		return `{"response":{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"` + finish + `"}]}}`
	}

	mock.SetResponse("/models/gemini-pro:streamGenerateContent", testhelpers.MockResponse{
		StatusCode: 200,
		StreamChunks: []string{
			frame("Hello", ""),
			frame(", world!", "STOP"),
		},
	})

	config := testhelpers.TestConfigWithURL("google", "google", mock.URL())
	provider, err := NewProvider(config)
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := &providers.CompletionRequest{
		Model:    "gemini-pro",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "Hi"}},
		Stream:   true,
	}

	chunks, err := provider.StreamCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}

	collected, err := testhelpers.CollectStreamChunks(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	full := testhelpers.ConcatenateChunks(collected)
	if full != "Hello, world!" {
		t.Errorf("expected concatenated content %q, got %q", "Hello, world!", full)
	}
}
