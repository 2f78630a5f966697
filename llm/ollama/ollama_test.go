package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/llm"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:           got.Model,
			Message:         llm.Message{Role: "assistant", Content: `{"speakers":[]}`},
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       4,
		})
	}))
	defer srv.Close()

	p, err := NewProvider(Config{BaseURL: srv.URL, Model: "qwen3:8b", Temperature: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "sys",
		Messages:     []llm.Message{{Role: "user", Content: "hi"}},
		JSON:         true,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if got.Stream {
		t.Error("expected stream=false")
	}
	if got.Format != "json" {
		t.Errorf("expected format json, got %q", got.Format)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if got.Options.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", got.Options.Temperature)
	}
	if resp.Content != `{"speakers":[]}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Errorf("expected 14 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestCompleteMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewProvider(Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{})
	if !apperrors.HasCode(err, apperrors.ErrCodeExternalService) {
		t.Errorf("expected EXTERNAL_SERVICE_ERROR, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	p, err := Factory()(map[string]any{"model": "llama3", "timeout": 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != ProviderName {
		t.Errorf("expected %q, got %q", ProviderName, p.Name())
	}
	if p.(*Provider).cfg.Model != "llama3" {
		t.Errorf("expected model llama3, got %q", p.(*Provider).cfg.Model)
	}
}
