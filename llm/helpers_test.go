package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/meetscribe/provider"
)

type fakeProvider struct {
	content string
	err     error
	last    CompletionRequest
}

func (f *fakeProvider) Name() string                       { return "fake" }
func (f *fakeProvider) IsAvailable(_ context.Context) bool { return f.err == nil }
func (f *fakeProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResponse{Content: f.content, Model: "fake"}, nil
}

// Verify helper functions accept the provider.RequestResponse interface.
var _ provider.RequestResponse[CompletionRequest, CompletionResponse] = AsRequestResponse(&fakeProvider{})

func TestComplete(t *testing.T) {
	f := &fakeProvider{content: "The answer is 42."}
	result, err := Complete(context.Background(), AsRequestResponse(f), "You are helpful.", "What is the answer?")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if result != "The answer is 42." {
		t.Errorf("result = %q, want %q", result, "The answer is 42.")
	}
	msgs := f.last.ChatMessages()
	if len(msgs) != 2 || msgs[0].Role != "system" {
		t.Errorf("expected system + user messages, got %+v", msgs)
	}
}

func TestCompleteStructured(t *testing.T) {
	f := &fakeProvider{content: "<think>hmm</think>```json\n{\"speakers\": [{\"label\": \"SPEAKER_00\", \"name\": \"Anna\"}]}\n```"}
	var result struct {
		Speakers []struct {
			Label string `json:"label"`
			Name  string `json:"name"`
		} `json:"speakers"`
	}
	if err := CompleteStructured(context.Background(), AsRequestResponse(f), "Extract.", "text", &result); err != nil {
		t.Fatalf("CompleteStructured() error: %v", err)
	}
	if !f.last.JSON {
		t.Error("expected JSON mode to be requested")
	}
	if len(result.Speakers) != 1 || result.Speakers[0].Name != "Anna" {
		t.Errorf("result = %+v", result)
	}
}

func TestCompleteStructuredPropagatesErrors(t *testing.T) {
	f := &fakeProvider{err: errors.New("down")}
	var out map[string]any
	if err := CompleteStructured(context.Background(), AsRequestResponse(f), "s", "u", &out); err == nil {
		t.Error("expected error")
	}
	f = &fakeProvider{content: "no json here"}
	if err := CompleteStructured(context.Background(), AsRequestResponse(f), "s", "u", &out); err == nil {
		t.Error("expected unmarshal error")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"key": "value"}`, `{"key": "value"}`},
		{"with whitespace", `  {"key": "value"}  `, `{"key": "value"}`},
		{"markdown fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"with prefix text", `Here is the result: {"key": "value"}`, `{"key": "value"}`},
		{"think block", "<think>{\"no\": 1}</think>\n{\"key\": 2}", `{"key": 2}`},
		{"array", `Result: [{"a": 1}]`, `[{"a": 1}]`},
		{"no json", "just text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfigPriority(t *testing.T) {
	cfg := Config{Default: "openai"}
	cfg.Ollama.Enabled = true
	cfg.OpenAI.Enabled = true
	cfg.OpenAI.APIKey = "k"
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	got := cfg.Priority()
	if len(got) != 2 || got[0] != "openai" || got[1] != "ollama" {
		t.Errorf("Priority() = %v, want [openai ollama]", got)
	}

	bad := Config{Default: "claude"}
	if err := bad.Validate(); err == nil {
		t.Error("expected unknown default to fail")
	}
}

func TestFromManagerUsesSelectedBackend(t *testing.T) {
	m := NewManager(WithSelector(&provider.PrioritySelector[Provider]{Priority: []string{"down", "up"}}))
	m.Register("down", func(map[string]any) (Provider, error) {
		return &fakeProvider{err: errors.New("offline")}, nil
	})
	m.Register("up", func(map[string]any) (Provider, error) {
		return &fakeProvider{content: "ok"}, nil
	})
	for _, name := range []string{"down", "up"} {
		if err := m.Initialize(name, nil); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := FromManager(m).Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected fallback backend, got %q", resp.Content)
	}
}
