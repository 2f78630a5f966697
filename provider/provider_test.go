package provider

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/resilience"
)

type fakeProvider struct {
	name      string
	available bool
	calls     atomic.Int32
	fail      int32
	err       error
	closed    bool
}

func (f *fakeProvider) Name() string                       { return f.name }
func (f *fakeProvider) IsAvailable(_ context.Context) bool { return f.available }
func (f *fakeProvider) Execute(_ context.Context, in string) (string, error) {
	n := f.calls.Add(1)
	if n <= f.fail {
		return "", f.err
	}
	return strings.ToUpper(in), nil
}
func (f *fakeProvider) Close(_ context.Context) error {
	f.closed = true
	return nil
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware[string, string] {
		return func(inner RequestResponse[string, string]) RequestResponse[string, string] {
			return Func(inner.Name(), func(ctx context.Context, in string) (string, error) {
				order = append(order, tag)
				return inner.Execute(ctx, in)
			})
		}
	}
	base := Func("base", func(_ context.Context, in string) (string, error) {
		order = append(order, "base")
		return in, nil
	})

	if _, err := Chain(mw("a"), mw("b"))(base).Execute(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "a,b,base"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("expected order %s, got %s", want, got)
	}
}

func TestWithResilience_RetriesTransient(t *testing.T) {
	p := &fakeProvider{name: "whisper", available: true, fail: 2, err: apperrors.ServiceUnavailable("whisper")}
	wrapped := WithResilience[string, string](p, ResilienceConfig{
		Retry: &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	})
	got, err := wrapped.Execute(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "HI" || p.calls.Load() != 3 {
		t.Errorf("expected HI after 3 calls, got %q after %d", got, p.calls.Load())
	}
}

func TestWithResilience_DoesNotRetryInputErrors(t *testing.T) {
	p := &fakeProvider{name: "whisper", available: true, fail: 5, err: apperrors.InvalidInput("audio", "empty")}
	wrapped := WithResilience[string, string](p, ResilienceConfig{
		Retry: &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	})
	_, err := wrapped.Execute(context.Background(), "hi")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", p.calls.Load())
	}
}

func TestWithResilience_CircuitOpenIsServiceUnavailable(t *testing.T) {
	p := &fakeProvider{name: "pyannote", available: true, fail: 100, err: errors.New("connection refused")}
	cb := resilience.DefaultCircuitBreakerConfig("pyannote")
	cb.MaxFailures = 1
	wrapped := WithResilience[string, string](p, ResilienceConfig{CircuitBreaker: &cb})

	_, _ = wrapped.Execute(context.Background(), "a")
	if wrapped.IsAvailable(context.Background()) {
		t.Error("expected provider unavailable while breaker is open")
	}
	_, err := wrapped.Execute(context.Background(), "a")
	if !apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("expected breaker to short-circuit, got %d calls", p.calls.Load())
	}
}

func TestManager_PriorityAndClose(t *testing.T) {
	reg := NewRegistry[RequestResponse[string, string]]()
	ollama := &fakeProvider{name: "ollama", available: false}
	openai := &fakeProvider{name: "openai", available: true}
	reg.RegisterFactory("ollama", func(map[string]any) (RequestResponse[string, string], error) { return ollama, nil })
	reg.RegisterFactory("openai", func(map[string]any) (RequestResponse[string, string], error) { return openai, nil })

	mgr := NewManager(reg, &PrioritySelector[RequestResponse[string, string]]{Priority: []string{"ollama", "openai"}})
	for _, name := range reg.List() {
		if err := mgr.Initialize(name, nil); err != nil {
			t.Fatalf("initialize %s: %v", name, err)
		}
	}

	p, err := mgr.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("expected fallback to openai, got %s", p.Name())
	}

	if err := mgr.SetDefault("missing"); err == nil {
		t.Error("expected error for unknown default")
	}
	if got := mgr.Available(); len(got) != 2 || got[0] != "ollama" {
		t.Errorf("expected sorted [ollama openai], got %v", got)
	}

	if err := mgr.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !ollama.closed || !openai.closed {
		t.Error("expected every provider to be closed")
	}
}

func TestRegistry_UnknownFactory(t *testing.T) {
	reg := NewRegistry[RequestResponse[string, string]]()
	if _, err := reg.Create("nope", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRegistry_RemembersCreated(t *testing.T) {
	reg := NewRegistry[RequestResponse[string, string]]()
	whisper := &fakeProvider{name: "whisper", available: true}
	reg.RegisterFactory("whisper", func(map[string]any) (RequestResponse[string, string], error) { return whisper, nil })
	if _, ok := reg.Get("whisper"); ok {
		t.Fatal("expected nothing before Create")
	}
	if _, err := reg.Create("whisper", nil); err != nil {
		t.Fatal(err)
	}
	if got, ok := reg.Get("whisper"); !ok || got.Name() != "whisper" {
		t.Errorf("Get() = %v, %v", got, ok)
	}
}

func TestSelectors(t *testing.T) {
	providers := map[string]RequestResponse[string, string]{
		"b": &fakeProvider{name: "b", available: true},
		"a": &fakeProvider{name: "a", available: false},
		"c": &fakeProvider{name: "c", available: true},
	}
	tests := []struct {
		name    string
		sel     Selector[RequestResponse[string, string]]
		want    string
		wantErr bool
	}{
		{name: "first available by name", sel: FirstAvailable[RequestResponse[string, string]]{}, want: "b"},
		{name: "priority", sel: &PrioritySelector[RequestResponse[string, string]]{Priority: []string{"a", "c", "b"}}, want: "c"},
		{name: "priority skips unknown", sel: &PrioritySelector[RequestResponse[string, string]]{Priority: []string{"x", "b"}}, want: "b"},
		{name: "none available", sel: &PrioritySelector[RequestResponse[string, string]]{Priority: []string{"a"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.sel.Select(context.Background(), providers)
			if tt.wantErr {
				if !errors.Is(err, ErrNoProvider) {
					t.Fatalf("expected ErrNoProvider, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Name() != tt.want {
				t.Errorf("Select() = %s, want %s", got.Name(), tt.want)
			}
		})
	}
}
