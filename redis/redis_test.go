package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	cfg := Config{Enabled: true, Addr: mini.Addr()}
	client, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

type cachedTokens struct {
	Words []string  `json:"words"`
	Ends  []float64 `json:"ends"`
}

func TestTypedStoreSaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[cachedTokens](client, "tokens")
	ctx := context.Background()

	in := cachedTokens{Words: []string{"hello", "world"}, Ends: []float64{0.4, 0.9}}
	if err := store.Save(ctx, "m1", &in, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Load(ctx, "m1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || len(got.Words) != 2 || got.Ends[1] != 0.9 {
		t.Fatalf("expected round-tripped tokens, got %+v", got)
	}
}

func TestTypedStoreLoadMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewTypedStore[cachedTokens](client, "tokens")

	got, err := store.Load(context.Background(), "absent")
	if err != nil {
		t.Fatalf("expected nil error for missing key, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil value, got %+v", got)
	}
}

func TestTypedStoreDeleteAndTTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewTypedStore[cachedTokens](client, "turns")
	ctx := context.Background()

	v := cachedTokens{Words: []string{"a"}}
	_ = store.Save(ctx, "keep", &v, 0)
	_ = store.Save(ctx, "expire", &v, 2*time.Second)

	if err := store.Delete(ctx, "keep"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := store.Load(ctx, "keep"); got != nil {
		t.Errorf("expected deleted key to be gone, got %+v", got)
	}

	mini.FastForward(3 * time.Second)
	if got, _ := store.Load(ctx, "expire"); got != nil {
		t.Errorf("expected expired key to be gone, got %+v", got)
	}
}

func TestTypedStoreKeyPrefix(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()
	v := cachedTokens{Words: []string{"x"}}

	_ = NewTypedStore[cachedTokens](client, "tokens").Save(ctx, "m1", &v, 0)
	_ = NewTypedStore[cachedTokens](client, "").Save(ctx, "bare", &v, 0)

	if !mini.Exists("tokens:m1") {
		t.Error("expected prefixed key tokens:m1")
	}
	if !mini.Exists("bare") {
		t.Error("expected unprefixed key bare")
	}
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.Subscribe(ctx, MeetingChannel("m1"))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	n, err := client.Publish(ctx, MeetingChannel("m1"), []byte(`{"type":"progress","progress":30}`))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 receiver, got %d", n)
	}

	select {
	case msg := <-sub.Messages():
		if msg.Channel != "meeting:m1" {
			t.Errorf("expected channel meeting:m1, got %s", msg.Channel)
		}
		if msg.Payload != `{"type":"progress","progress":30}` {
			t.Errorf("unexpected payload %s", msg.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.TTL() != 168*time.Hour {
		t.Errorf("expected 168h artifact ttl, got %v", cfg.TTL())
	}

	cfg.ReadTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unparseable read_timeout")
	}

	disabled := Config{ReadTimeout: "soon"}
	if err := disabled.Validate(); err != nil {
		t.Errorf("expected disabled config to skip validation, got %v", err)
	}
}

func TestComponentLifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	ctx := context.Background()

	comp := NewComponent(Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	off := NewComponent(Config{}, logger.Nop())
	if err := off.Start(ctx); err != nil {
		t.Fatalf("disabled Start failed: %v", err)
	}
	if off.Client() != nil {
		t.Error("expected nil client when disabled")
	}
	if h := off.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected disabled component to report healthy, got %s", h.Status)
	}
}
