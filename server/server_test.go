package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/meetscribe/auth"
	"github.com/kbukum/meetscribe/component"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	return New(cfg, logger.Nop())
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.WriteTimeout != 0 {
		t.Errorf("expected no write timeout, got %d", cfg.WriteTimeout)
	}
	limit, err := cfg.BodyLimit()
	if err != nil || limit != 2<<30 {
		t.Errorf("expected 2GB body limit, got %d (%v)", limit, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	bad := cfg
	bad.MaxBodySize = "huge"
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid max_body_size to fail")
	}
	bad = cfg
	bad.Port = 70000
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid port to fail")
	}
}

func TestDefaultEndpointsAndAuth(t *testing.T) {
	s := newTestServer(t)
	verifier, err := auth.NewVerifier(auth.Config{Secret: "server-test-secret-value"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	s.ApplyMiddleware(verifier)
	s.RegisterDefaultEndpoints("meetscribe", func(context.Context) []component.Health {
		return []component.Health{{Name: "database", Status: component.StatusHealthy}}
	})
	s.GinEngine().GET("/api/ping", func(c *gin.Context) { RespondOK(c, "pong") })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health without token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/ping")
	if err != nil {
		t.Fatalf("GET /api/ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	token, _ := verifier.Issue("tester", "")
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/ping", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/ping: %v", err)
	}
	defer resp.Body.Close()
	var body DataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data != "pong" {
		t.Errorf("expected pong, got %v", body.Data)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected request id header")
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperrors.NotFound("meeting", "m1"), http.StatusNotFound},
		{"conflict", apperrors.Conflict("job already active"), http.StatusConflict},
		{"plain", context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			RespondWithError(c, tt.err)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestComponentLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.RegisterDefaultEndpoints("meetscribe", nil)
	c := NewComponent(s)

	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	if h := c.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if d := c.Describe(); d.Type != "server" {
		t.Errorf("expected type server, got %q", d.Type)
	}
}
