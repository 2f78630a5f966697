// Package sidecar implements embedding.Provider against a speaker-embedding
// HTTP sidecar (ECAPA-style models behind a small web service).
package sidecar

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/meetscribe/embedding"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/httpclient"
	"github.com/kbukum/meetscribe/security"
)

const (
	// ProviderName is the registered name for the embedding sidecar.
	ProviderName = "embedding"

	defaultURL     = "http://localhost:8389"
	defaultTimeout = 60 * time.Second
)

// Config holds configuration for the embedding sidecar.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	// Dim, when non-zero, is enforced on every returned vector.
	Dim int `yaml:"dim" mapstructure:"dim"`

	// TLS configures https connections to the sidecar.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Provider implements embedding.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new embedding sidecar client.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		APIKey:  cfg.APIKey,
		TLS:     &cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx, "/health")
}

// Embed uploads the audio with the requested interval and returns the vector.
func (p *Provider) Embed(ctx context.Context, req embedding.Request) ([]float32, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("embedding: empty audio")
	}

	fields := map[string]string{}
	if req.End > req.Start {
		fields["start"] = strconv.FormatFloat(req.Start, 'f', 3, 64)
		fields["end"] = strconv.FormatFloat(req.End, 'f', 3, 64)
	}

	var result embedResponse
	err := p.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/embed",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files: []httpclient.FileField{{
				FieldName:   "audio",
				FileName:    "audio.wav",
				ContentType: "audio/wav",
				Data:        req.Audio,
			}},
		},
	}, &result)
	if err != nil {
		return nil, httpclient.ToAppError(ProviderName, err)
	}

	if len(result.Embedding) == 0 {
		return nil, apperrors.MalformedOutput(ProviderName, fmt.Errorf("empty embedding"))
	}
	if p.cfg.Dim > 0 && len(result.Embedding) != p.cfg.Dim {
		return nil, apperrors.MalformedOutput(ProviderName,
			fmt.Errorf("expected %d dimensions, got %d", p.cfg.Dim, len(result.Embedding)))
	}
	return result.Embedding, nil
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}
