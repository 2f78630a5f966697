// Package pyannote implements diarization.Provider against a pyannote HTTP
// sidecar.
package pyannote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/meetscribe/diarization"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/httpclient"
	"github.com/kbukum/meetscribe/security"
	"github.com/kbukum/meetscribe/meeting"
)

const (
	// ProviderName is the registered name for the Pyannote provider.
	ProviderName = "pyannote"

	defaultPyannoteURL     = "http://localhost:8388"
	defaultPyannoteTimeout = 10 * time.Minute
)

// Config holds configuration for the Pyannote diarization provider.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`

	// TLS configures https connections to the sidecar.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultPyannoteURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultPyannoteTimeout
	}
}

// Provider implements diarization.Provider using the Pyannote HTTP sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new Pyannote diarization provider.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		APIKey:  cfg.APIKey,
		TLS:     &cfg.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("pyannote: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Pyannote sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.client.Ping(ctx, "/health")
}

// Diarize sends audio to the Pyannote sidecar and returns speaker turns.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("pyannote: empty audio")
	}

	fields := map[string]string{}
	if req.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}

	var result pyannoteResponse
	err := p.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/diarize",
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

	if result.Error != "" {
		return nil, apperrors.ExternalServiceError(ProviderName, fmt.Errorf("%s", result.Error))
	}

	return toResponse(&result), nil
}

// --- internal Pyannote API types ---

type pyannoteResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func toResponse(resp *pyannoteResponse) *diarization.Response {
	turns := make([]meeting.Turn, 0, len(resp.Segments))
	labels := make(map[string]struct{})
	for _, seg := range resp.Segments {
		if seg.EndTime <= seg.StartTime || seg.SpeakerID == "" {
			continue
		}
		turns = append(turns, meeting.Turn{Start: seg.StartTime, End: seg.EndTime, Label: seg.SpeakerID})
		labels[seg.SpeakerID] = struct{}{}
	}
	diarization.SortTurns(turns)

	n := resp.NumSpeakers
	if n == 0 {
		n = len(labels)
	}
	return &diarization.Response{Turns: turns, NumSpeakers: n}
}
