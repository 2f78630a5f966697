package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/process"
)

// Config configures the ffmpeg-based normalizer.
type Config struct {
	FFmpegPath  string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath string        `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	TempDir     string        `yaml:"temp_dir" mapstructure:"temp_dir"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// MaxConcurrent caps simultaneous ffmpeg processes. 0 means unlimited.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.FFprobePath == "" {
		c.FFprobePath = "ffprobe"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("audio: max_concurrent must be >= 0")
	}
	return nil
}

// Normalizer converts arbitrary audio into the pipeline's waveform format.
type Normalizer struct {
	cfg    Config
	runner *process.Runner
	log    *logger.Logger
}

// NewNormalizer creates a Normalizer running ffmpeg through runner.
func NewNormalizer(cfg Config, runner *process.Runner, log *logger.Logger) *Normalizer {
	cfg.ApplyDefaults()
	return &Normalizer{cfg: cfg, runner: runner, log: log.WithComponent("audio")}
}

// Name identifies the normalizer in health output.
func (n *Normalizer) Name() string { return "ffmpeg" }

// IsAvailable reports whether ffmpeg is on the PATH.
func (n *Normalizer) IsAvailable(_ context.Context) bool {
	return process.LookPath(n.cfg.FFmpegPath) == nil
}

// Normalize converts src (any container ffmpeg reads) to 16 kHz mono
// 16-bit WAV and returns it with its duration in seconds.
func (n *Normalizer) Normalize(ctx context.Context, src []byte, ext string) ([]byte, float64, error) {
	dir, err := os.MkdirTemp(n.cfg.TempDir, "meetscribe-norm-")
	if err != nil {
		return nil, 0, apperrors.StorageError("normalize", err)
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	in := filepath.Join(dir, "input."+strings.TrimPrefix(ext, "."))
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, src, 0o600); err != nil {
		return nil, 0, apperrors.StorageError("normalize", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	_, err = n.runner.Run(ctx, process.Command{
		Binary: n.cfg.FFmpegPath,
		Args: []string{"-y", "-i", in, "-vn",
			"-acodec", "pcm_s16le", "-ar", strconv.Itoa(SampleRate), "-ac", strconv.Itoa(Channels),
			out},
	})
	if err != nil {
		return nil, 0, n.classify(ctx, err)
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, 0, apperrors.StorageError("normalize", err)
	}
	pcm, err := PCM(wav)
	if err != nil {
		return nil, 0, apperrors.MalformedOutput("ffmpeg", err)
	}
	return wav, Duration(pcm), nil
}

// DecodeChunk converts one self-contained encoded chunk to raw 16 kHz mono
// s16le PCM using ffmpeg pipes.
func (n *Normalizer) DecodeChunk(ctx context.Context, chunk []byte) ([]byte, error) {
	if len(chunk) == 0 {
		return nil, apperrors.InvalidInput("chunk", "audio chunk is empty")
	}
	res, err := n.runner.Run(ctx, process.Command{
		Binary: n.cfg.FFmpegPath,
		Args: []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0",
			"-f", "s16le", "-acodec", "pcm_s16le", "-ar", strconv.Itoa(SampleRate), "-ac", strconv.Itoa(Channels),
			"pipe:1"},
		Stdin: bytes.NewReader(chunk),
	})
	if err != nil {
		return nil, n.classify(ctx, err)
	}
	return res.Stdout, nil
}

func (n *Normalizer) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Timeout("normalize").WithCause(err)
	}
	if apperrors.HasCode(err, apperrors.ErrCodeServiceUnavailable) {
		return err
	}
	n.log.Warn("ffmpeg failed", logger.ErrorFields("normalize", err))
	return apperrors.ExternalServiceError("ffmpeg", err)
}
