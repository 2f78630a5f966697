package orchestrator

import (
	"fmt"
	"time"
)

// Config tunes the pipeline.
type Config struct {
	// MaxConcurrentJobs bounds the worker pool.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	// MaxParallelStages bounds stages run at once within a job (0 = unlimited).
	MaxParallelStages int `yaml:"max_parallel_stages" mapstructure:"max_parallel_stages"`

	NormalizeTimeout  time.Duration `yaml:"normalize_timeout" mapstructure:"normalize_timeout"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout" mapstructure:"transcribe_timeout"`
	DiarizeTimeout    time.Duration `yaml:"diarize_timeout" mapstructure:"diarize_timeout"`
	EstimateTimeout   time.Duration `yaml:"estimate_timeout" mapstructure:"estimate_timeout"`
	IdentifyTimeout   time.Duration `yaml:"identify_timeout" mapstructure:"identify_timeout"`
	PersistTimeout    time.Duration `yaml:"persist_timeout" mapstructure:"persist_timeout"`

	// Language is passed to transcription when the meeting has none.
	Language string `yaml:"language" mapstructure:"language"`
	// CacheTTL bounds how long cached tokens and turns stay in Redis.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// Tracing wraps every stage in a span.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 2
	}
	if c.NormalizeTimeout <= 0 {
		c.NormalizeTimeout = 10 * time.Minute
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 60 * time.Minute
	}
	if c.DiarizeTimeout <= 0 {
		c.DiarizeTimeout = 60 * time.Minute
	}
	if c.EstimateTimeout <= 0 {
		c.EstimateTimeout = 10 * time.Minute
	}
	if c.IdentifyTimeout <= 0 {
		c.IdentifyTimeout = 10 * time.Minute
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 2 * time.Minute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 7 * 24 * time.Hour
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrentJobs > 64 {
		return fmt.Errorf("orchestrator: max_concurrent_jobs must be <= 64, got %d", c.MaxConcurrentJobs)
	}
	if c.MaxParallelStages < 0 {
		return fmt.Errorf("orchestrator: max_parallel_stages must be >= 0")
	}
	return nil
}
