package live

import (
	"fmt"
	"time"

	"github.com/kbukum/meetscribe/cluster"
)

// Config tunes live sessions.
type Config struct {
	// ChunkConcurrency bounds in-flight chunks per session.
	ChunkConcurrency int `yaml:"chunk_concurrency" mapstructure:"chunk_concurrency"`
	// SilenceRMS is the PCM amplitude below which a chunk is not transcribed.
	SilenceRMS float64 `yaml:"silence_rms" mapstructure:"silence_rms"`
	// PromptWords is how many trailing words seed the next chunk's transcription.
	PromptWords int `yaml:"prompt_words" mapstructure:"prompt_words"`
	// MinSegment is the shortest segment that gets its own embedding.
	MinSegment time.Duration `yaml:"min_segment" mapstructure:"min_segment"`
	// ChunkTimeout bounds decode, transcription and embedding of one chunk.
	ChunkTimeout time.Duration `yaml:"chunk_timeout" mapstructure:"chunk_timeout"`
	// DrainTimeout is how long Stop waits for in-flight chunks before
	// cancelling them.
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
	// IdleTimeout stops sessions without chunks for this long. Zero disables
	// the sweeper.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// SweepSchedule is the cron spec of the idle sweeper.
	SweepSchedule string `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	// PolishAt lists the recording offsets of the first polish passes.
	PolishAt []time.Duration `yaml:"polish_at" mapstructure:"polish_at"`
	// PolishEvery is the interval of polish passes after PolishAt is used up.
	PolishEvery time.Duration `yaml:"polish_every" mapstructure:"polish_every"`
	// PolishMinSegments is the segment count below which a speaker is merged
	// into a neighbour.
	PolishMinSegments int `yaml:"polish_min_segments" mapstructure:"polish_min_segments"`
	// PolishConfidence is reported for names found by a polish pass.
	PolishConfidence float64 `yaml:"polish_confidence" mapstructure:"polish_confidence"`
	// PolishTimeout bounds one polish pass.
	PolishTimeout time.Duration `yaml:"polish_timeout" mapstructure:"polish_timeout"`

	Cluster cluster.Config `yaml:"cluster" mapstructure:"cluster"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = 4
	}
	if c.SilenceRMS <= 0 {
		c.SilenceRMS = 500
	}
	if c.PromptWords <= 0 {
		c.PromptWords = 30
	}
	if c.MinSegment <= 0 {
		c.MinSegment = time.Second
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = 30 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "@every 30s"
	}
	if len(c.PolishAt) == 0 {
		c.PolishAt = []time.Duration{time.Minute, 2 * time.Minute, 3 * time.Minute, 4 * time.Minute, 5 * time.Minute}
	}
	if c.PolishEvery <= 0 {
		c.PolishEvery = 5 * time.Minute
	}
	if c.PolishMinSegments <= 0 {
		c.PolishMinSegments = 2
	}
	if c.PolishConfidence <= 0 {
		c.PolishConfidence = 0.7
	}
	if c.PolishTimeout <= 0 {
		c.PolishTimeout = 2 * time.Minute
	}
	c.Cluster.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.IdleTimeout < 0 {
		return fmt.Errorf("live: idle_timeout must not be negative")
	}
	if c.PolishConfidence > 1 {
		return fmt.Errorf("live: polish_confidence must be <= 1, got %v", c.PolishConfidence)
	}
	for i := 1; i < len(c.PolishAt); i++ {
		if c.PolishAt[i] <= c.PolishAt[i-1] {
			return fmt.Errorf("live: polish_at must be increasing")
		}
	}
	return c.Cluster.Validate()
}

// polishDelay returns the wait before polish pass n (1-based), counted from
// the previous pass.
func (c *Config) polishDelay(n int) time.Duration {
	if n <= len(c.PolishAt) {
		prev := time.Duration(0)
		if n > 1 {
			prev = c.PolishAt[n-2]
		}
		return c.PolishAt[n-1] - prev
	}
	return c.PolishEvery
}
