package speakerid

import (
	"fmt"
	"time"
)

// Config tunes speaker identification.
type Config struct {
	// IntroWindow is how much of the meeting start is scanned for introductions.
	IntroWindow time.Duration `yaml:"intro_window" mapstructure:"intro_window"`
	// IntroConfidence is reported for names taken from introductions.
	IntroConfidence float64 `yaml:"intro_confidence" mapstructure:"intro_confidence"`
	// FallbackPrefix names speakers without an introduction.
	FallbackPrefix string `yaml:"fallback_prefix" mapstructure:"fallback_prefix"`
	// RequireIntroPattern skips the completion call when no regex matches.
	RequireIntroPattern bool `yaml:"require_intro_pattern" mapstructure:"require_intro_pattern"`

	// ProfilesEnabled turns on matching against stored voice profiles.
	ProfilesEnabled bool `yaml:"profiles_enabled" mapstructure:"profiles_enabled"`
	// ProfileThreshold is the minimum cosine similarity for a profile match.
	ProfileThreshold float64 `yaml:"profile_threshold" mapstructure:"profile_threshold"`
	// ProfileSamples is how many of a speaker's longest segments are embedded.
	ProfileSamples int `yaml:"profile_samples" mapstructure:"profile_samples"`

	// EstimateChunk is the transcript span sent per speaker-count round.
	EstimateChunk time.Duration `yaml:"estimate_chunk" mapstructure:"estimate_chunk"`
	// EstimateMaxChunks bounds the speaker-count conversation.
	EstimateMaxChunks int `yaml:"estimate_max_chunks" mapstructure:"estimate_max_chunks"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.IntroWindow <= 0 {
		c.IntroWindow = 2 * time.Minute
	}
	if c.IntroConfidence <= 0 {
		c.IntroConfidence = 0.8
	}
	if c.FallbackPrefix == "" {
		c.FallbackPrefix = "Participant"
	}
	if c.ProfileThreshold <= 0 {
		c.ProfileThreshold = 0.75
	}
	if c.ProfileSamples <= 0 {
		c.ProfileSamples = 3
	}
	if c.EstimateChunk <= 0 {
		c.EstimateChunk = 30 * time.Second
	}
	if c.EstimateMaxChunks <= 0 {
		c.EstimateMaxChunks = 20
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ProfileThreshold > 1 {
		return fmt.Errorf("speakerid: profile_threshold must be <= 1, got %v", c.ProfileThreshold)
	}
	if c.IntroConfidence > 1 {
		return fmt.Errorf("speakerid: intro_confidence must be <= 1, got %v", c.IntroConfidence)
	}
	return nil
}
