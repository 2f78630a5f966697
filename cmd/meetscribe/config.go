package main

import (
	"fmt"

	"github.com/kbukum/meetscribe/api"
	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/auth"
	"github.com/kbukum/meetscribe/config"
	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/diarization/pyannote"
	"github.com/kbukum/meetscribe/embedding/sidecar"
	"github.com/kbukum/meetscribe/encryption"
	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/live"
	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/observability"
	"github.com/kbukum/meetscribe/orchestrator"
	"github.com/kbukum/meetscribe/redis"
	"github.com/kbukum/meetscribe/server"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/transcription/whisper"
)

// Config is the meetscribe service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Auth          auth.Config          `yaml:"auth" mapstructure:"auth"`
	API           api.Config           `yaml:"api" mapstructure:"api"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Encryption    encryption.Config    `yaml:"encryption" mapstructure:"encryption"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Kafka         kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	Audio        audio.Config        `yaml:"audio" mapstructure:"audio"`
	Whisper      whisper.Config      `yaml:"whisper" mapstructure:"whisper"`
	Pyannote     pyannote.Config     `yaml:"pyannote" mapstructure:"pyannote"`
	Embedding    sidecar.Config      `yaml:"embedding" mapstructure:"embedding"`
	LLM          llm.Config          `yaml:"llm" mapstructure:"llm"`
	SpeakerID    speakerid.Config    `yaml:"speaker_id" mapstructure:"speaker_id"`
	Orchestrator orchestrator.Config `yaml:"orchestrator" mapstructure:"orchestrator"`
	Live         live.Config         `yaml:"live" mapstructure:"live"`
}

// ApplyDefaults fills zero values in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.API.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Encryption.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Whisper.ApplyDefaults()
	c.Pyannote.ApplyDefaults()
	c.Embedding.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.SpeakerID.ApplyDefaults()
	c.Orchestrator.ApplyDefaults()
	c.Live.ApplyDefaults()
}

// Validate checks every section. The database and blob storage are
// required; the other backends may be disabled.
func (c *Config) Validate() error {
	if !c.Database.Enabled {
		return fmt.Errorf("database must be enabled")
	}
	if !c.Storage.Enabled {
		return fmt.Errorf("storage must be enabled")
	}
	validators := []struct {
		name string
		fn   func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"server", c.Server.Validate},
		{"auth", c.Auth.Validate},
		{"api", c.API.Validate},
		{"database", c.Database.Validate},
		{"encryption", c.Encryption.Validate},
		{"redis", c.Redis.Validate},
		{"storage", c.Storage.Validate},
		{"kafka", c.Kafka.Validate},
		{"observability", c.Observability.Validate},
		{"audio", c.Audio.Validate},
		{"whisper", c.Whisper.Validate},
		{"llm", c.LLM.Validate},
		{"speaker_id", c.SpeakerID.Validate},
		{"orchestrator", c.Orchestrator.Validate},
		{"live", c.Live.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}
