// Package config loads service configuration from a YAML file, an optional
// .env file and prefixed environment variables using viper and godotenv.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("meetscribe", &cfg, config.WithEnvPrefix("MEETSCRIBE"))
//
// Environment variables override file values. With the prefix MEETSCRIBE,
// MEETSCRIBE_LIVE_IDLE_TIMEOUT binds to live.idle_timeout (and the other
// nesting variants of the same underscore path).
package config
