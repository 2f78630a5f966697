package bootstrap

import (
	"time"

	"github.com/kbukum/meetscribe/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Option customizes NewApp.
type Option func(*options)

type options struct {
	log      *logger.Logger
	shutdown time.Duration
}

// WithLogger replaces the logger built from the service config.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithGracefulTimeout bounds the whole shutdown sequence. Non-positive
// values keep the default of 30s.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdown = d
		}
	}
}
