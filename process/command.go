// Package process runs external binaries such as ffmpeg. Cancelling the
// context terminates the whole process group.
package process

import (
	"io"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// Command is one subprocess invocation.
type Command struct {
	Binary string // resolved through PATH unless absolute
	Args   []string
	Env    []string // appended to the parent environment
	Stdin  io.Reader

	// GracePeriod separates SIGTERM from SIGKILL on cancellation.
	GracePeriod time.Duration
}

func (c Command) grace() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return defaultGracePeriod
}
