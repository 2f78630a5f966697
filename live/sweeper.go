package live

import (
	"context"
	"time"

	"github.com/kbukum/meetscribe/logger"
)

// sweep stops recordings that have not received a chunk within IdleTimeout.
// It runs on the cron schedule configured by SweepSchedule.
func (c *Coordinator) sweep() {
	cutoff := time.Now().Add(-c.cfg.IdleTimeout)

	c.mu.Lock()
	var idle []*Session
	for _, s := range c.sessions {
		if s.idleSince(cutoff) {
			idle = append(idle, s)
		}
	}
	c.mu.Unlock()

	for _, s := range idle {
		c.log.Info("stopping idle live session", logger.Fields(
			logger.FieldSessionID, s.ID, logger.FieldMeetingID, s.MeetingID, "idle_timeout", c.cfg.IdleTimeout.String()))
		if err := c.Stop(context.Background(), s.ID); err != nil {
			c.log.Warn("idle stop failed", logger.MergeWithError(logger.Fields(logger.FieldSessionID, s.ID), err))
		}
	}
}
