package live

import (
	"context"
	"strconv"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/meetscribe/component"
	apperrors "github.com/kbukum/meetscribe/errors"
)

// Component adapts the coordinator to the application lifecycle.
func (c *Coordinator) Component() component.Component {
	return &lifecycle{c: c}
}

type lifecycle struct {
	c *Coordinator
}

var _ component.Component = (*lifecycle)(nil)

// Name implements component.Component.
func (l *lifecycle) Name() string { return "live" }

// Start resumes interrupted recordings and starts the idle sweeper.
func (l *lifecycle) Start(ctx context.Context) error {
	c := l.c
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	if err := c.resume(ctx); err != nil {
		return err
	}
	if c.cfg.IdleTimeout > 0 {
		c.sweeper = cron.New()
		if _, err := c.sweeper.AddFunc(c.cfg.SweepSchedule, c.sweep); err != nil {
			return apperrors.InvalidInput("sweep_schedule", err.Error())
		}
		c.sweeper.Start()
	}
	return nil
}

// Stop cancels partial work and waits for session goroutines. Open
// recordings keep their chunks and are resumed on the next start.
func (l *lifecycle) Stop(ctx context.Context) error {
	c := l.c
	if c.sweeper != nil {
		<-c.sweeper.Stop().Done()
	}
	c.mu.Lock()
	cancel := c.cancel
	c.ctx, c.cancel = nil, nil
	c.sessions = map[string]*Session{}
	c.byMeeting = map[string]*Session{}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health implements component.Component.
func (l *lifecycle) Health(_ context.Context) component.Health {
	c := l.c
	c.mu.Lock()
	defer c.mu.Unlock()
	h := component.Health{Name: l.Name(), Status: component.StatusHealthy}
	if c.ctx == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "stopped"
	}
	return h
}

// Describe implements component.Describable.
func (l *lifecycle) Describe() component.Description {
	c := l.c
	c.mu.Lock()
	n := len(c.sessions)
	c.mu.Unlock()
	return component.Description{Name: "Live sessions", Type: "worker", Details: "open=" + strconv.Itoa(n)}
}
