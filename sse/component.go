package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/logger"
)

// Component owns the meeting event hub: Start runs its loop and Stop
// disconnects every listener.
type Component struct {
	hub  *Hub
	done chan struct{}
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

func NewComponent(log *logger.Logger) *Component {
	return &Component{hub: NewHub(log)}
}

// Hub returns the hub the API and job fan-out publish to.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

func (c *Component) Start(context.Context) error {
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.hub.Run()
	}()
	return nil
}

// Stop waits for the hub loop to exit or ctx to end.
func (c *Component) Stop(ctx context.Context) error {
	c.hub.Stop()
	if c.done == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sse: hub did not stop: %w", ctx.Err())
	}
}

// Health reports how many listeners are attached.
func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d listeners", c.hub.ClientCount()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "Event Hub", Type: "sse", Details: "per-meeting event fan-out"}
}
