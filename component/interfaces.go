package component

import "context"

// HealthStatus is the state reported on /health.
type HealthStatus string

// Health states, from best to worst.
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in the health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a part of the service with a start/stop lifecycle: the
// database, the blob store, the pipeline workers, the HTTP server. The
// registry starts components in order and stops them in reverse.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	// Stop releases resources. It is called once, with a deadline.
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is a component's line in the startup summary.
type Description struct {
	Name    string // defaults to Component.Name()
	Type    string // database, server, kafka, redis, worker ...
	Details string // e.g. "localhost:6379 db=0"
}

// Describable components are listed in the startup summary.
type Describable interface {
	Describe() Description
}
