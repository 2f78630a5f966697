package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/logger"
)

// Component installs the OTLP tracer and meter providers on Start and
// flushes them on Stop. Register it first so it stops last.
type Component struct {
	cfg     Config
	service string
	version string
	env     string
	log     *logger.Logger

	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	metrics *Metrics
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the telemetry component for a service.
func NewComponent(cfg Config, service, version, env string, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{
		cfg:     cfg,
		service: service,
		version: version,
		env:     env,
		log:     log.WithComponent("observability"),
	}
}

// Metrics returns the service instruments. Valid after Start; nil before.
func (c *Component) Metrics() *Metrics { return c.metrics }

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start installs the exporters when enabled and creates the instruments.
// Disabled, the instruments record into the no-op provider.
func (c *Component) Start(ctx context.Context) error {
	if c.cfg.Enabled {
		mc := c.cfg.MeterConfig(c.service, c.version, c.env)
		mp, err := InitMeter(ctx, &mc)
		if err != nil {
			return fmt.Errorf("observability meter: %w", err)
		}
		tp, err := InitTracer(ctx, c.cfg.TracerConfig(c.service, c.version, c.env))
		if err != nil {
			_ = mp.Shutdown(ctx)
			return fmt.Errorf("observability tracer: %w", err)
		}
		c.mp, c.tp = mp, tp
	}
	metrics, err := NewMetrics(Meter(c.service))
	if err != nil {
		return fmt.Errorf("observability metrics: %w", err)
	}
	c.metrics = metrics
	return nil
}

// Stop flushes and shuts down the exporters.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Health reports whether export is active.
func (c *Component) Health(_ context.Context) component.Health {
	msg := "export disabled"
	if c.tp != nil {
		msg = "exporting to " + c.cfg.Endpoint
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "observability", Details: details}
}
