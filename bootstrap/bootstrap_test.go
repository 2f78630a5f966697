package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/config"
	"github.com/kbukum/meetscribe/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
	order    *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.started = true
	if m.order != nil {
		*m.order = append(*m.order, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.stopped = true
	if m.order != nil {
		*m.order = append(*m.order, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(context.Context) component.Health { return m.health }

func healthy(name string, order *[]string) *mockComponent {
	return &mockComponent{
		name:   name,
		health: component.Health{Name: name, Status: component.StatusHealthy},
		order:  order,
	}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "meetscribe-test", Version: "1.2.3"}}
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "meetscribe-test" {
		t.Errorf("expected name meetscribe-test, got %q", app.Name)
	}
	if app.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != time.Second {
		t.Errorf("expected graceful timeout 1s, got %s", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Environment: "moon"}}
	if _, err := NewApp(cfg, WithLogger(logger.Nop())); err == nil {
		t.Error("expected validation error for unknown environment")
	}
}

func TestRunLifecycleOrder(t *testing.T) {
	app := newTestApp(t)
	var order []string
	db := healthy("database", &order)
	srv := healthy("http-server", &order)
	if err := app.RegisterComponent(db); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := app.RegisterComponent(srv); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := app.RegisterComponent(healthy("database", nil)); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	app.OnStart(func(context.Context) error { order = append(order, "onStart"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		order = append(order, "configure:"+a.Cfg.Name)
		return nil
	})
	app.OnReady(func(context.Context) error { order = append(order, "onReady"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "onStop"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{
		"start:database", "start:http-server", "onStart", "configure:meetscribe-test",
		"onReady", "onStop", "stop:http-server", "stop:database",
	}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestRunStartFailureStopsStarted(t *testing.T) {
	app := newTestApp(t)
	first := healthy("database", nil)
	broken := &mockComponent{name: "redis", startErr: errors.New("refused")}
	_ = app.RegisterComponent(first)
	_ = app.RegisterComponent(broken)

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected start failure, got %v", err)
	}
	if !first.stopped {
		t.Error("expected already-started component to be stopped")
	}
}

func TestRunConfigureError(t *testing.T) {
	app := newTestApp(t)
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { return errors.New("wiring") })
	if err := app.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "configuration failed") {
		t.Errorf("expected configuration failure, got %v", err)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  component.HealthStatus
		wantErr bool
	}{
		{"healthy", component.StatusHealthy, false},
		{"degraded", component.StatusDegraded, true},
		{"unhealthy", component.StatusUnhealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{
				name:   "kafka",
				health: component.Health{Name: "kafka", Status: tt.status, Message: "broker"},
			})
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	app := newTestApp(t)
	c := &mockComponent{name: "storage", stopErr: errors.New("flush failed")}
	_ = app.RegisterComponent(c)
	if err := app.Components.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	app.OnStop(func(context.Context) error { return errors.New("hook") })

	if err := app.Shutdown(context.Background()); err == nil {
		t.Error("expected shutdown error")
	}
	if !c.stopped {
		t.Error("expected component to be stopped despite hook error")
	}
}
