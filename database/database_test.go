package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/logger"
)

type noteRow struct {
	ID   string `gorm:"primaryKey"`
	Text string
}

func newTestComponent(t *testing.T) *Component {
	t.Helper()
	cfg := Config{
		Enabled:     true,
		DSN:         filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	c := NewComponent(cfg, logger.Nop()).WithAutoMigrate(&noteRow{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	if cfg.MaxOpenConns != 1 {
		t.Errorf("expected single connection default, got %d", cfg.MaxOpenConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "soon" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	disabled := Config{}
	if err := disabled.Validate(); err != nil {
		t.Errorf("expected disabled config to skip validation, got %v", err)
	}
}

func TestComponentLifecycle(t *testing.T) {
	c := newTestComponent(t)

	h := c.Health(context.Background())
	if h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	if c.Describe().Type != "database" {
		t.Errorf("expected type database, got %s", c.Describe().Type)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("expected second stop to be a no-op, got %v", err)
	}
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{Enabled: false}, logger.Nop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DB() != nil {
		t.Error("expected no DB when disabled")
	}
	if h := c.Health(context.Background()); h.Message != "disabled" {
		t.Errorf("expected disabled health, got %+v", h)
	}
}

func TestWithTransaction(t *testing.T) {
	db := newTestComponent(t).DB()
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&noteRow{ID: "a", Text: "kept"}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("abort")
	err = db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&noteRow{ID: "b", Text: "rolled back"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected abort error, got %v", err)
	}

	var count int64
	db.WithContext(ctx).Model(&noteRow{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 row after rollback, got %d", count)
	}
}

func TestFromDatabase(t *testing.T) {
	db := newTestComponent(t).DB()
	ctx := context.Background()

	var row noteRow
	err := db.WithContext(ctx).First(&row, "id = ?", "missing").Error
	if appErr := FromDatabase(err, "note", "missing"); appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", appErr.Code)
	}

	_ = db.WithContext(ctx).Create(&noteRow{ID: "dup"}).Error
	err = db.WithContext(ctx).Create(&noteRow{ID: "dup"}).Error
	if appErr := FromDatabase(err, "note", "dup"); appErr.Code != apperrors.ErrCodeConflict {
		t.Errorf("expected CONFLICT for duplicate key, got %s (%v)", appErr.Code, err)
	}

	if appErr := FromDatabase(errors.New("disk I/O error"), "note", ""); appErr.Code != apperrors.ErrCodeDatabaseError {
		t.Errorf("expected DATABASE_ERROR, got %s", appErr.Code)
	}
	if FromDatabase(nil, "note", "") != nil {
		t.Error("expected nil for nil error")
	}
}

func TestIsBusyError(t *testing.T) {
	if !IsBusyError(errors.New("database is locked")) {
		t.Error("expected locked error to be busy")
	}
	if IsBusyError(errors.New("no such table")) {
		t.Error("expected other errors not to be busy")
	}
}
