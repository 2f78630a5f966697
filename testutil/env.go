package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/storage/local"
	"github.com/kbukum/meetscribe/store"
)

// Env bundles a store and a blob store backed by temporary files.
type Env struct {
	Store *store.Store
	Blobs storage.Storage
}

// NewEnv creates an Env that is torn down with the test.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	return &Env{Store: NewStore(t), Blobs: NewBlobs(t)}
}

// NewStore opens a migrated store on a temporary SQLite file.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := database.Config{
		Enabled:     true,
		DSN:         filepath.Join(t.TempDir(), "meetscribe.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	c := database.NewComponent(cfg, logger.Nop()).WithAutoMigrate(store.Models()...)
	T(t).Setup(c)

	s := store.New(c.DB(), logger.Nop())
	if err := s.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return s
}

// NewBlobs returns a local blob store rooted in a temporary directory.
func NewBlobs(t *testing.T) storage.Storage {
	t.Helper()
	s, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	return s
}

// Meeting creates a meeting in the given status.
func (e *Env) Meeting(t *testing.T, status meeting.Status) *meeting.Meeting {
	t.Helper()
	m := &meeting.Meeting{Title: "Weekly sync", Mode: meeting.ModeUpload, Status: status}
	if err := e.Store.CreateMeeting(context.Background(), m); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	return m
}

// Put stores data under key.
func (e *Env) Put(t *testing.T, key string, data []byte) {
	t.Helper()
	if err := storage.PutBytes(context.Background(), e.Blobs, key, data); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}
