package s3

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/meetscribe/storage"
)

// fakeS3 answers the handful of object calls the backend makes.
func fakeS3(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/audio/")
		body, ok := objects[key]
		switch r.Method {
		case http.MethodHead:
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
				return
			}
			_, _ = w.Write([]byte(body))
		case http.MethodPut, http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStorage(t *testing.T, objects map[string]string) *Storage {
	t.Helper()
	srv := fakeS3(t, objects)
	s, err := NewStorage(context.Background(), storage.Config{
		Bucket:    "audio",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func TestExists(t *testing.T) {
	s := newTestStorage(t, map[string]string{"meetings/m1/raw.wav": "RIFF"})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "meetings/m1/raw.wav")
	if err != nil || !ok {
		t.Errorf("expected object to exist, got %v %v", ok, err)
	}
	ok, err = s.Exists(ctx, "meetings/m2/raw.wav")
	if err != nil || ok {
		t.Errorf("expected missing object, got %v %v", ok, err)
	}
}

func TestDownloadMissingIsNotFound(t *testing.T) {
	s := newTestStorage(t, map[string]string{})
	_, err := s.Download(context.Background(), "meetings/m1/raw.wav")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUploadAndDelete(t *testing.T) {
	s := newTestStorage(t, map[string]string{})
	ctx := context.Background()
	if err := s.Upload(ctx, "meetings/m1/raw.wav", bytes.NewReader([]byte("RIFF"))); err != nil {
		t.Errorf("Upload: %v", err)
	}
	if err := s.Delete(ctx, "meetings/m1/raw.wav"); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

func TestNewStorageRequiresBucket(t *testing.T) {
	if _, err := NewStorage(context.Background(), storage.Config{Region: "us-east-1"}); err == nil {
		t.Error("expected error without bucket")
	}
}
