package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/meetscribe/dag"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/redis"
	"github.com/kbukum/meetscribe/sse"
	"github.com/kbukum/meetscribe/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []meeting.Event
}

func (r *recorder) Notify(_ context.Context, e meeting.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []meeting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]meeting.Event(nil), r.events...)
}

func newJob(t *testing.T, env *testutil.Env) *meeting.Job {
	t.Helper()
	m := env.Meeting(t, meeting.StatusProcessing)
	j := &meeting.Job{MeetingID: m.ID, Type: meeting.JobProcess, Scope: meeting.ScopeFull}
	if err := env.Store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

func TestTrackerProgressIsMonotonic(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := &recorder{}
	tr := NewTracker(env.Store, rec, logger.Nop())
	j := newJob(t, env)

	if err := tr.Start(ctx, j); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	steps := []struct {
		progress float64
		step     string
	}{
		{2, "transcription"},
		{30, "diarization"},
		{20, "late"},
		{45, "alignment"},
	}
	for _, s := range steps {
		if err := tr.Progress(ctx, j, s.progress, s.step); err != nil {
			t.Fatalf("Progress(%v) error: %v", s.progress, err)
		}
	}

	events := rec.snapshot()
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}
	last := -1.0
	for _, e := range events {
		if e.Type != meeting.EventProgress {
			t.Errorf("expected progress event, got %s", e.Type)
		}
		if *e.Progress < last {
			t.Errorf("progress decreased: %v after %v", *e.Progress, last)
		}
		last = *e.Progress
	}
	if got := *events[3].Progress; got != 30 {
		t.Errorf("stale update should report 30, got %v", got)
	}

	stored, _ := env.Store.GetJob(ctx, j.ID)
	if stored.Progress != 45 || stored.CurrentStep != "alignment" {
		t.Errorf("stored job = %v / %q", stored.Progress, stored.CurrentStep)
	}
}

func TestTrackerFailRecordsStage(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := &recorder{}
	tr := NewTracker(env.Store, rec, logger.Nop())
	j := newJob(t, env)
	if err := tr.Start(ctx, j); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	cause := &dag.StageError{Stage: "diarization", Err: apperrors.Timeout("diarization")}
	if err := tr.Fail(ctx, j, "pipeline", cause, meeting.StatusFailed); err != nil {
		t.Fatalf("Fail() error: %v", err)
	}

	stored, _ := env.Store.GetJob(ctx, j.ID)
	if stored.Status != meeting.JobFailed || stored.FailedStep != "diarization" || stored.ErrorCode != "TIMEOUT" {
		t.Errorf("stored job = %s / %q / %q", stored.Status, stored.FailedStep, stored.ErrorCode)
	}
	m, _ := env.Store.GetMeeting(ctx, j.MeetingID)
	if m.Status != meeting.StatusFailed {
		t.Errorf("expected meeting failed, got %s", m.Status)
	}

	events := rec.snapshot()
	var sawError bool
	for _, e := range events {
		if e.Type == meeting.EventError {
			sawError = true
			if e.Code != "TIMEOUT" {
				t.Errorf("error event code = %q, want TIMEOUT", e.Code)
			}
		}
	}
	if !sawError {
		t.Error("expected an error event")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantStep string
		wantCode string
	}{
		{"plain", errors.New("boom"), "persist", "INTERNAL_ERROR"},
		{"app", apperrors.StorageError("upload", errors.New("disk")), "persist", "STORAGE_ERROR"},
		{"stage", &dag.StageError{Stage: "transcription", Err: apperrors.ExternalServiceError("whisper", errors.New("502"))}, "transcription", "EXTERNAL_SERVICE_ERROR"},
		{"deadline", context.DeadlineExceeded, "persist", "TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify("persist", tt.err)
			if f.Step != tt.wantStep || f.Code != tt.wantCode {
				t.Errorf("Classify() = %q/%q, want %q/%q", f.Step, f.Code, tt.wantStep, tt.wantCode)
			}
			if f.Message == "" {
				t.Error("expected a message")
			}
		})
	}
}

type sinkRecorder struct {
	mu   sync.Mutex
	sent []kafka.Event
}

func (s *sinkRecorder) Name() string                       { return "sink" }
func (s *sinkRecorder) IsAvailable(_ context.Context) bool { return true }
func (s *sinkRecorder) Send(_ context.Context, e kafka.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, e)
	return nil
}

func TestFanoutDeliversToAllDestinations(t *testing.T) {
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub, err := client.Subscribe(ctx, redis.MeetingChannel("m1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	hub := sse.NewHub(logger.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)
	sc := sse.NewClient(sse.MeetingClientID("m1"))
	hub.Register(sc)
	other := sse.NewClient(sse.MeetingClientID("m2"))
	hub.Register(other)

	sink := &sinkRecorder{}
	f := NewFanout(logger.Nop(), WithHub(hub), WithPubSub(client), WithEvents(sink))

	partial := meeting.NewEvent(meeting.EventPartialSegment, "m1")
	f.Notify(ctx, partial)
	job := &meeting.Job{ID: "j1", MeetingID: "m1", Status: meeting.JobRunning, Progress: 30, CurrentStep: "diarization"}
	f.Notify(ctx, meeting.ProgressEvent(job))

	for _, want := range []meeting.EventType{meeting.EventPartialSegment, meeting.EventProgress} {
		select {
		case data := <-sc.Events():
			var e meeting.Event
			if err := json.Unmarshal(data, &e); err != nil {
				t.Fatalf("decode hub event: %v", err)
			}
			if e.Type != want {
				t.Errorf("hub event = %s, want %s", e.Type, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for hub event %s", want)
		}
	}
	select {
	case <-other.Events():
		t.Error("other meeting must not receive events")
	case <-time.After(50 * time.Millisecond):
	}

	for _, want := range []meeting.EventType{meeting.EventPartialSegment, meeting.EventProgress} {
		select {
		case msg := <-sub.Messages():
			var e meeting.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				t.Fatalf("decode redis event: %v", err)
			}
			if e.Type != want {
				t.Errorf("redis event = %s, want %s", e.Type, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for redis event %s", want)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.sent) != 1 || sink.sent[0].Type != "meetscribe.job.progress" || sink.sent[0].Subject != "m1" {
		t.Errorf("kafka events = %+v, want one progress event keyed by m1", sink.sent)
	}
}
