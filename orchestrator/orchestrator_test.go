package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/dag"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/jobs"
	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/testutil"
	"github.com/kbukum/meetscribe/transcription"
)

type harness struct {
	env    *testutil.Env
	orch   *Orchestrator
	norm   *testutil.Normalizer
	stt    *testutil.Transcriber
	diar   *testutil.Diarizer
	llm    *testutil.Completer
	events *testutil.Recorder
}

func introTokens() []meeting.Token {
	return []meeting.Token{
		{Start: 0, End: 2, Text: "Hi, I'm Anna."},
		{Start: 2.5, End: 4.5, Text: "And I'm Erik."},
		{Start: 5, End: 8, Text: "Let's review the budget."},
		{Start: 8.5, End: 10, Text: "Sounds good."},
	}
}

func twoSpeakerTurns() []meeting.Turn {
	return []meeting.Turn{
		{Start: 0, End: 2.2, Label: "SPEAKER_00"},
		{Start: 2.3, End: 4.8, Label: "SPEAKER_01"},
		{Start: 4.9, End: 8.2, Label: "SPEAKER_00"},
		{Start: 8.3, End: 10, Label: "SPEAKER_01"},
	}
}

const introReply = `{"speakers": [{"label": "SPEAKER_00", "name": "Anna"}, {"label": "SPEAKER_01", "name": "Erik"}]}`

func newHarness(t *testing.T, idCfg speakerid.Config) *harness {
	t.Helper()
	h := &harness{
		env:    testutil.NewEnv(t),
		norm:   &testutil.Normalizer{Seconds: 10},
		stt:    &testutil.Transcriber{Tokens: introTokens()},
		diar:   &testutil.Diarizer{Turns: twoSpeakerTurns()},
		llm:    &testutil.Completer{Reply: func(llm.CompletionRequest) (string, error) { return introReply, nil }},
		events: &testutil.Recorder{},
	}
	tracker := jobs.NewTracker(h.env.Store, h.events, logger.Nop())
	orch, err := New(Config{}, Deps{
		Store:       h.env.Store,
		Blobs:       h.env.Blobs,
		Normalizer:  h.norm,
		Transcriber: h.stt,
		Diarizer:    h.diar,
		Identifier:  speakerid.New(idCfg, h.llm.RR(), logger.Nop()),
		Tracker:     tracker,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	testutil.T(t).Setup(orch)
	h.orch = orch
	return h
}

func (h *harness) upload(t *testing.T) *meeting.Meeting {
	t.Helper()
	m := h.env.Meeting(t, meeting.StatusUploaded)
	key := audio.RawKey(m.ID, "mp3")
	h.env.Put(t, key, []byte("ID3 fake mp3"))
	if err := h.env.Store.UpdateMeeting(context.Background(), m.ID, map[string]any{"audio_ref": key}); err != nil {
		t.Fatalf("set audio ref: %v", err)
	}
	m.AudioRef = key
	return m
}

func (h *harness) wait(t *testing.T, jobID string) *meeting.Job {
	t.Helper()
	var j *meeting.Job
	testutil.Eventually(t, 5*time.Second, func() bool {
		var err error
		j, err = h.env.Store.GetJob(context.Background(), jobID)
		return err == nil && j.Status.Terminal()
	}, "job "+jobID+" terminal")
	return j
}

func TestProcessNamesIntroducedSpeakers(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()
	m := h.upload(t)

	j, err := h.orch.Process(ctx, m.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if j.Status != meeting.JobPending {
		t.Errorf("expected pending handle, got %s", j.Status)
	}

	done := h.wait(t, j.ID)
	if done.Status != meeting.JobCompleted || done.Progress != 100 {
		t.Fatalf("job = %s at %v (%s: %s)", done.Status, done.Progress, done.FailedStep, done.Error)
	}

	got, _ := h.env.Store.GetMeeting(ctx, m.ID)
	if got.Status != meeting.StatusCompleted {
		t.Errorf("meeting status = %s, want completed", got.Status)
	}
	if got.Duration != 10 || got.Language != "en" || got.NormalizedRef == "" {
		t.Errorf("meeting = duration %v language %q normalized %q", got.Duration, got.Language, got.NormalizedRef)
	}
	if got.SpeakerCount != 2 || got.SegmentCount != 4 {
		t.Errorf("counts = %d speakers / %d segments, want 2/4", got.SpeakerCount, got.SegmentCount)
	}

	speakers, _ := h.env.Store.ListSpeakers(ctx, m.ID)
	names := map[string]string{}
	for _, sp := range speakers {
		names[sp.Label] = sp.Name()
		if sp.IdentifiedBy != meeting.IdentifiedIntroLLM || sp.Confidence < 0.8 {
			t.Errorf("speaker %s = %s / %v, want intro_llm >= 0.8", sp.Label, sp.IdentifiedBy, sp.Confidence)
		}
	}
	if names["SPEAKER_00"] != "Anna" || names["SPEAKER_01"] != "Erik" {
		t.Errorf("names = %v", names)
	}

	last := -1.0
	var steps []string
	for _, e := range h.events.Events() {
		if e.Type != meeting.EventProgress || e.JobID != j.ID {
			continue
		}
		if *e.Progress < last {
			t.Errorf("progress went backwards: %v after %v", *e.Progress, last)
		}
		last = *e.Progress
		steps = append(steps, e.Step)
	}
	joined := strings.Join(steps, ",")
	for _, want := range []string{StageNormalize, StageTranscribe, StageDiarize, StageAlign, StageIdentify, StagePersist} {
		if !strings.Contains(joined, want) {
			t.Errorf("no progress reported for %s in %s", want, joined)
		}
	}
	if last != 100 {
		t.Errorf("final progress = %v, want 100", last)
	}
}

func TestShouldRun(t *testing.T) {
	two := 2
	tests := []struct {
		name    string
		stage   string
		prepare func(*dag.State)
		want    bool
	}{
		{"fresh normalization", StageNormalize, nil, true},
		{"retained audio", StageNormalize, func(s *dag.State) { dag.Write(s, portWAV, []byte("RIFF")) }, false},
		{"fresh transcription", StageTranscribe, nil, true},
		{"cached tokens", StageTranscribe, func(s *dag.State) { dag.Write(s, portTokens, introTokens()) }, false},
		{"unknown speaker count", StageEstimate, nil, true},
		{"given speaker count", StageEstimate, func(s *dag.State) {
			dag.Write(s, portRun, &run{job: &meeting.Job{}, meeting: &meeting.Meeting{MinSpeakers: &two}})
		}, false},
		{"diarization", StageDiarize, nil, true},
		{"persist", StagePersist, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := dag.NewState()
			dag.Write(state, portRun, &run{job: &meeting.Job{}, meeting: &meeting.Meeting{}})
			if tt.prepare != nil {
				tt.prepare(state)
			}
			if got := shouldRun(tt.stage, state); got != tt.want {
				t.Errorf("shouldRun(%s) = %v, want %v", tt.stage, got, tt.want)
			}
		})
	}
}

func TestProcessReportsStageEnds(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	m := h.upload(t)
	j, err := h.orch.Process(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted || done.Progress != 100 {
		t.Fatalf("job = %s at %v (%s: %s)", done.Status, done.Progress, done.FailedStep, done.Error)
	}

	ends := map[string]bool{}
	for _, e := range h.events.OfType(meeting.EventProgress) {
		if e.JobID == j.ID && e.Progress != nil && *e.Progress == stageProgress[e.Step].end {
			ends[e.Step] = true
		}
	}
	for _, stage := range []string{StageNormalize, StageIdentify} {
		if !ends[stage] {
			t.Errorf("no end of stage reported for %s", stage)
		}
	}
}

func TestProcessWithoutIntroductionsUsesParticipants(t *testing.T) {
	h := newHarness(t, speakerid.Config{RequireIntroPattern: true})
	h.stt.Tokens = []meeting.Token{
		{Start: 0, End: 2, Text: "Okay the budget first."},
		{Start: 2.5, End: 4.5, Text: "Numbers look fine."},
		{Start: 5, End: 8, Text: "Then hiring."},
	}
	h.diar.Turns = []meeting.Turn{
		{Start: 0, End: 2.2, Label: "SPEAKER_01"},
		{Start: 2.3, End: 4.8, Label: "SPEAKER_00"},
		{Start: 4.9, End: 8.2, Label: "SPEAKER_01"},
	}
	ctx := context.Background()
	m := h.upload(t)

	j, err := h.orch.Process(ctx, m.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("job = %s (%s)", done.Status, done.Error)
	}
	if h.llm.Calls() != 0 {
		t.Errorf("expected no completion calls, got %d", h.llm.Calls())
	}

	speakers, _ := h.env.Store.ListSpeakers(ctx, m.ID)
	names := map[string]string{}
	for _, sp := range speakers {
		names[sp.Label] = sp.Name()
		if sp.IdentifiedBy != meeting.IdentifiedNone {
			t.Errorf("speaker %s identified by %s, want none", sp.Label, sp.IdentifiedBy)
		}
	}
	if names["SPEAKER_01"] != "Participant 1" || names["SPEAKER_00"] != "Participant 2" {
		t.Errorf("names = %v, want SPEAKER_01=Participant 1, SPEAKER_00=Participant 2", names)
	}
}

func TestProcessConcurrentCallsConflict(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	release := make(chan struct{})
	h.stt.Fn = func(transcription.Request) (*transcription.Response, error) {
		<-release
		return &transcription.Response{Tokens: introTokens()}, nil
	}
	ctx := context.Background()
	m := h.upload(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  []*meeting.Job
		conflicts int
		others    []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := h.orch.Process(ctx, m.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted = append(accepted, j)
			case apperrors.IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(accepted) != 1 || conflicts != 1 || len(others) != 0 {
		t.Fatalf("accepted=%d conflicts=%d others=%v", len(accepted), conflicts, others)
	}
	all, _ := h.env.Store.ListJobs(ctx, m.ID)
	if len(all) != 1 {
		t.Errorf("expected 1 job row, got %d", len(all))
	}

	close(release)
	if done := h.wait(t, accepted[0].ID); done.Status != meeting.JobCompleted {
		t.Errorf("job = %s (%s)", done.Status, done.Error)
	}
}

func TestProcessDiarizationFailure(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	h.diar.Err = apperrors.ExternalServiceError("pyannote", errors.New("503 service unavailable"))
	ctx := context.Background()
	m := h.upload(t)

	j, err := h.orch.Process(ctx, m.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	done := h.wait(t, j.ID)
	if done.Status != meeting.JobFailed || done.FailedStep != StageDiarize {
		t.Fatalf("job = %s at step %q, want failed at diarization", done.Status, done.FailedStep)
	}
	if done.ErrorCode != string(apperrors.ErrCodeExternalService) {
		t.Errorf("error code = %q", done.ErrorCode)
	}
	got, _ := h.env.Store.GetMeeting(ctx, m.ID)
	if got.Status != meeting.StatusFailed {
		t.Errorf("meeting status = %s, want failed", got.Status)
	}
	if segs, _ := h.env.Store.ListSegments(ctx, m.ID); len(segs) != 0 {
		t.Errorf("expected no segments, got %d", len(segs))
	}

	var sawError bool
	for _, e := range h.events.Events() {
		if e.Type == meeting.EventError && e.JobID == j.ID {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected an error event")
	}

	// Retry reuses the normalized audio and the cached tokens.
	h.diar.Err = nil
	retry, err := h.orch.Process(ctx, m.ID)
	if err != nil {
		t.Fatalf("retry Process() error: %v", err)
	}
	if done := h.wait(t, retry.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("retry = %s (%s)", done.Status, done.Error)
	}
	if n := h.norm.Normalized(); n != 1 {
		t.Errorf("normalize calls = %d, want 1", n)
	}
	if n := len(h.stt.Requests()); n != 1 {
		t.Errorf("transcribe calls = %d, want 1", n)
	}
	if n := len(h.diar.Requests()); n != 2 {
		t.Errorf("diarize calls = %d, want 2", n)
	}
}

func TestProcessRejectsBadState(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()

	if _, err := h.orch.Process(ctx, "missing"); !apperrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	m := h.env.Meeting(t, meeting.StatusCompleted)
	if _, err := h.orch.Process(ctx, m.ID); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
	if _, err := h.orch.Reprocess(ctx, m.ID, "everything"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for scope, got %v", err)
	}
	if _, err := h.orch.Reprocess(ctx, m.ID, meeting.ScopeSpeakerIDOnly); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT without cached diarization, got %v", err)
	}
}

func processed(t *testing.T, h *harness) *meeting.Meeting {
	t.Helper()
	m := h.upload(t)
	j, err := h.orch.Process(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("job = %s (%s)", done.Status, done.Error)
	}
	return m
}

func TestReprocessSpeakerIDOnlyKeepsSegments(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()
	m := processed(t, h)

	before, _ := h.env.Store.ListSegments(ctx, m.ID)
	if _, err := h.env.Store.UpdateSegmentText(ctx, before[2].ID, "Let us review the budget."); err != nil {
		t.Fatalf("edit: %v", err)
	}
	h.llm.Reply = func(llm.CompletionRequest) (string, error) {
		return `{"speakers": [{"label": "SPEAKER_00", "name": "Anna Berg"}]}`, nil
	}

	j, err := h.orch.Reprocess(ctx, m.ID, meeting.ScopeSpeakerIDOnly)
	if err != nil {
		t.Fatalf("Reprocess() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("job = %s (%s: %s)", done.Status, done.FailedStep, done.Error)
	}
	if len(h.stt.Requests()) != 1 || len(h.diar.Requests()) != 1 {
		t.Errorf("expected no new transcription or diarization calls")
	}

	after, _ := h.env.Store.ListSegments(ctx, m.ID)
	if len(after) != len(before) {
		t.Fatalf("segments = %d, want %d", len(after), len(before))
	}
	for i := range after {
		if after[i].ID != before[i].ID || after[i].Start != before[i].Start || after[i].End != before[i].End {
			t.Errorf("segment %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
	if after[2].Text != "Let us review the budget." {
		t.Errorf("edited text lost: %q", after[2].Text)
	}

	speakers, _ := h.env.Store.ListSpeakers(ctx, m.ID)
	names := map[string]string{}
	for _, sp := range speakers {
		names[sp.Label] = sp.Name()
	}
	if names["SPEAKER_00"] != "Anna Berg" || names["SPEAKER_01"] != "Participant 2" {
		t.Errorf("names = %v", names)
	}
}

func TestReprocessDiarizationOnlyPreservesEdits(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()
	m := processed(t, h)

	before, _ := h.env.Store.ListSegments(ctx, m.ID)
	if _, err := h.env.Store.UpdateSegmentText(ctx, before[0].ID, "Hi, I am Anna."); err != nil {
		t.Fatalf("edit: %v", err)
	}
	h.diar.Turns = []meeting.Turn{{Start: 0, End: 10, Label: "SPEAKER_00"}}

	j, err := h.orch.Reprocess(ctx, m.ID, meeting.ScopeDiarizationOnly)
	if err != nil {
		t.Fatalf("Reprocess() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("job = %s (%s)", done.Status, done.Error)
	}
	if n := len(h.stt.Requests()); n != 1 {
		t.Errorf("transcribe calls = %d, want 1", n)
	}

	after, _ := h.env.Store.ListSegments(ctx, m.ID)
	if after[0].Text != "Hi, I am Anna." || !after[0].Edited {
		t.Errorf("edit not preserved: %+v", after[0])
	}
	got, _ := h.env.Store.GetMeeting(ctx, m.ID)
	if got.SpeakerCount != 1 {
		t.Errorf("speaker count = %d, want 1", got.SpeakerCount)
	}
}

func TestReprocessFullIgnoresCaches(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()
	m := processed(t, h)

	j, err := h.orch.Reprocess(ctx, m.ID, meeting.ScopeFull)
	if err != nil {
		t.Fatalf("Reprocess() error: %v", err)
	}
	if done := h.wait(t, j.ID); done.Status != meeting.JobCompleted {
		t.Fatalf("job = %s (%s)", done.Status, done.Error)
	}
	if n := h.norm.Normalized(); n != 2 {
		t.Errorf("normalize calls = %d, want 2", n)
	}
	if n := len(h.stt.Requests()); n != 2 {
		t.Errorf("transcribe calls = %d, want 2", n)
	}
}

func TestFinalizeEstimatesSpeakers(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	h.llm.Reply = func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.SystemPrompt, "chunk by chunk") {
			return `{"intro_ongoing": false, "speaker_count": 2, "names": ["Anna", "Erik"]}`, nil
		}
		return introReply, nil
	}
	ctx := context.Background()

	m := &meeting.Meeting{Title: "Live", Mode: meeting.ModeLive, Status: meeting.StatusRecording, RecordingStatus: meeting.RecordingStopping}
	if err := h.env.Store.CreateMeeting(ctx, m); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	key := audio.NormalizedKey(m.ID)
	h.env.Put(t, key, audio.EncodeWAV(testutil.Silence(10)))
	if err := h.env.Store.UpdateMeeting(ctx, m.ID, map[string]any{"audio_ref": key, "normalized_ref": key}); err != nil {
		t.Fatalf("update meeting: %v", err)
	}

	finished := make(chan error, 1)
	j, err := h.orch.Finalize(ctx, m.ID, func(_ context.Context, _ *meeting.Job, err error) { finished <- err })
	if err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for finalization")
	}

	if done, _ := h.env.Store.GetJob(ctx, j.ID); done.Type != meeting.JobFinalizeLive || done.Status != meeting.JobCompleted {
		t.Errorf("job = %s %s", done.Type, done.Status)
	}
	if h.norm.Normalized() != 0 {
		t.Error("expected normalization to be skipped")
	}
	reqs := h.diar.Requests()
	if len(reqs) != 1 || reqs[0].MinSpeakers != 2 || reqs[0].MaxSpeakers != 3 {
		t.Errorf("diarize requests = %+v, want bounds 2..3", reqs)
	}
	got, _ := h.env.Store.GetMeeting(ctx, m.ID)
	if got.RecordingStatus != meeting.RecordingComplete || got.Status != meeting.StatusCompleted {
		t.Errorf("meeting = %s / %s", got.Status, got.RecordingStatus)
	}
	if got.MinSpeakers == nil || *got.MinSpeakers != 2 || got.IntroEndTime == nil {
		t.Errorf("estimate not stored: min=%v intro_end=%v", got.MinSpeakers, got.IntroEndTime)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	h := newHarness(t, speakerid.Config{})
	ctx := context.Background()
	m := h.env.Meeting(t, meeting.StatusProcessing)
	stale := &meeting.Job{MeetingID: m.ID, Type: meeting.JobProcess, Scope: meeting.ScopeFull}
	if err := h.env.Store.CreateJob(ctx, stale); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := h.orch.RecoverInterrupted(ctx); err != nil {
		t.Fatalf("RecoverInterrupted() error: %v", err)
	}
	j, _ := h.env.Store.GetJob(ctx, stale.ID)
	if j.Status != meeting.JobFailed {
		t.Errorf("job status = %s, want failed", j.Status)
	}
	got, _ := h.env.Store.GetMeeting(ctx, m.ID)
	if got.Status != meeting.StatusFailed {
		t.Errorf("meeting status = %s, want failed", got.Status)
	}
}
