package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kbukum/meetscribe/database"
	"github.com/kbukum/meetscribe/encryption"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	cfg := database.Config{
		Enabled:     true,
		DSN:         filepath.Join(t.TempDir(), "store.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	c := database.NewComponent(cfg, logger.Nop()).WithAutoMigrate(Models()...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start database: %v", err)
	}
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	s := New(c.DB(), logger.Nop(), opts...)
	if err := s.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return s
}

func newTestMeeting(t *testing.T, s *Store, status meeting.Status) *meeting.Meeting {
	t.Helper()
	m := &meeting.Meeting{Title: "Weekly sync", Mode: meeting.ModeUpload, Status: status}
	if err := s.CreateMeeting(context.Background(), m); err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	return m
}

func newRunningJob(t *testing.T, s *Store, meetingID string) *meeting.Job {
	t.Helper()
	ctx := context.Background()
	j := &meeting.Job{MeetingID: meetingID, Type: meeting.JobProcess, Scope: meeting.ScopeFull}
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := s.StartJob(ctx, j.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}
	return j
}

func named(name string) meeting.Identity {
	return meeting.Identity{DisplayName: meeting.Ptr(name), IdentifiedBy: meeting.IdentifiedIntroLLM, Confidence: 0.8}
}

func TestCreateJobAllowsOneActiveProcessingJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusUploaded)

	first := &meeting.Job{MeetingID: m.ID, Type: meeting.JobProcess}
	if err := s.CreateJob(ctx, first); err != nil {
		t.Fatalf("first job: %v", err)
	}
	if first.Status != meeting.JobPending {
		t.Errorf("expected pending, got %s", first.Status)
	}

	second := &meeting.Job{MeetingID: m.ID, Type: meeting.JobReprocess, Scope: meeting.ScopeFull}
	if err := s.CreateJob(ctx, second); !apperrors.IsConflict(err) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if _, err := s.GetJob(ctx, second.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected rejected job to be absent, got %v", err)
	}

	polish := &meeting.Job{MeetingID: m.ID, Type: meeting.JobPolishPass}
	if err := s.CreateJob(ctx, polish); err != nil {
		t.Errorf("polish jobs are not guarded: %v", err)
	}

	if err := s.FailRun(ctx, first.ID, m.ID, Failure{Step: "transcription", Code: "TIMEOUT", Message: "slow"}, meeting.StatusFailed); err != nil {
		t.Fatalf("fail run: %v", err)
	}
	third := &meeting.Job{MeetingID: m.ID, Type: meeting.JobReprocess, Scope: meeting.ScopeFull}
	if err := s.CreateJob(ctx, third); err != nil {
		t.Errorf("expected new job after failure, got %v", err)
	}
}

func TestCreateJobConcurrentRequests(t *testing.T) {
	s := newTestStore(t)
	m := newTestMeeting(t, s, meeting.StatusUploaded)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateJob(context.Background(), &meeting.Job{MeetingID: m.ID, Type: meeting.JobProcess})
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.IsConflict(err):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, ok, conflicts)
	}

	jobs, err := s.ListJobs(context.Background(), m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job row, got %d", len(jobs))
	}
}

func TestUpdateJobProgressIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusUploaded)
	j := newRunningJob(t, s, m.ID)

	if got, err := s.UpdateJobProgress(ctx, j.ID, 30, "transcription"); err != nil || got != 30 {
		t.Fatalf("expected 30, got %v (%v)", got, err)
	}
	got, err := s.UpdateJobProgress(ctx, j.ID, 10, "diarization")
	if err != nil {
		t.Fatal(err)
	}
	if got != 30 {
		t.Errorf("expected progress to stay at 30, got %v", got)
	}

	stored, _ := s.GetJob(ctx, j.ID)
	if stored.CurrentStep != "diarization" {
		t.Errorf("expected step diarization, got %q", stored.CurrentStep)
	}

	if err := s.CompleteJob(ctx, j.ID, "done"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateJobProgress(ctx, j.ID, 50, "late"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE for terminal job, got %v", err)
	}
}

func TestCommitTranscriptCreatesSpeakersAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusProcessing)
	j := newRunningJob(t, s, m.ID)

	sum, err := s.CommitTranscript(ctx, Commit{
		MeetingID: m.ID,
		JobID:     j.ID,
		Identities: map[string]meeting.Identity{
			"SPEAKER_00": named("Anna"),
			"SPEAKER_01": {IdentifiedBy: meeting.IdentifiedNone, DisplayName: meeting.Ptr("Participant 1")},
		},
		Segments: []meeting.AlignedSegment{
			{Start: 0, End: 2, Text: "Hi, I'm Anna.", Label: "SPEAKER_00"},
			{Start: 2, End: 5, Text: "Hello.", Label: "SPEAKER_01"},
			{Start: 5, End: 6, Text: "mm", Label: meeting.UnknownLabel},
			{Start: 6, End: 9, Text: "Let's start.", Label: "SPEAKER_00"},
		},
		Meeting: map[string]any{"duration": 9.0},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if sum.Segments != 4 || sum.Speakers != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}

	segs, _ := s.ListSegments(ctx, m.ID)
	for i, seg := range segs {
		if seg.Order != i {
			t.Errorf("segment %d has order %d", i, seg.Order)
		}
		if seg.SpeakerID == nil {
			t.Errorf("segment %d has no speaker", i)
		}
	}

	speakers, _ := s.ListSpeakers(ctx, m.ID)
	byLabel := map[string]meeting.Speaker{}
	for _, sp := range speakers {
		byLabel[sp.Label] = sp
	}
	anna := byLabel["SPEAKER_00"]
	if anna.Name() != "Anna" || anna.SegmentCount != 2 || anna.TotalSpeakingTime != 5 {
		t.Errorf("unexpected speaker %+v", anna)
	}
	if anna.Color != meeting.Color(0) || byLabel["SPEAKER_01"].Color != meeting.Color(1) {
		t.Errorf("expected palette colors by sorted label")
	}
	unk := byLabel[meeting.UnknownLabel]
	if unk.Color != meeting.UnknownColor || unk.Name() != meeting.UnknownName {
		t.Errorf("unexpected unknown speaker %+v", unk)
	}

	got, _ := s.GetMeeting(ctx, m.ID)
	if got.Status != meeting.StatusCompleted || got.SegmentCount != 4 || got.SpeakerCount != 2 || got.Duration != 9 {
		t.Errorf("unexpected meeting %+v", got)
	}
	job, _ := s.GetJob(ctx, j.ID)
	if job.Status != meeting.JobCompleted || job.Progress != 100 {
		t.Errorf("expected completed job at 100, got %s %v", job.Status, job.Progress)
	}
}

func TestCommitTranscriptPreservesEditedText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusProcessing)

	first := []meeting.AlignedSegment{
		{Start: 0, End: 4, Text: "helo world", Label: "SPEAKER_00"},
		{Start: 4, End: 8, Text: "second", Label: "SPEAKER_01"},
	}
	if _, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: first}); err != nil {
		t.Fatal(err)
	}
	segs, _ := s.ListSegments(ctx, m.ID)
	if _, err := s.UpdateSegmentText(ctx, segs[0].ID, "Hello world"); err != nil {
		t.Fatal(err)
	}

	second := []meeting.AlignedSegment{
		{Start: 0.6, End: 4.9, Text: "hello word", Label: "SPEAKER_01"},
		{Start: 4.9, End: 8, Text: "second again", Label: "SPEAKER_00"},
	}
	sum, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: second})
	if err != nil {
		t.Fatal(err)
	}
	if sum.EditsPreserved != 1 {
		t.Errorf("expected 1 preserved edit, got %d", sum.EditsPreserved)
	}
	segs, _ = s.ListSegments(ctx, m.ID)
	if segs[0].Text != "Hello world" || !segs[0].Edited {
		t.Errorf("expected edited text kept, got %q edited=%v", segs[0].Text, segs[0].Edited)
	}
	if segs[0].OriginalText != "hello word" {
		t.Errorf("expected original text from new run, got %q", segs[0].OriginalText)
	}
	if segs[1].Text != "second again" || segs[1].Edited {
		t.Errorf("unexpected second segment %+v", segs[1])
	}
}

func TestCommitTranscriptKeepsEditedSegmentsWhole(t *testing.T) {
	type want struct {
		start, end float64
		text       string
		edited     bool
		label      string
	}
	tests := []struct {
		name   string
		second []meeting.AlignedSegment
		want   []want
	}{
		{
			name: "new boundary inside the edit",
			second: []meeting.AlignedSegment{
				{Start: 0, End: 5, Text: "Hi, I'm Anna.", Label: "SPEAKER_00"},
				{Start: 5, End: 6, Text: "Let's", Label: "SPEAKER_00"},
				{Start: 6, End: 8, Text: "review the budget.", Label: "SPEAKER_01"},
			},
			want: []want{
				{0, 5, "Hi, I'm Anna.", false, "SPEAKER_00"},
				{5, 8, "Let us review the whole budget.", true, "SPEAKER_01"},
			},
		},
		{
			name: "new segment straddles the edit",
			second: []meeting.AlignedSegment{
				{Start: 0, End: 5.8, Text: "Hi, I'm Anna. Let's", Label: "SPEAKER_00"},
				{Start: 5.8, End: 7, Text: "review", Label: "SPEAKER_01"},
				{Start: 7, End: 8, Text: "the budget.", Label: "SPEAKER_01"},
			},
			want: []want{
				{0, 5, "Hi, I'm Anna. Let's", false, "SPEAKER_00"},
				{5, 8, "Let us review the whole budget.", true, "SPEAKER_01"},
			},
		},
		{
			name: "no speech left under the edit",
			second: []meeting.AlignedSegment{
				{Start: 0, End: 5, Text: "Hi, I'm Anna.", Label: "SPEAKER_00"},
			},
			want: []want{
				{0, 5, "Hi, I'm Anna.", false, "SPEAKER_00"},
				{5, 8, "Let us review the whole budget.", true, meeting.UnknownLabel},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			m := newTestMeeting(t, s, meeting.StatusProcessing)
			first := []meeting.AlignedSegment{
				{Start: 0, End: 5, Text: "Hi, I'm Anna.", Label: "SPEAKER_00"},
				{Start: 5, End: 8, Text: "Let's review the budget.", Label: "SPEAKER_00"},
			}
			if _, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: first}); err != nil {
				t.Fatal(err)
			}
			segs, _ := s.ListSegments(ctx, m.ID)
			if _, err := s.UpdateSegmentText(ctx, segs[1].ID, "Let us review the whole budget."); err != nil {
				t.Fatal(err)
			}

			sum, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: tt.second})
			if err != nil {
				t.Fatal(err)
			}
			if sum.EditsPreserved != 1 {
				t.Errorf("expected 1 preserved edit, got %d", sum.EditsPreserved)
			}

			speakers, _ := s.ListSpeakers(ctx, m.ID)
			labels := map[string]string{}
			for _, sp := range speakers {
				labels[sp.ID] = sp.Label
			}
			segs, _ = s.ListSegments(ctx, m.ID)
			if len(segs) != len(tt.want) {
				t.Fatalf("expected %d segments, got %d", len(tt.want), len(segs))
			}
			for i, w := range tt.want {
				got := segs[i]
				if got.Start != w.start || got.End != w.end || got.Text != w.text || got.Edited != w.edited {
					t.Errorf("segment %d = [%v-%v] %q edited=%v, want [%v-%v] %q edited=%v",
						i, got.Start, got.End, got.Text, got.Edited, w.start, w.end, w.text, w.edited)
				}
				if got.SpeakerID == nil || labels[*got.SpeakerID] != w.label {
					t.Errorf("segment %d speaker = %v, want %s", i, got.SpeakerID, w.label)
				}
				if got.Order != i {
					t.Errorf("segment %d has order %d", i, got.Order)
				}
			}
			if segs[1].OriginalText != "Let's review the budget." {
				t.Errorf("expected original text of the edit kept, got %q", segs[1].OriginalText)
			}
		})
	}
}

func TestCommitTranscriptIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusProcessing)

	if _, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: []meeting.AlignedSegment{
		{Start: 0, End: 1, Text: "kept", Label: "SPEAKER_00"},
	}}); err != nil {
		t.Fatal(err)
	}

	_, err := s.CommitTranscript(ctx, Commit{
		MeetingID: m.ID,
		JobID:     "missing-job",
		Segments: []meeting.AlignedSegment{
			{Start: 0, End: 1, Text: "replaced", Label: "SPEAKER_00"},
			{Start: 1, End: 2, Text: "extra", Label: "SPEAKER_01"},
		},
	})
	if err == nil {
		t.Fatal("expected commit to fail")
	}

	segs, _ := s.ListSegments(ctx, m.ID)
	if len(segs) != 1 || segs[0].Text != "kept" {
		t.Errorf("expected previous transcript untouched, got %+v", segs)
	}
	speakers, _ := s.ListSpeakers(ctx, m.ID)
	if len(speakers) != 1 {
		t.Errorf("expected 1 speaker, got %d", len(speakers))
	}
}

func TestReassignSpeakersKeepsTimesAndText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusProcessing)

	if _, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: []meeting.AlignedSegment{
		{Start: 0, End: 2, Text: "one", Label: "SPEAKER_00"},
		{Start: 2, End: 4, Text: "two", Label: "SPEAKER_01"},
	}}); err != nil {
		t.Fatal(err)
	}
	before, _ := s.ListSegments(ctx, m.ID)

	labels := map[string]string{before[0].ID: "SPEAKER_01", before[1].ID: "SPEAKER_01"}
	sum, err := s.ReassignSpeakers(ctx, Reassignment{
		MeetingID:  m.ID,
		Identities: map[string]meeting.Identity{"SPEAKER_01": named("Bo")},
		Labels:     labels,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Speakers != 1 {
		t.Errorf("expected 1 speaker, got %d", sum.Speakers)
	}

	after, _ := s.ListSegments(ctx, m.ID)
	for i := range after {
		if after[i].ID != before[i].ID || after[i].Text != before[i].Text ||
			after[i].Start != before[i].Start || after[i].End != before[i].End {
			t.Errorf("segment %d changed: %+v -> %+v", i, before[i], after[i])
		}
		if *after[i].SpeakerID != *after[0].SpeakerID {
			t.Errorf("expected all segments on one speaker")
		}
	}
	sp, _ := s.GetSpeaker(ctx, *after[0].SpeakerID)
	if sp.Name() != "Bo" || sp.SegmentCount != 2 {
		t.Errorf("unexpected speaker %+v", sp)
	}
}

func TestMergeSpeakers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusProcessing)

	if _, err := s.CommitTranscript(ctx, Commit{MeetingID: m.ID, Segments: []meeting.AlignedSegment{
		{Start: 0, End: 2, Text: "a", Label: "SPEAKER_00"},
		{Start: 2, End: 3, Text: "b", Label: "SPEAKER_01"},
		{Start: 3, End: 6, Text: "c", Label: "SPEAKER_00"},
	}}); err != nil {
		t.Fatal(err)
	}
	speakers, _ := s.ListSpeakers(ctx, m.ID)
	target, source := speakers[0], speakers[1]

	if _, err := s.MergeSpeakers(ctx, m.ID, target.ID, target.ID); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for self merge, got %v", err)
	}
	moved, err := s.MergeSpeakers(ctx, m.ID, source.ID, target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 1 {
		t.Errorf("expected 1 moved segment, got %d", moved)
	}
	merged, _ := s.GetSpeaker(ctx, target.ID)
	if merged.SegmentCount != 3 || merged.TotalSpeakingTime != 6 {
		t.Errorf("unexpected merged stats %+v", merged)
	}
	if _, err := s.GetSpeaker(ctx, source.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected source deleted, got %v", err)
	}
	got, _ := s.GetMeeting(ctx, m.ID)
	if got.SpeakerCount != 1 {
		t.Errorf("expected speaker count 1, got %d", got.SpeakerCount)
	}
}

func TestAppendLiveSegment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusRecording)

	a, err := s.AppendLiveSegment(ctx, m.ID, meeting.LiveSegment{Seq: 1, Start: 0, End: 3, Text: "hi", ProvisionalLabel: "Speaker 1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AppendLiveSegment(ctx, m.ID, meeting.LiveSegment{Seq: 2, Start: 3, End: 5, Text: "yo", ProvisionalLabel: "Speaker 2"})
	if err != nil {
		t.Fatal(err)
	}
	c, err := s.AppendLiveSegment(ctx, m.ID, meeting.LiveSegment{Seq: 3, Start: 5, End: 6, Text: "ok", ProvisionalLabel: "Speaker 1"})
	if err != nil {
		t.Fatal(err)
	}

	if a.Order != 0 || b.Order != 1 || c.Order != 2 {
		t.Errorf("expected dense order, got %d %d %d", a.Order, b.Order, c.Order)
	}
	if a.SpeakerID != c.SpeakerID || a.SpeakerID == b.SpeakerID {
		t.Errorf("expected provisional labels to map to stable speakers")
	}
	if a.SpeakerColor != meeting.Color(0) || b.SpeakerColor != meeting.Color(1) {
		t.Errorf("unexpected colors %s %s", a.SpeakerColor, b.SpeakerColor)
	}
	got, _ := s.GetMeeting(ctx, m.ID)
	if got.SegmentCount != 3 || got.SpeakerCount != 2 || got.Duration != 6 {
		t.Errorf("unexpected meeting counters %+v", got)
	}
}

func TestTransitionRecording(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusUploading)

	idle := []meeting.RecordingStatus{meeting.RecordingIdle}
	if err := s.TransitionRecording(ctx, m.ID, idle, meeting.RecordingActive, meeting.StatusRecording); err != nil {
		t.Fatal(err)
	}
	if err := s.TransitionRecording(ctx, m.ID, idle, meeting.RecordingActive, meeting.StatusRecording); !apperrors.IsConflict(err) {
		t.Errorf("expected CONFLICT on second start, got %v", err)
	}
	err := s.TransitionRecording(ctx, m.ID, []meeting.RecordingStatus{meeting.RecordingFinalizing}, meeting.RecordingComplete, "")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidState) {
		t.Errorf("expected INVALID_STATE, got %v", err)
	}
}

func TestAppendPolishHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := newTestMeeting(t, s, meeting.StatusRecording)

	for pass := 1; pass <= 2; pass++ {
		if err := s.AppendPolishHistory(ctx, m.ID, meeting.PolishEntry{Pass: pass, SpeakerCount: 2}); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.GetMeeting(ctx, m.ID)
	if len(got.PolishHistory) != 2 || got.PolishHistory[1].Pass != 2 {
		t.Errorf("unexpected history %+v", got.PolishHistory)
	}
}

func TestProfilesAndArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &meeting.VoiceProfile{Name: "Anna", SampleCount: 1}
	p.SetVector([]float32{1, 0})
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateProfileEmbedding(ctx, p.ID, []float32{0.5, 0.5}, 2); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetProfile(ctx, p.ID)
	if got.SampleCount != 2 || got.Vector()[1] != 0.5 {
		t.Errorf("unexpected profile %+v", got)
	}
	if err := s.DeleteProfile(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteProfile(ctx, p.ID); !apperrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	if _, err := s.GetArtifact(ctx, "m1", ArtifactTokens); !apperrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
	for _, data := range []string{"v1", "v2"} {
		if err := s.PutArtifact(ctx, "m1", ArtifactTokens, []byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	data, err := s.GetArtifact(ctx, "m1", ArtifactTokens)
	if err != nil || string(data) != "v2" {
		t.Errorf("expected v2, got %q (%v)", data, err)
	}
	if err := s.DeleteArtifacts(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetArtifact(ctx, "m1", ArtifactTokens); !apperrors.IsNotFound(err) {
		t.Errorf("expected artifact deleted, got %v", err)
	}
}

func TestProfilesSealedAtRest(t *testing.T) {
	sealer, err := encryption.New(encryption.Config{Enabled: true, Key: "profile-test-key-0001"})
	if err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, WithSealer(sealer))
	ctx := context.Background()

	// A profile written before encryption was enabled stays readable.
	legacy := &meeting.VoiceProfile{Name: "Bob", SampleCount: 1}
	legacy.SetVector([]float32{0, 1})
	if err := New(s.db, logger.Nop()).CreateProfile(ctx, legacy); err != nil {
		t.Fatal(err)
	}

	p := &meeting.VoiceProfile{Name: "Anna", SampleCount: 1}
	p.SetVector([]float32{1, 0})
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	if p.Vector()[0] != 1 {
		t.Errorf("caller's profile was modified: %v", p.Vector())
	}

	var raw []byte
	if err := s.db.WithContext(ctx).Raw("SELECT embedding FROM voice_profiles WHERE id = ?", p.ID).Row().Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if !encryption.IsSealed(raw) {
		t.Error("embedding stored in plaintext")
	}

	if err := s.UpdateProfileEmbedding(ctx, p.ID, []float32{0.5, 0.5}, 2); err != nil {
		t.Fatal(err)
	}
	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if v := profiles[0].Vector(); profiles[0].Name != "Anna" || v[0] != 0.5 || v[1] != 0.5 {
		t.Errorf("unexpected Anna profile %v", v)
	}
	if v := profiles[1].Vector(); profiles[1].Name != "Bob" || v[1] != 1 {
		t.Errorf("unexpected Bob profile %v", v)
	}
}
