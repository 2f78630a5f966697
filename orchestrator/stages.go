package orchestrator

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/kbukum/meetscribe/align"
	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/dag"
	"github.com/kbukum/meetscribe/diarization"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/store"
	"github.com/kbukum/meetscribe/transcription"
)

// Stage names, also reported as the job's current step.
const (
	StageNormalize  = "normalization"
	StageTranscribe = "transcription"
	StageEstimate   = "speaker_estimate"
	StageDiarize    = "diarization"
	StageAlign      = "alignment"
	StageRelabel    = "relabel"
	StageIdentify   = "speaker_identification"
	StagePersist    = "persist"
)

// StepDone is the step of a completed job.
const StepDone = "done"

// span is a stage's share of job progress.
type span struct{ start, end float64 }

var stageProgress = map[string]span{
	StageNormalize:  {0, 2},
	StageTranscribe: {2, 30},
	StageEstimate:   {30, 30},
	StageDiarize:    {30, 45},
	StageAlign:      {45, 75},
	StageRelabel:    {45, 75},
	StageIdentify:   {75, 90},
	StagePersist:    {90, 100},
}

// run is the per-job context shared by all stages through dag state.
type run struct {
	job     *meeting.Job
	meeting *meeting.Meeting
}

var (
	portRun        = dag.Port[*run]{Key: "run"}
	portWAV        = dag.Port[[]byte]{Key: "wav"}
	portTokens     = dag.Port[[]meeting.Token]{Key: "tokens"}
	portLanguage   = dag.Port[string]{Key: "language"}
	portEstimate   = dag.Port[speakerid.Estimate]{Key: "estimate"}
	portTurns      = dag.Port[[]meeting.Turn]{Key: "turns"}
	portSegments   = dag.Port[[]meeting.AlignedSegment]{Key: "segments"}
	portSegmentIDs = dag.Port[[]string]{Key: "segment_ids"}
	portIdentities = dag.Port[map[string]meeting.Identity]{Key: "identities"}
)

// stageNode bounds a stage by its timeout and reports the start of its
// progress span.
type stageNode struct {
	inner   dag.Node
	o       *Orchestrator
	timeout time.Duration
}

func (n *stageNode) Name() string { return n.inner.Name() }

func (n *stageNode) Run(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	name := n.inner.Name()
	p := stageProgress[name]
	if err := n.o.tracker.Progress(ctx, r.job, p.start, name); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	out, err := n.inner.Run(sctx, state)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (sctx.Err() != nil && ctx.Err() == nil) {
			if _, ok := apperrors.AsAppError(err); !ok {
				return nil, apperrors.Timeout(name).WithCause(err)
			}
		}
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) registerStages(reg *dag.Registry) {
	stages := []struct {
		name    string
		timeout time.Duration
		fn      func(ctx context.Context, state *dag.State) (any, error)
	}{
		{StageNormalize, o.cfg.NormalizeTimeout, o.normalize},
		{StageTranscribe, o.cfg.TranscribeTimeout, o.transcribe},
		{StageEstimate, o.cfg.EstimateTimeout, o.estimate},
		{StageDiarize, o.cfg.DiarizeTimeout, o.diarize},
		{StageAlign, o.cfg.PersistTimeout, o.align},
		{StageRelabel, o.cfg.PersistTimeout, o.relabel},
		{StageIdentify, o.cfg.IdentifyTimeout, o.identify},
		{StagePersist, o.cfg.PersistTimeout, o.persist},
	}
	for _, s := range stages {
		var node dag.Node = &stageNode{inner: dag.NodeFunc(s.name, s.fn), o: o, timeout: s.timeout}
		node = dag.WithLogging(node, o.log)
		node = dag.WithMetrics(node, o.metrics)
		if o.cfg.Tracing {
			node = dag.WithTracing(node, "pipeline")
		}
		reg.Register(node)
	}
}

// shouldRun reports whether a stage still has to produce its output.
// Retained audio, cached tokens and a known speaker count skip their stages.
func shouldRun(name string, state *dag.State) bool {
	switch name {
	case StageNormalize:
		return !state.Has(portWAV.Key)
	case StageTranscribe:
		return !state.Has(portTokens.Key)
	case StageEstimate:
		r, err := dag.Read(state, portRun)
		return err != nil || r.meeting.MinSpeakers == nil
	}
	return true
}

// stageDone moves a job to the end of a finished stage's progress span.
// Persist completes the job itself.
func (o *Orchestrator) stageDone(j *meeting.Job) func(context.Context, dag.NodeResult) {
	return func(ctx context.Context, nr dag.NodeResult) {
		if nr.Status != dag.StatusCompleted || nr.Name == StagePersist {
			return
		}
		if err := o.tracker.Progress(ctx, j, stageProgress[nr.Name].end, nr.Name); err != nil {
			o.log.Warn("record stage progress", logger.MergeWithError(logger.Fields(
				logger.FieldJobID, j.ID, logger.FieldStage, nr.Name), err))
		}
	}
}

func (o *Orchestrator) normalize(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	m := r.meeting
	if m.AudioRef == "" {
		return nil, apperrors.InvalidInput("audio", "meeting has no audio")
	}
	src, err := storage.GetBytes(ctx, o.blobs, m.AudioRef)
	if err != nil {
		return nil, storage.FromStorage(err, "download", m.AudioRef)
	}
	wav, duration, err := o.normalizer.Normalize(ctx, src, strings.TrimPrefix(path.Ext(m.AudioRef), "."))
	if err != nil {
		return nil, apperrors.FromExternal("ffmpeg", err)
	}
	key := audio.NormalizedKey(m.ID)
	if err := storage.PutBytes(ctx, o.blobs, key, wav); err != nil {
		return nil, storage.FromStorage(err, "upload", key)
	}
	if err := o.store.UpdateMeeting(ctx, m.ID, map[string]any{"normalized_ref": key, "duration": duration}); err != nil {
		return nil, err
	}
	m.NormalizedRef = key
	m.Duration = duration
	dag.Write(state, portWAV, wav)
	return duration, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	wav, err := dag.Read(state, portWAV)
	if err != nil {
		return nil, err
	}
	lang := r.meeting.Language
	if lang == "" {
		lang = o.cfg.Language
	}
	resp, err := o.transcriber.Transcribe(ctx, transcription.Request{
		Audio:    wav,
		FileName: "audio.wav",
		Tier:     transcription.TierFull,
		Model:    r.meeting.WhisperModel,
		Language: lang,
		Prompt:   r.meeting.Vocabulary,
	})
	if err != nil {
		return nil, apperrors.FromExternal("transcription", err)
	}
	if err := o.cache.SaveTokens(ctx, r.meeting.ID, resp.Tokens); err != nil {
		return nil, err
	}
	dag.Write(state, portTokens, resp.Tokens)
	if resp.Language != "" {
		dag.Write(state, portLanguage, resp.Language)
	}
	return len(resp.Tokens), nil
}

func (o *Orchestrator) estimate(ctx context.Context, state *dag.State) (any, error) {
	tokens, err := dag.Read(state, portTokens)
	if err != nil {
		return nil, err
	}
	est, err := o.identifier.EstimateSpeakers(ctx, tokens)
	if err != nil {
		return nil, err
	}
	dag.Write(state, portEstimate, est)
	return est.Count, nil
}

func (o *Orchestrator) diarize(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	wav, err := dag.Read(state, portWAV)
	if err != nil {
		return nil, err
	}
	req := diarization.Request{Audio: wav}
	if r.meeting.MinSpeakers != nil {
		req.MinSpeakers = *r.meeting.MinSpeakers
	}
	if r.meeting.MaxSpeakers != nil {
		req.MaxSpeakers = *r.meeting.MaxSpeakers
	}
	if est, err := dag.Read(state, portEstimate); err == nil && req.MinSpeakers == 0 {
		req.MinSpeakers, req.MaxSpeakers = est.Bounds()
	}
	resp, err := o.diarizer.Diarize(ctx, req)
	if err != nil {
		return nil, apperrors.FromExternal("diarization", err)
	}
	turns := resp.Turns
	diarization.SortTurns(turns)
	if err := o.cache.SaveTurns(ctx, r.meeting.ID, turns); err != nil {
		return nil, err
	}
	dag.Write(state, portTurns, turns)
	return len(turns), nil
}

func (o *Orchestrator) align(_ context.Context, state *dag.State) (any, error) {
	tokens, err := dag.Read(state, portTokens)
	if err != nil {
		return nil, err
	}
	turns, err := dag.Read(state, portTurns)
	if err != nil {
		return nil, err
	}
	segs := align.Align(tokens, turns)
	dag.Write(state, portSegments, segs)
	return len(segs), nil
}

// relabel assigns the cached diarization to the existing segments without
// touching their boundaries or text.
func (o *Orchestrator) relabel(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	turns, err := dag.Read(state, portTurns)
	if err != nil {
		return nil, err
	}
	existing, err := o.store.ListSegments(ctx, r.meeting.ID)
	if err != nil {
		return nil, err
	}
	segs := make([]meeting.AlignedSegment, len(existing))
	ids := make([]string, len(existing))
	for i, s := range existing {
		segs[i] = meeting.AlignedSegment{Start: s.Start, End: s.End, Text: s.Text, Label: align.Label(s.Start, s.End, turns)}
		ids[i] = s.ID
	}
	dag.Write(state, portSegments, segs)
	dag.Write(state, portSegmentIDs, ids)
	return len(segs), nil
}

func (o *Orchestrator) identify(ctx context.Context, state *dag.State) (any, error) {
	segs, err := dag.Read(state, portSegments)
	if err != nil {
		return nil, err
	}
	wav, _ := dag.Read(state, portWAV)
	ids, err := o.identifier.Identify(ctx, speakerid.Input{Segments: segs, Audio: wav})
	if err != nil {
		return nil, apperrors.FromExternal("llm", err)
	}
	dag.Write(state, portIdentities, ids)
	return len(ids), nil
}

func (o *Orchestrator) persist(ctx context.Context, state *dag.State) (any, error) {
	r, err := dag.Read(state, portRun)
	if err != nil {
		return nil, err
	}
	segs, err := dag.Read(state, portSegments)
	if err != nil {
		return nil, err
	}
	ids, err := dag.Read(state, portIdentities)
	if err != nil {
		return nil, err
	}
	extra := o.meetingUpdates(r, state)

	if segIDs, err := dag.Read(state, portSegmentIDs); err == nil {
		labels := make(map[string]string, len(segIDs))
		for i, id := range segIDs {
			labels[id] = segs[i].Label
		}
		sum, err := o.store.ReassignSpeakers(ctx, store.Reassignment{
			MeetingID:  r.meeting.ID,
			JobID:      r.job.ID,
			Identities: ids,
			Labels:     labels,
			Meeting:    extra,
		})
		if err != nil {
			return nil, err
		}
		return sum, nil
	}

	sum, err := o.store.CommitTranscript(ctx, store.Commit{
		MeetingID:  r.meeting.ID,
		JobID:      r.job.ID,
		Identities: ids,
		Segments:   segs,
		Meeting:    extra,
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (o *Orchestrator) meetingUpdates(r *run, state *dag.State) map[string]any {
	extra := map[string]any{}
	if lang, err := dag.Read(state, portLanguage); err == nil && r.meeting.Language == "" {
		extra["language"] = lang
	}
	if wav, err := dag.Read(state, portWAV); err == nil {
		if pcm, err := audio.PCM(wav); err == nil {
			extra["duration"] = audio.Duration(pcm)
		}
	}
	if est, err := dag.Read(state, portEstimate); err == nil && est.Count > 0 {
		lo, hi := est.Bounds()
		extra["min_speakers"] = lo
		extra["max_speakers"] = hi
		if est.IntroEnd != nil {
			extra["intro_end_time"] = *est.IntroEnd
		}
	}
	if r.job.Type == meeting.JobFinalizeLive {
		extra["recording_status"] = meeting.RecordingComplete
	}
	return extra
}
