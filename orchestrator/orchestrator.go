package orchestrator

import (
	"context"
	"strconv"
	"sync"

	"github.com/kbukum/meetscribe/component"
	"github.com/kbukum/meetscribe/dag"
	"github.com/kbukum/meetscribe/diarization"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/jobs"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/observability"
	"github.com/kbukum/meetscribe/resilience"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/store"
	"github.com/kbukum/meetscribe/transcription"
)

// Normalizer converts uploaded media into the pipeline's WAV format.
type Normalizer interface {
	Normalize(ctx context.Context, src []byte, ext string) ([]byte, float64, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store       *store.Store
	Blobs       storage.Storage
	Normalizer  Normalizer
	Transcriber transcription.Provider
	Diarizer    diarization.Provider
	Identifier  *speakerid.Identifier
	Tracker     *jobs.Tracker
	// Cache defaults to an ArtifactCache without Redis.
	Cache   Cache
	Metrics *observability.Metrics
}

// DoneFunc is called when a job reaches a terminal state. err is nil on
// success.
type DoneFunc func(ctx context.Context, j *meeting.Job, err error)

// Orchestrator schedules and runs pipeline jobs.
type Orchestrator struct {
	cfg         Config
	store       *store.Store
	blobs       storage.Storage
	normalizer  Normalizer
	transcriber transcription.Provider
	diarizer    diarization.Provider
	identifier  *speakerid.Identifier
	tracker     *jobs.Tracker
	cache       Cache
	metrics     *observability.Metrics
	log         *logger.Logger

	graphs map[string]*dag.Graph
	pool   *resilience.Bulkhead

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ component.Component = (*Orchestrator)(nil)

// New creates an Orchestrator. Call Start before submitting jobs.
func New(cfg Config, deps Deps, log *logger.Logger) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		cfg:         cfg,
		store:       deps.Store,
		blobs:       deps.Blobs,
		normalizer:  deps.Normalizer,
		transcriber: deps.Transcriber,
		diarizer:    deps.Diarizer,
		identifier:  deps.Identifier,
		tracker:     deps.Tracker,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		log:         log.WithComponent("orchestrator"),
		pool: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "pipeline",
			MaxConcurrent: cfg.MaxConcurrentJobs,
			MaxWait:       -1,
		}),
	}
	if o.cache == nil {
		o.cache = NewArtifactCache(deps.Store, nil, cfg.CacheTTL, log)
	}

	reg := dag.NewRegistry()
	o.registerStages(reg)
	graphs, err := loadGraphs(reg)
	if err != nil {
		return nil, err
	}
	o.graphs = graphs
	return o, nil
}

// Process starts the first run, or a retry, of an uploaded meeting.
// Retained normalized audio and cached tokens are reused.
func (o *Orchestrator) Process(ctx context.Context, meetingID string) (*meeting.Job, error) {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if busy(m.Status) {
		return nil, apperrors.Conflict(store.ErrActiveJob)
	}
	if !m.Status.Processable() {
		return nil, apperrors.InvalidState("meeting", string(m.Status), string(meeting.StatusProcessing))
	}
	if m.AudioRef == "" {
		return nil, apperrors.InvalidInput("audio", "meeting has no audio")
	}
	return o.submit(ctx, m, &meeting.Job{MeetingID: m.ID, Type: meeting.JobProcess, Scope: meeting.ScopeFull},
		pipelineProcess, meeting.StatusProcessing, nil)
}

// Reprocess repeats part of the pipeline for a processed meeting.
func (o *Orchestrator) Reprocess(ctx context.Context, meetingID string, scope meeting.Scope) (*meeting.Job, error) {
	if _, ok := meeting.ParseScope(string(scope)); !ok {
		return nil, apperrors.InvalidInput("scope", "must be one of full, diarization-only, speaker-id-only")
	}
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if busy(m.Status) {
		return nil, apperrors.Conflict(store.ErrActiveJob)
	}
	if m.Status != meeting.StatusCompleted && m.Status != meeting.StatusFailed {
		return nil, apperrors.InvalidState("meeting", string(m.Status), string(meeting.StatusProcessing))
	}

	pipeline := pipelineProcess
	switch scope {
	case meeting.ScopeFull:
		if m.AudioRef == "" {
			return nil, apperrors.InvalidInput("audio", "meeting has no audio")
		}
	case meeting.ScopeDiarizationOnly:
		tokens, err := o.cache.Tokens(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if tokens == nil {
			return nil, apperrors.InvalidInput("scope", "no retained transcription to rediarize")
		}
	case meeting.ScopeSpeakerIDOnly:
		turns, err := o.cache.Turns(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if turns == nil {
			return nil, apperrors.InvalidInput("scope", "no retained diarization to reidentify")
		}
		pipeline = pipelineSpeakers
	}
	return o.submit(ctx, m, &meeting.Job{MeetingID: m.ID, Type: meeting.JobReprocess, Scope: scope},
		pipeline, meeting.StatusProcessing, nil)
}

// Finalize runs the pipeline over a stopped live recording. done is called
// once the job is terminal.
func (o *Orchestrator) Finalize(ctx context.Context, meetingID string, done DoneFunc) (*meeting.Job, error) {
	m, err := o.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Mode != meeting.ModeLive {
		return nil, apperrors.InvalidState("meeting", string(m.Mode), "finalization")
	}
	if m.AudioRef == "" && m.NormalizedRef == "" {
		return nil, apperrors.InvalidInput("audio", "recording has no audio")
	}
	return o.submit(ctx, m, &meeting.Job{MeetingID: m.ID, Type: meeting.JobFinalizeLive, Scope: meeting.ScopeFull},
		pipelineFinalize, meeting.StatusFinalizing, done)
}

func (o *Orchestrator) submit(ctx context.Context, m *meeting.Meeting, j *meeting.Job, pipeline string, status meeting.Status, done DoneFunc) (*meeting.Job, error) {
	base := o.baseContext()
	if base == nil {
		return nil, apperrors.ServiceUnavailable("pipeline")
	}
	if err := o.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	if err := o.store.SetMeetingStatus(ctx, m.ID, status); err != nil {
		_ = o.tracker.Fail(ctx, j, "submit", err, "")
		return nil, err
	}
	m.Status = status
	o.log.Info("job submitted", logger.Fields(
		logger.FieldJobID, j.ID, logger.FieldMeetingID, m.ID,
		logger.FieldJobType, j.Type, "scope", j.Scope))

	snapshot := *j
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		err := o.pool.Execute(base, func() error {
			return o.run(base, &snapshot, m, pipeline)
		})
		if err != nil && snapshot.Status != meeting.JobFailed {
			// the pool rejected the job before it ran
			_ = o.tracker.Fail(context.Background(), &snapshot, "queued", err, meeting.StatusFailed)
		}
		if done != nil {
			done(context.Background(), &snapshot, err)
		}
	}()
	return j, nil
}

func (o *Orchestrator) run(ctx context.Context, j *meeting.Job, m *meeting.Meeting, pipeline string) error {
	log := o.log.WithFields(logger.Fields(logger.FieldJobID, j.ID, logger.FieldMeetingID, m.ID))
	if err := o.tracker.Start(ctx, j); err != nil {
		return o.fail(j, "start", err)
	}

	state := dag.NewState()
	dag.Write(state, portRun, &run{job: j, meeting: m})
	if err := o.preload(ctx, state, j, m); err != nil {
		return o.fail(j, "prepare", err)
	}

	engine := &dag.Engine{MaxParallel: o.cfg.MaxParallelStages, OnNodeDone: o.stageDone(j)}
	result, err := engine.ExecuteStreaming(ctx, o.graphs[pipeline], state, shouldRun)
	if err != nil {
		return o.fail(j, "pipeline", err)
	}
	for name, nr := range result.NodeResults {
		if nr.Status == dag.StatusSkipped {
			log.Debug("stage skipped", logger.Fields(logger.FieldStage, name))
		}
	}

	stored, err := o.store.GetJob(context.Background(), j.ID)
	if err != nil {
		return o.fail(j, StagePersist, err)
	}
	if stored.Status != meeting.JobCompleted {
		return o.fail(j, StagePersist, apperrors.InvalidState("job", string(stored.Status), "completion"))
	}

	j.Status = meeting.JobCompleted
	o.tracker.Completed(context.Background(), j.ID)
	o.metrics.RecordJob(ctx, string(j.Type), string(meeting.JobCompleted))
	log.Info("job finished", logger.Fields("duration", result.Duration.String()))
	return nil
}

// preload puts retained stage outputs into state so their stages are
// skipped. The full reprocess scope discards them instead.
func (o *Orchestrator) preload(ctx context.Context, state *dag.State, j *meeting.Job, m *meeting.Meeting) error {
	if j.Type == meeting.JobReprocess && j.Scope == meeting.ScopeFull {
		if err := o.cache.Clear(ctx, m.ID); err != nil {
			return err
		}
		return nil
	}

	if m.NormalizedRef != "" {
		wav, err := storage.GetBytes(ctx, o.blobs, m.NormalizedRef)
		switch {
		case err == nil:
			dag.Write(state, portWAV, wav)
		case !apperrors.IsNotFound(storage.FromStorage(err, "download", m.NormalizedRef)):
			return storage.FromStorage(err, "download", m.NormalizedRef)
		}
	}

	if j.Type == meeting.JobFinalizeLive {
		return nil
	}
	tokens, err := o.cache.Tokens(ctx, m.ID)
	if err != nil {
		return err
	}
	if tokens != nil {
		dag.Write(state, portTokens, tokens)
	}
	if j.Scope == meeting.ScopeSpeakerIDOnly {
		turns, err := o.cache.Turns(ctx, m.ID)
		if err != nil {
			return err
		}
		dag.Write(state, portTurns, turns)
	}
	return nil
}

// fail records a failed run. The meeting is left failed; for live
// recordings the caller's DoneFunc moves the session state.
func (o *Orchestrator) fail(j *meeting.Job, step string, cause error) error {
	ctx := context.Background()
	if err := o.tracker.Fail(ctx, j, step, cause, meeting.StatusFailed); err != nil {
		o.log.Error("record job failure", logger.MergeWithError(logger.Fields(logger.FieldJobID, j.ID), err))
	}
	j.Status = meeting.JobFailed
	o.metrics.RecordJob(ctx, string(j.Type), string(meeting.JobFailed))
	return cause
}

// busy reports whether a meeting in status s is held by an active job.
func busy(s meeting.Status) bool {
	return s == meeting.StatusProcessing || s == meeting.StatusFinalizing
}

func (o *Orchestrator) baseContext() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ctx
}

// RecoverInterrupted fails jobs left active by a previous process so their
// meetings can be processed again.
func (o *Orchestrator) RecoverInterrupted(ctx context.Context) error {
	stale, err := o.store.InterruptedJobs(ctx)
	if err != nil {
		return err
	}
	for i := range stale {
		j := &stale[i]
		cause := apperrors.Internal(nil).WithDetail("reason", "interrupted by restart")
		if err := o.tracker.Fail(ctx, j, j.CurrentStep, cause, meeting.StatusFailed); err != nil {
			return err
		}
		o.log.Warn("interrupted job failed", logger.Fields(logger.FieldJobID, j.ID, logger.FieldMeetingID, j.MeetingID))
	}
	return nil
}

// Name implements component.Component.
func (o *Orchestrator) Name() string { return "orchestrator" }

// Start implements component.Component.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.mu.Unlock()
	return o.RecoverInterrupted(ctx)
}

// Stop cancels running jobs and waits for their workers to exit.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	o.ctx, o.cancel = nil, nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health implements component.Component.
func (o *Orchestrator) Health(_ context.Context) component.Health {
	h := component.Health{Name: o.Name(), Status: component.StatusHealthy}
	if o.baseContext() == nil {
		h.Status = component.StatusUnhealthy
		h.Message = "stopped"
	}
	return h
}

// Describe implements component.Describable.
func (o *Orchestrator) Describe() component.Description {
	return component.Description{Name: "Pipeline", Type: "worker", Details: "max_jobs=" + strconv.Itoa(o.cfg.MaxConcurrentJobs)}
}
