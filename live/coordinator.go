package live

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/embedding"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/jobs"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/observability"
	"github.com/kbukum/meetscribe/orchestrator"
	"github.com/kbukum/meetscribe/speakerid"
	"github.com/kbukum/meetscribe/storage"
	"github.com/kbukum/meetscribe/store"
	"github.com/kbukum/meetscribe/transcription"
)

// Decoder turns one encoded chunk into pipeline PCM.
type Decoder interface {
	DecodeChunk(ctx context.Context, chunk []byte) ([]byte, error)
}

// Finalizer runs the authoritative pipeline over a stopped recording.
type Finalizer interface {
	Finalize(ctx context.Context, meetingID string, done orchestrator.DoneFunc) (*meeting.Job, error)
}

// Deps are the collaborators of a Coordinator. Embedder and Identifier are
// optional; without them every segment reuses one speaker and polish passes
// only merge.
type Deps struct {
	Store       *store.Store
	Blobs       storage.Storage
	Decoder     Decoder
	Transcriber transcription.Provider
	Embedder    embedding.Provider
	Identifier  *speakerid.Identifier
	Tracker     *jobs.Tracker
	Finalizer   Finalizer
	Metrics     *observability.Metrics
}

// Coordinator owns the live sessions of this process.
type Coordinator struct {
	cfg         Config
	store       *store.Store
	blobs       storage.Storage
	decoder     Decoder
	transcriber transcription.Provider
	embedder    embedding.Provider
	identifier  *speakerid.Identifier
	tracker     *jobs.Tracker
	finalizer   Finalizer
	metrics     *observability.Metrics
	log         *logger.Logger

	mu        sync.Mutex
	sessions  map[string]*Session
	byMeeting map[string]*Session
	ctx       context.Context
	cancel    context.CancelFunc
	sweeper   *cron.Cron
	wg        sync.WaitGroup
}

// New creates a Coordinator. Call Start before opening sessions.
func New(cfg Config, deps Deps, log *logger.Logger) (*Coordinator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:         cfg,
		store:       deps.Store,
		blobs:       deps.Blobs,
		decoder:     deps.Decoder,
		transcriber: deps.Transcriber,
		embedder:    deps.Embedder,
		identifier:  deps.Identifier,
		tracker:     deps.Tracker,
		finalizer:   deps.Finalizer,
		metrics:     deps.Metrics,
		log:         log.WithComponent("live"),
		sessions:    map[string]*Session{},
		byMeeting:   map[string]*Session{},
	}, nil
}

// Start opens a session on a live meeting. A meeting that is already
// recording is a conflict.
func (c *Coordinator) Start(ctx context.Context, meetingID string) (*Session, error) {
	m, err := c.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Mode != meeting.ModeLive {
		return nil, apperrors.InvalidState("meeting", string(m.Mode), string(meeting.ModeLive))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, apperrors.ServiceUnavailable("live")
	}
	if _, ok := c.byMeeting[meetingID]; ok {
		return nil, apperrors.Conflict("The meeting is already recording.")
	}
	if err := c.store.TransitionRecording(ctx, meetingID,
		[]meeting.RecordingStatus{meeting.RecordingIdle}, meeting.RecordingActive, meeting.StatusRecording); err != nil {
		return nil, err
	}
	s := c.open(m, 0)
	c.log.Info("live session started", logger.Fields(logger.FieldSessionID, s.ID, logger.FieldMeetingID, m.ID))
	return s, nil
}

// open registers a recording session and starts its polish loop. Callers
// hold c.mu.
func (c *Coordinator) open(m *meeting.Meeting, nextSeq int64) *Session {
	s := newSession(m, c.cfg, c.ctx, nextSeq)
	c.sessions[s.ID] = s
	c.byMeeting[m.ID] = s
	c.metrics.SessionStarted(c.ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.polishLoop(s)
	}()
	return s
}

// Session returns a session by ID.
func (c *Coordinator) Session(id string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("session", id)
	}
	return s, nil
}

// ForMeeting returns the session of a meeting, if one is open. Clients that
// reconnect during a recording attach to it.
func (c *Coordinator) ForMeeting(meetingID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byMeeting[meetingID]
	return s, ok
}

// Ingest accepts one encoded chunk. The chunk is stored before Ingest
// returns; transcription and speaker assignment happen in the background.
func (c *Coordinator) Ingest(ctx context.Context, sessionID string, chunk []byte) error {
	s, err := c.Session(sessionID)
	if err != nil {
		return err
	}
	if len(chunk) == 0 {
		return apperrors.InvalidInput("chunk", "empty audio chunk")
	}

	s.mu.Lock()
	if s.state != meeting.RecordingActive {
		st := s.state
		s.mu.Unlock()
		return apperrors.InvalidState("session", string(st), string(meeting.RecordingActive))
	}
	seq := s.nextSeq
	s.nextSeq++
	s.lastSeen = time.Now()
	s.inflight.Add(1)
	s.mu.Unlock()

	key := audio.ChunkKey(s.MeetingID, seq)
	if err := storage.PutBytes(ctx, c.blobs, key, chunk); err != nil {
		s.inflight.Done()
		c.deliver(s, chunkResult{seq: seq, outcome: outcomeFailed})
		return storage.FromStorage(err, "upload", key)
	}
	go c.handle(s, seq, chunk)
	return nil
}

// Stop ends a recording: it waits for in-flight chunks, rebuilds the full
// recording and submits finalization. It returns once the finalize job is
// queued.
func (c *Coordinator) Stop(ctx context.Context, sessionID string) error {
	s, err := c.Session(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.state != meeting.RecordingActive {
		st := s.state
		s.mu.Unlock()
		if st == meeting.RecordingStopping || st == meeting.RecordingFinalizing {
			return apperrors.Conflict("The recording is already stopping.")
		}
		return apperrors.InvalidState("session", string(st), string(meeting.RecordingStopping))
	}
	s.state = meeting.RecordingStopping
	s.mu.Unlock()

	// finalization must not depend on the caller's connection
	ctx = context.WithoutCancel(ctx)
	log := c.log.WithFields(logger.Fields(logger.FieldSessionID, s.ID, logger.FieldMeetingID, s.MeetingID))

	if err := c.store.TransitionRecording(ctx, s.MeetingID,
		[]meeting.RecordingStatus{meeting.RecordingActive}, meeting.RecordingStopping, ""); err != nil {
		return c.abort(ctx, s, err)
	}

	close(s.polishStop)
	<-s.polishDone
	c.drain(s)
	log.Info("live session stopping", logger.Fields("chunks", s.Info().Chunks))

	c.publish(ctx, s, meeting.NewEvent(meeting.EventFinalizeStarted, s.MeetingID))

	if err := c.assemble(ctx, s); err != nil {
		return c.abort(ctx, s, err)
	}
	if err := c.store.TransitionRecording(ctx, s.MeetingID,
		[]meeting.RecordingStatus{meeting.RecordingStopping}, meeting.RecordingFinalizing, ""); err != nil {
		return c.abort(ctx, s, err)
	}
	s.setState(meeting.RecordingFinalizing)

	if _, err := c.finalizer.Finalize(ctx, s.MeetingID, func(ctx context.Context, j *meeting.Job, err error) {
		c.finished(ctx, s, j, err)
	}); err != nil {
		return c.abort(ctx, s, err)
	}
	return nil
}

// drain waits for in-flight chunks, cancelling them after DrainTimeout.
func (c *Coordinator) drain(s *Session) {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.DrainTimeout):
		c.log.Warn("cancelling in-flight chunks", logger.Fields(logger.FieldSessionID, s.ID))
		s.cancel()
		<-done
	}
	s.cancel()
}

// assemble concatenates the stored chunks into the meeting's audio.
func (c *Coordinator) assemble(ctx context.Context, s *Session) error {
	chunks, err := c.blobs.List(ctx, audio.ChunkPrefix(s.MeetingID))
	if err != nil {
		return storage.FromStorage(err, "list", audio.ChunkPrefix(s.MeetingID))
	}
	var pcm []byte
	for _, f := range chunks {
		data, err := storage.GetBytes(ctx, c.blobs, f.Path)
		if err != nil {
			return storage.FromStorage(err, "download", f.Path)
		}
		part, err := c.decoder.DecodeChunk(ctx, data)
		if err != nil {
			c.log.Warn("skipping undecodable chunk", logger.MergeWithError(logger.Fields("key", f.Path), err))
			continue
		}
		pcm = append(pcm, part...)
	}
	if len(pcm) == 0 {
		return apperrors.InvalidInput("audio", "recording has no decodable audio")
	}

	wav := audio.EncodeWAV(pcm)
	raw, normalized := audio.RawKey(s.MeetingID, "wav"), audio.NormalizedKey(s.MeetingID)
	for _, key := range []string{raw, normalized} {
		if err := storage.PutBytes(ctx, c.blobs, key, wav); err != nil {
			return storage.FromStorage(err, "upload", key)
		}
	}
	return c.store.UpdateMeeting(ctx, s.MeetingID, map[string]any{
		"audio_ref":      raw,
		"normalized_ref": normalized,
		"duration":       audio.Duration(pcm),
	})
}

// finished is called by the orchestrator when finalization is terminal.
func (c *Coordinator) finished(ctx context.Context, s *Session, j *meeting.Job, err error) {
	ev := meeting.NewEvent(meeting.EventFinalizeComplete, s.MeetingID)
	ev.JobID = j.ID
	if err != nil {
		if terr := c.store.TransitionRecording(ctx, s.MeetingID,
			[]meeting.RecordingStatus{meeting.RecordingFinalizing}, meeting.RecordingFailed, ""); terr != nil {
			c.log.Warn("mark recording failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, s.MeetingID), terr))
		}
		s.setState(meeting.RecordingFailed)
		ev.Status = string(meeting.RecordingFailed)
		ev.Error = err.Error()
		c.publish(ctx, s, ev)
		c.close(s)
		return
	}

	s.setState(meeting.RecordingComplete)
	ev.Status = string(meeting.RecordingComplete)
	c.publish(ctx, s, ev)
	c.close(s)
	c.log.Info("live session finalized", logger.Fields(logger.FieldSessionID, s.ID, logger.FieldMeetingID, s.MeetingID))

	s.emitMu.Lock()
	pass := s.polishes + 1
	s.emitMu.Unlock()
	c.runPolish(ctx, s.MeetingID, nil, pass)
}

// abort fails a session that could not be finalized. Stored chunks are kept
// for manual reprocessing.
func (c *Coordinator) abort(ctx context.Context, s *Session, cause error) error {
	s.setState(meeting.RecordingFailed)
	s.cancel()
	if err := c.store.UpdateMeeting(ctx, s.MeetingID, map[string]any{
		"recording_status": meeting.RecordingFailed,
		"status":           meeting.StatusFailed,
	}); err != nil {
		c.log.Warn("mark recording failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, s.MeetingID), err))
	}

	code := string(apperrors.ErrCodeInternal)
	if ae, ok := apperrors.AsAppError(cause); ok {
		code = string(ae.Code)
	}
	c.publish(ctx, s, meeting.ErrorEvent(s.MeetingID, "", code, cause.Error()))
	ev := meeting.NewEvent(meeting.EventFinalizeComplete, s.MeetingID)
	ev.Status = string(meeting.RecordingFailed)
	ev.Error = cause.Error()
	c.publish(ctx, s, ev)
	c.close(s)
	c.log.Error("live session failed", logger.MergeWithError(logger.Fields(logger.FieldSessionID, s.ID, logger.FieldMeetingID, s.MeetingID), cause))
	return cause
}

func (c *Coordinator) close(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.ID] != s {
		return
	}
	delete(c.sessions, s.ID)
	delete(c.byMeeting, s.MeetingID)
	c.metrics.SessionEnded(context.Background())
}

// resume reopens sessions of meetings left recording by a previous
// process. Their chunks are kept and new chunks continue the sequence.
func (c *Coordinator) resume(ctx context.Context) error {
	meetings, err := c.store.ListMeetings(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range meetings {
		m := &meetings[i]
		if m.Mode != meeting.ModeLive || m.RecordingStatus != meeting.RecordingActive {
			continue
		}
		chunks, err := c.blobs.List(ctx, audio.ChunkPrefix(m.ID))
		if err != nil {
			return storage.FromStorage(err, "list", audio.ChunkPrefix(m.ID))
		}
		s := c.open(m, int64(len(chunks)))
		// earlier chunks are already in the stored transcript
		s.seq.next = s.nextSeq
		c.log.Info("live session resumed", logger.Fields(logger.FieldSessionID, s.ID, logger.FieldMeetingID, m.ID, "chunks", len(chunks)))
	}
	return nil
}
