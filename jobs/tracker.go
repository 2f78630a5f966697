package jobs

import (
	"context"
	"errors"

	"github.com/kbukum/meetscribe/dag"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/store"
)

// Store is the job persistence the tracker needs.
type Store interface {
	StartJob(ctx context.Context, id string) error
	GetJob(ctx context.Context, id string) (*meeting.Job, error)
	UpdateJobProgress(ctx context.Context, id string, progress float64, step string) (float64, error)
	FailRun(ctx context.Context, jobID, meetingID string, f store.Failure, meetingStatus meeting.Status) error
}

// Tracker records job transitions and publishes them.
type Tracker struct {
	store  Store
	notify Notifier
	log    *logger.Logger
}

// NewTracker creates a Tracker. A nil notifier discards events.
func NewTracker(st Store, n Notifier, log *logger.Logger) *Tracker {
	if n == nil {
		n = NotifierFunc(func(context.Context, meeting.Event) {})
	}
	return &Tracker{store: st, notify: n, log: log.WithComponent("jobs")}
}

// Notifier returns the notifier events are published through.
func (t *Tracker) Notifier() Notifier { return t.notify }

// Publish sends an arbitrary meeting event.
func (t *Tracker) Publish(ctx context.Context, e meeting.Event) {
	t.notify.Notify(ctx, e)
}

// Start moves a pending job to running.
func (t *Tracker) Start(ctx context.Context, j *meeting.Job) error {
	if err := t.store.StartJob(ctx, j.ID); err != nil {
		return err
	}
	j.Status = meeting.JobRunning
	t.notify.Notify(ctx, meeting.ProgressEvent(j))
	t.log.Info("job started", logger.Fields(logger.FieldJobID, j.ID, logger.FieldMeetingID, j.MeetingID, logger.FieldJobType, j.Type))
	return nil
}

// Progress records a stage boundary and publishes the stored progress,
// which never decreases. j is not modified, so concurrent stages may share it.
func (t *Tracker) Progress(ctx context.Context, j *meeting.Job, progress float64, step string) error {
	stored, err := t.store.UpdateJobProgress(ctx, j.ID, progress, step)
	if err != nil {
		return err
	}
	snap := *j
	snap.Status = meeting.JobRunning
	snap.Progress = stored
	snap.CurrentStep = step
	t.notify.Notify(ctx, meeting.ProgressEvent(&snap))
	t.log.Debug("job progress", logger.Fields(logger.FieldJobID, j.ID, logger.FieldStage, step, logger.FieldProgress, stored))
	return nil
}

// Completed publishes the final state of a job committed elsewhere.
func (t *Tracker) Completed(ctx context.Context, jobID string) {
	j, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		t.log.Warn("load completed job", logger.MergeWithError(logger.Fields(logger.FieldJobID, jobID), err))
		return
	}
	t.notify.Notify(ctx, meeting.ProgressEvent(j))
	t.log.Info("job completed", logger.Fields(logger.FieldJobID, j.ID, logger.FieldMeetingID, j.MeetingID))
}

// Fail marks the job failed with the stage and code derived from err, moves
// the meeting to meetingStatus and publishes an error event. step is used
// when err does not name a stage.
func (t *Tracker) Fail(ctx context.Context, j *meeting.Job, step string, cause error, meetingStatus meeting.Status) error {
	f := Classify(step, cause)
	if err := t.store.FailRun(ctx, j.ID, j.MeetingID, f, meetingStatus); err != nil {
		return err
	}
	j.Status = meeting.JobFailed
	j.FailedStep = f.Step
	j.ErrorCode = f.Code
	j.Error = f.Message

	t.notify.Notify(ctx, meeting.ErrorEvent(j.MeetingID, j.ID, f.Code, f.Message))
	t.notify.Notify(ctx, meeting.ProgressEvent(j))
	t.log.Error("job failed", logger.Fields(
		logger.FieldJobID, j.ID, logger.FieldMeetingID, j.MeetingID,
		logger.FieldStage, f.Step, "error_code", f.Code, logger.FieldError, f.Message))
	return nil
}

// Classify derives the failed stage and error code of err.
func Classify(step string, err error) store.Failure {
	f := store.Failure{Step: step, Code: string(apperrors.ErrCodeInternal)}
	var se *dag.StageError
	if errors.As(err, &se) {
		f.Step = se.Stage
		err = se.Err
	}
	if err == nil {
		return f
	}
	f.Message = err.Error()
	if appErr, ok := apperrors.AsAppError(err); ok {
		f.Code = string(appErr.Code)
		f.Message = appErr.Message
		if appErr.Cause != nil {
			f.Message += ": " + appErr.Cause.Error()
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		f.Code = string(apperrors.ErrCodeTimeout)
	}
	return f
}
