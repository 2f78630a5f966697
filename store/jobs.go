package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/meetscribe/database"
	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/meeting"
)

// ErrActiveJob is the reason reported when a meeting already has an active
// processing job.
const ErrActiveJob = "The meeting already has an active processing job."

// CreateJob inserts a pending job. Processing-class jobs are inserted only
// when the meeting has no other active processing job; otherwise CreateJob
// returns a CONFLICT and nothing is written.
func (s *Store) CreateJob(ctx context.Context, j *meeting.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = meeting.JobPending
	}
	j.CreatedAt = time.Now().UTC()

	db := s.db.WithContext(ctx)
	if !j.Type.IsProcessing() {
		if err := db.Create(j).Error; err != nil {
			return database.FromDatabase(err, "job", j.ID)
		}
		return nil
	}

	res := db.Exec(`INSERT INTO jobs (id, meeting_id, type, scope, status, progress, current_step, failed_step, error_code, error, created_at)
SELECT ?, ?, ?, ?, ?, 0, '', '', '', '', ?
WHERE NOT EXISTS (SELECT 1 FROM jobs WHERE meeting_id = ? AND status IN ? AND type IN ?)`,
		j.ID, j.MeetingID, string(j.Type), string(j.Scope), string(j.Status), j.CreatedAt,
		j.MeetingID, activeStatuses(), processingTypes())
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) || isUniqueViolation(res.Error) {
			return apperrors.Conflict(ErrActiveJob).WithCause(res.Error)
		}
		return database.FromDatabase(res.Error, "job", j.ID)
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict(ErrActiveJob).WithDetail("meeting_id", j.MeetingID)
	}
	return nil
}

// GetJob loads a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*meeting.Job, error) {
	var j meeting.Job
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "job", id)
	}
	return &j, nil
}

// ListJobs returns the jobs of a meeting, newest first.
func (s *Store) ListJobs(ctx context.Context, meetingID string) ([]meeting.Job, error) {
	var out []meeting.Job
	err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, database.FromDatabase(err, "job", "")
	}
	return out, nil
}

// ActiveJob returns the active processing job of a meeting, or NOT_FOUND.
func (s *Store) ActiveJob(ctx context.Context, meetingID string) (*meeting.Job, error) {
	var j meeting.Job
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND status IN ? AND type IN ?", meetingID, activeStatuses(), processingTypes()).
		First(&j).Error
	if err != nil {
		return nil, database.FromDatabase(err, "job", meetingID)
	}
	return &j, nil
}

// InterruptedJobs returns every job left pending or running, oldest first.
// At startup these belong to a previous process.
func (s *Store) InterruptedJobs(ctx context.Context) ([]meeting.Job, error) {
	var out []meeting.Job
	err := s.db.WithContext(ctx).
		Where("status IN ?", activeStatuses()).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, database.FromDatabase(err, "job", "")
	}
	return out, nil
}

// StartJob moves a pending job to running.
func (s *Store) StartJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&meeting.Job{}).
		Where("id = ? AND status = ?", id, string(meeting.JobPending)).
		Updates(map[string]any{"status": meeting.JobRunning, "started_at": now})
	if res.Error != nil {
		return database.FromDatabase(res.Error, "job", id)
	}
	if res.RowsAffected == 0 {
		return s.jobStateError(ctx, id, meeting.JobRunning)
	}
	return nil
}

// UpdateJobProgress records a stage boundary. Progress never decreases and
// only running jobs are updated. It returns the stored progress.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress float64, step string) (float64, error) {
	if progress > 100 {
		progress = 100
	}
	var stored float64
	err := s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&meeting.Job{}).
			Where("id = ? AND status = ?", id, string(meeting.JobRunning)).
			Updates(map[string]any{
				"progress":     gorm.Expr("MAX(progress, ?)", progress),
				"current_step": step,
			})
		if res.Error != nil {
			return database.FromDatabase(res.Error, "job", id)
		}
		if res.RowsAffected == 0 {
			return apperrors.InvalidState("job", "not running", "progress")
		}
		return tx.Model(&meeting.Job{}).Select("progress").Where("id = ?", id).Row().Scan(&stored)
	})
	return stored, err
}

// FailRun marks a job failed with the stage and error classification, and
// moves the meeting to meetingStatus, in one transaction.
func (s *Store) FailRun(ctx context.Context, jobID, meetingID string, f Failure, meetingStatus meeting.Status) error {
	now := time.Now().UTC()
	return s.tx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&meeting.Job{}).
			Where("id = ? AND status IN ?", jobID, activeStatuses()).
			Updates(map[string]any{
				"status":       meeting.JobFailed,
				"failed_step":  f.Step,
				"current_step": f.Step,
				"error_code":   f.Code,
				"error":        f.Message,
				"completed_at": now,
			})
		if res.Error != nil {
			return database.FromDatabase(res.Error, "job", jobID)
		}
		if res.RowsAffected == 0 {
			return apperrors.InvalidState("job", "terminal", string(meeting.JobFailed))
		}
		if meetingStatus == "" {
			return nil
		}
		return updateMeeting(tx, meetingID, map[string]any{"status": meetingStatus})
	})
}

// CompleteJob marks a job completed at 100%.
func (s *Store) CompleteJob(ctx context.Context, id, step string) error {
	return completeJob(s.db.WithContext(ctx), id, step)
}

// Failure describes why a job failed.
type Failure struct {
	Step    string
	Code    string
	Message string
}

func completeJob(db *gorm.DB, id, step string) error {
	now := time.Now().UTC()
	res := db.Model(&meeting.Job{}).
		Where("id = ? AND status = ?", id, string(meeting.JobRunning)).
		Updates(map[string]any{
			"status":       meeting.JobCompleted,
			"progress":     100,
			"current_step": step,
			"completed_at": now,
		})
	if res.Error != nil {
		return database.FromDatabase(res.Error, "job", id)
	}
	if res.RowsAffected == 0 {
		return apperrors.InvalidState("job", "not running", string(meeting.JobCompleted))
	}
	return nil
}

func (s *Store) jobStateError(ctx context.Context, id string, wanted meeting.JobStatus) error {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.InvalidState("job", string(j.Status), string(wanted))
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
