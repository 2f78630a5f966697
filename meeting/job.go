package meeting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType names the kind of run a Job tracks.
type JobType string

// Job types.
const (
	JobProcess      JobType = "process"
	JobReprocess    JobType = "reprocess"
	JobFinalizeLive JobType = "finalize_live"
	JobPolishPass   JobType = "polish_pass"
)

// ProcessingTypes are the job types limited to one active run per meeting.
var ProcessingTypes = []JobType{JobProcess, JobReprocess, JobFinalizeLive}

// IsProcessing reports whether t belongs to the processing class.
func (t JobType) IsProcessing() bool {
	for _, p := range ProcessingTypes {
		if t == p {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ActiveJobStatuses are the statuses that hold the per-meeting guard.
var ActiveJobStatuses = []JobStatus{JobPending, JobRunning}

// Terminal reports whether s is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Scope selects which pipeline stages a reprocess run repeats.
type Scope string

// Reprocess scopes.
const (
	ScopeFull            Scope = "full"
	ScopeDiarizationOnly Scope = "diarization-only"
	ScopeSpeakerIDOnly   Scope = "speaker-id-only"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeFull, ScopeDiarizationOnly, ScopeSpeakerIDOnly:
		return Scope(s), true
	}
	return "", false
}

// Job is one execution of the pipeline or a part of it.
type Job struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	MeetingID   string     `gorm:"size:36;not null;index:ix_jobs_meeting_status,priority:1" json:"meeting_id"`
	Type        JobType    `gorm:"size:16;not null" json:"job_type"`
	Scope       Scope      `gorm:"size:24" json:"scope,omitempty"`
	Status      JobStatus  `gorm:"size:16;not null;index:ix_jobs_meeting_status,priority:2" json:"status"`
	Progress    float64    `gorm:"not null;default:0" json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	FailedStep  string     `json:"failed_step,omitempty"`
	ErrorCode   string     `gorm:"size:32" json:"error_code,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// BeforeCreate assigns a UUID when none is set.
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Active reports whether the job still holds the per-meeting guard.
func (j *Job) Active() bool {
	return j.Status == JobPending || j.Status == JobRunning
}
