package meeting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is the lifecycle state of a Meeting.
type Status string

// Meeting statuses.
const (
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusRecording  Status = "recording"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Processable reports whether a processing run may start from s.
func (s Status) Processable() bool {
	return s == StatusUploaded || s == StatusFailed
}

// Mode distinguishes uploaded files from live recordings.
type Mode string

// Meeting modes.
const (
	ModeUpload Mode = "upload"
	ModeLive   Mode = "live"
)

// RecordingStatus is the live session state stored on the meeting.
type RecordingStatus string

// Live session states.
const (
	RecordingIdle       RecordingStatus = "idle"
	RecordingActive     RecordingStatus = "recording"
	RecordingStopping   RecordingStatus = "stopping"
	RecordingFinalizing RecordingStatus = "finalizing"
	RecordingComplete   RecordingStatus = "complete"
	RecordingFailed     RecordingStatus = "failed"
)

// Meeting is one transcription unit.
type Meeting struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	Title            string          `gorm:"not null" json:"title"`
	Mode             Mode            `gorm:"size:16;not null;default:upload" json:"mode"`
	Status           Status          `gorm:"size:16;not null;index" json:"status"`
	RecordingStatus  RecordingStatus `gorm:"size:16" json:"recording_status,omitempty"`
	OriginalFilename string          `json:"original_filename,omitempty"`
	AudioRef         string          `json:"-"`
	NormalizedRef    string          `json:"-"`
	Duration         float64         `json:"duration"`
	Language         string          `gorm:"size:8" json:"language,omitempty"`
	WhisperModel     string          `gorm:"size:32" json:"whisper_model,omitempty"`
	SpeakerCount     int             `json:"speaker_count"`
	SegmentCount     int             `json:"segment_count"`
	MinSpeakers      *int            `json:"min_speakers,omitempty"`
	MaxSpeakers      *int            `json:"max_speakers,omitempty"`
	// Vocabulary is passed to the transcription service as an initial prompt.
	Vocabulary    string        `json:"vocabulary,omitempty"`
	IntroEndTime  *float64      `json:"intro_end_time,omitempty"`
	Encrypted     bool          `json:"encrypted"`
	PolishHistory []PolishEntry `gorm:"serializer:json" json:"polish_history,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set.
func (m *Meeting) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PolishEntry records one polish pass over a live meeting.
type PolishEntry struct {
	Pass            int       `json:"pass"`
	DurationSeconds float64   `json:"duration_seconds"`
	SpeakerCount    int       `json:"speaker_count"`
	NamesFound      int       `json:"names_found"`
	MergedSegments  int       `json:"merged_segments"`
	Timestamp       time.Time `json:"timestamp"`
}
