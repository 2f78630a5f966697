package meeting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownLabel marks aligned text that no diarization turn covers.
const UnknownLabel = "UNKNOWN"

// UnknownColor is the color of the UNKNOWN speaker.
const UnknownColor = "#9ca3af"

// UnknownName is the display name of the UNKNOWN speaker.
const UnknownName = "Unknown"

// Palette is the fixed speaker color cycle.
var Palette = []string{
	"#6366f1", // indigo
	"#ec4899", // pink
	"#10b981", // emerald
	"#f59e0b", // amber
	"#3b82f6", // blue
	"#ef4444", // red
	"#8b5cf6", // violet
	"#14b8a6", // teal
	"#f97316", // orange
	"#06b6d4", // cyan
}

// Color returns the palette color for the i-th speaker.
func Color(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// IdentifiedBy records how a speaker got its display name.
type IdentifiedBy string

// Identification provenances.
const (
	IdentifiedNone         IdentifiedBy = "none"
	IdentifiedIntroLLM     IdentifiedBy = "intro_llm"
	IdentifiedVoiceProfile IdentifiedBy = "voice_profile"
	IdentifiedPolishLLM    IdentifiedBy = "polish_llm"
	IdentifiedManual       IdentifiedBy = "manual"
)

// Segment is one timed utterance. Order is dense per meeting.
type Segment struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	MeetingID    string    `gorm:"size:36;not null;index:ix_segments_meeting_order,priority:1" json:"meeting_id"`
	SpeakerID    *string   `gorm:"size:36;index" json:"speaker_id"`
	Start        float64   `gorm:"column:start_time;not null" json:"start_time"`
	End          float64   `gorm:"column:end_time;not null" json:"end_time"`
	Text         string    `gorm:"not null" json:"text"`
	OriginalText string    `json:"original_text,omitempty"`
	Order        int       `gorm:"column:position;not null;index:ix_segments_meeting_order,priority:2" json:"order"`
	Edited       bool      `gorm:"column:is_edited;not null;default:false" json:"is_edited"`
	CreatedAt    time.Time `json:"-"`
}

// BeforeCreate assigns a UUID when none is set.
func (s *Segment) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Duration returns End - Start.
func (s *Segment) Duration() float64 { return s.End - s.Start }

// Speaker is one diarized identity within a meeting.
type Speaker struct {
	ID                string       `gorm:"primaryKey;size:36" json:"id"`
	MeetingID         string       `gorm:"size:36;not null;index" json:"meeting_id"`
	Label             string       `gorm:"not null" json:"label"`
	DisplayName       *string      `json:"display_name"`
	Color             string       `gorm:"size:16" json:"color"`
	IdentifiedBy      IdentifiedBy `gorm:"size:16;not null;default:none" json:"identified_by"`
	Confidence        float64      `json:"confidence"`
	TotalSpeakingTime float64      `json:"total_speaking_time"`
	SegmentCount      int          `json:"segment_count"`
	ProfileID         *string      `gorm:"size:36" json:"profile_id,omitempty"`
	CreatedAt         time.Time    `json:"-"`
}

// BeforeCreate assigns a UUID when none is set.
func (s *Speaker) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Name returns the display name, falling back to the label.
func (s *Speaker) Name() string {
	if s.DisplayName != nil && *s.DisplayName != "" {
		return *s.DisplayName
	}
	return s.Label
}

// Token is one timed piece of transcribed text.
type Token struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Turn is one diarized interval.
type Turn struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"speaker"`
}

// LiveSegment is a provisional segment produced during a live session.
type LiveSegment struct {
	Seq              int64   `json:"seq"`
	Start            float64 `json:"start_time"`
	End              float64 `json:"end_time"`
	Text             string  `json:"text"`
	ProvisionalLabel string  `json:"speaker_label"`
	SegmentID        string  `json:"id,omitempty"`
	SpeakerID        string  `json:"speaker_id,omitempty"`
	SpeakerName      string  `json:"speaker_name,omitempty"`
	SpeakerColor     string  `json:"speaker_color,omitempty"`
	Order            int     `json:"order"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// AlignedSegment is a speaker-labeled piece of text produced by alignment.
type AlignedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Label string  `json:"speaker"`
}

// Identity is the resolved name of one diarization label.
type Identity struct {
	Label        string       `json:"label"`
	DisplayName  *string      `json:"display_name"`
	IdentifiedBy IdentifiedBy `json:"identified_by"`
	Confidence   float64      `json:"confidence"`
	ProfileID    *string      `json:"profile_id,omitempty"`
}
