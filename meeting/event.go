package meeting

import "time"

// EventType names an event on a meeting's stream.
type EventType string

// Event types.
const (
	EventProgress            EventType = "progress"
	EventPartialSegment      EventType = "partial_segment"
	EventSpeakerReassignment EventType = "speaker_reassignment"
	EventPolishStarted       EventType = "polish_started"
	EventPolishComplete      EventType = "polish_complete"
	EventFinalizeStarted     EventType = "finalize_started"
	EventFinalizeComplete    EventType = "finalize_complete"
	EventError               EventType = "error"
)

// Event is one message on a meeting's ordered event stream.
type Event struct {
	Type      EventType `json:"type"`
	MeetingID string    `json:"meeting_id"`
	JobID     string    `json:"job_id,omitempty"`
	// Progress is set on progress and finalize events.
	Progress *float64 `json:"progress,omitempty"`
	Step     string   `json:"step,omitempty"`
	Status   string   `json:"status,omitempty"`

	Segment  *LiveSegment      `json:"segment,omitempty"`
	Speakers []SpeakerChange   `json:"speakers,omitempty"`
	Pass     int               `json:"pass_number,omitempty"`
	Polish   *PolishEntry      `json:"polish,omitempty"`
	Error    string            `json:"error,omitempty"`
	Code     string            `json:"error_code,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Time     time.Time         `json:"time"`
}

// SpeakerChange describes one speaker rename or merge.
type SpeakerChange struct {
	SpeakerID    string       `json:"speaker_id"`
	Label        string       `json:"label"`
	DisplayName  string       `json:"display_name,omitempty"`
	Color        string       `json:"color,omitempty"`
	IdentifiedBy IdentifiedBy `json:"identified_by,omitempty"`
	Confidence   float64      `json:"confidence,omitempty"`
	// MergedInto is set when the speaker was absorbed by another one.
	MergedInto string `json:"merged_into,omitempty"`
}

// NewEvent stamps an event for meetingID.
func NewEvent(t EventType, meetingID string) Event {
	return Event{Type: t, MeetingID: meetingID, Time: time.Now().UTC()}
}

// ProgressEvent reports a job's current progress.
func ProgressEvent(j *Job) Event {
	e := NewEvent(EventProgress, j.MeetingID)
	e.JobID = j.ID
	e.Progress = Ptr(j.Progress)
	e.Step = j.CurrentStep
	e.Status = string(j.Status)
	return e
}

// ErrorEvent reports a failure on the meeting's stream.
func ErrorEvent(meetingID, jobID, code, msg string) Event {
	e := NewEvent(EventError, meetingID)
	e.JobID = jobID
	e.Code = code
	e.Error = msg
	return e
}
