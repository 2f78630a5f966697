package sse

import "github.com/google/uuid"

// Broadcaster sends data to all clients whose ID matches a glob pattern.
type Broadcaster interface {
	BroadcastToPattern(pattern string, data []byte)
}

// MeetingClientID returns a fresh client ID scoped to a meeting.
func MeetingClientID(meetingID string) string {
	return "meeting:" + meetingID + ":" + uuid.NewString()
}

// MeetingPattern matches every client of a meeting.
func MeetingPattern(meetingID string) string {
	return "meeting:" + meetingID + ":*"
}
