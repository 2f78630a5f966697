package audio

import "fmt"

// RawKey is the blob key of a meeting's original audio.
func RawKey(meetingID, ext string) string {
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("meetings/%s/raw.%s", meetingID, ext)
}

// NormalizedKey is the blob key of a meeting's normalized waveform.
func NormalizedKey(meetingID string) string {
	return fmt.Sprintf("meetings/%s/normalized.wav", meetingID)
}

// ChunkPrefix is the blob prefix of a live meeting's chunks.
func ChunkPrefix(meetingID string) string {
	return fmt.Sprintf("meetings/%s/chunks/", meetingID)
}

// ChunkKey is the blob key of one live chunk. Keys sort in arrival order.
func ChunkKey(meetingID string, seq int64) string {
	return fmt.Sprintf("%s%06d.webm", ChunkPrefix(meetingID), seq)
}

// MeetingPrefix is the blob prefix holding everything stored for a meeting.
func MeetingPrefix(meetingID string) string {
	return fmt.Sprintf("meetings/%s/", meetingID)
}
