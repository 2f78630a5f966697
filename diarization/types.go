package diarization

import (
	"sort"

	"github.com/kbukum/meetscribe/meeting"
)

// Request holds parameters for a diarization call.
type Request struct {
	// Audio is the normalized waveform.
	Audio []byte
	// MinSpeakers is the minimum expected number of speakers (0 = unset).
	MinSpeakers int
	// MaxSpeakers is the maximum expected number of speakers (0 = unset).
	MaxSpeakers int
}

// Response holds the result of a diarization call.
type Response struct {
	// Turns are ordered by start time.
	Turns []meeting.Turn
	// NumSpeakers is the number of distinct labels.
	NumSpeakers int
}

// SortTurns orders turns by start, then end.
func SortTurns(turns []meeting.Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if turns[i].Start != turns[j].Start {
			return turns[i].Start < turns[j].Start
		}
		return turns[i].End < turns[j].End
	})
}
