package voiceprofile

import (
	"context"
	"sort"

	"github.com/kbukum/meetscribe/embedding"
	"github.com/kbukum/meetscribe/meeting"
)

// MinSpan is the shortest interval worth embedding, in seconds.
const MinSpan = 1.0

// Span is a time interval of a waveform.
type Span struct {
	Start float64
	End   float64
}

// Embed returns the mean embedding of the longest spans, at most samples of
// them, ignoring spans shorter than MinSpan. It returns nil when none qualifies.
func Embed(ctx context.Context, e embedding.Provider, audio []byte, spans []Span, samples int) ([]float32, error) {
	var usable []Span
	for _, s := range spans {
		if s.End-s.Start >= MinSpan {
			usable = append(usable, s)
		}
	}
	sort.SliceStable(usable, func(a, b int) bool {
		return usable[a].End-usable[a].Start > usable[b].End-usable[b].Start
	})
	if samples > 0 && len(usable) > samples {
		usable = usable[:samples]
	}

	vecs := make([][]float32, 0, len(usable))
	for _, s := range usable {
		v, err := e.Embed(ctx, embedding.Request{Audio: audio, Start: s.Start, End: s.End})
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return embedding.Mean(vecs), nil
}

// Match returns the profile most similar to vec and its similarity. ok is
// false when the best similarity is below threshold.
func Match(vec []float32, profiles []meeting.VoiceProfile, threshold float64) (best *meeting.VoiceProfile, sim float64, ok bool) {
	for i := range profiles {
		if s := embedding.Cosine(vec, profiles[i].Vector()); best == nil || s > sim {
			best, sim = &profiles[i], s
		}
	}
	return best, sim, best != nil && sim >= threshold
}
