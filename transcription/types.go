package transcription

import "github.com/kbukum/meetscribe/meeting"

// Tier selects the model quality/latency trade-off.
type Tier string

// Model tiers.
const (
	TierFull Tier = "full"
	TierFast Tier = "fast"
)

// Request holds parameters for a transcription call.
type Request struct {
	// Audio is the encoded waveform.
	Audio []byte
	// FileName is sent alongside the audio. Defaults to "audio.wav".
	FileName string
	// Tier picks the configured model when Model is empty.
	Tier Tier
	// Model overrides the tier's model.
	Model string
	// Language is the expected language (e.g. "sv"). Empty means detect.
	Language string
	// Prompt primes the decoder with preceding text or vocabulary.
	Prompt string
}

// Response holds the result of a transcription call.
type Response struct {
	Tokens   []meeting.Token
	Text     string
	Language string
	// Duration is the audio duration in seconds as reported by the service.
	Duration float64
}
