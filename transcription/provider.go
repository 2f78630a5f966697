package transcription

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// Provider is the interface that transcription backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Transcribe sends audio for transcription and returns timed tokens.
	Transcribe(ctx context.Context, req Request) (*Response, error)
}
