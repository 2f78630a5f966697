package diarization

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// Provider is the interface that diarization backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Diarize sends audio for speaker diarization and returns the turns.
	Diarize(ctx context.Context, req Request) (*Response, error)
}
