package embedding

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// Request asks for the embedding of an interval of a waveform.
type Request struct {
	// Audio is the encoded waveform.
	Audio []byte
	// Start and End bound the interval in seconds. Both zero means the whole
	// payload.
	Start float64
	End   float64
}

// Provider is the interface that embedding backends must implement.
type Provider interface {
	provider.Provider

	// Embed returns a fixed-length voice vector for the requested interval.
	Embed(ctx context.Context, req Request) ([]float32, error)
}
