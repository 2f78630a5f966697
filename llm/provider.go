package llm

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// Provider is the interface that LLM backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// AsRequestResponse adapts p to the generic provider interface so it can be
// wrapped with logging, metrics or resilience middleware.
func AsRequestResponse(p Provider) provider.RequestResponse[CompletionRequest, CompletionResponse] {
	return &requestResponse{p: p}
}

type requestResponse struct{ p Provider }

func (r *requestResponse) Name() string                         { return r.p.Name() }
func (r *requestResponse) IsAvailable(ctx context.Context) bool { return r.p.IsAvailable(ctx) }

func (r *requestResponse) Execute(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := r.p.Complete(ctx, req)
	if err != nil {
		return CompletionResponse{}, err
	}
	return *resp, nil
}
