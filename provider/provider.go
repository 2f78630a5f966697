package provider

import "context"

// Provider is a named backend that can report whether it is usable right
// now. Model sidecars and LLM endpoints all satisfy it.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
}

// Factory builds a provider from a loosely typed settings map, such as
// the one produced by llm.ProviderConfig.ToMap.
type Factory[T Provider] func(cfg map[string]any) (T, error)
