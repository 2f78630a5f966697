package llm

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// NewRegistry creates a new provider registry for LLM providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

// ManagerOption configures the LLM provider manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	selector provider.Selector[Provider]
}

// WithSelector sets the provider selection strategy for the manager.
func WithSelector(s provider.Selector[Provider]) ManagerOption {
	return func(c *managerConfig) {
		c.selector = s
	}
}

// NewManager creates a new provider manager for LLM providers.
func NewManager(opts ...ManagerOption) *provider.Manager[Provider] {
	cfg := &managerConfig{
		selector: provider.FirstAvailable[Provider]{},
	}
	for _, o := range opts {
		o(cfg)
	}
	return provider.NewManager(NewRegistry(), cfg.selector)
}

// FromManager returns a Provider that asks m for a backend on every call.
func FromManager(m *provider.Manager[Provider]) Provider {
	return &managed{m: m}
}

type managed struct {
	m *provider.Manager[Provider]
}

func (p *managed) Name() string { return "llm" }

func (p *managed) IsAvailable(ctx context.Context) bool {
	_, err := p.m.Get(ctx)
	return err == nil
}

func (p *managed) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	backend, err := p.m.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.Complete(ctx, req)
}
