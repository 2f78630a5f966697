package dag

import "context"

// Node is one stage of a graph. Its result is recorded by the engine;
// values later nodes read go through State ports.
type Node interface {
	Name() string
	Run(ctx context.Context, state *State) (any, error)
}

type funcNode struct {
	name string
	fn   func(ctx context.Context, state *State) (any, error)
}

// NodeFunc adapts fn to Node.
func NodeFunc(name string, fn func(ctx context.Context, state *State) (any, error)) Node {
	return &funcNode{name: name, fn: fn}
}

func (n *funcNode) Name() string { return n.name }

func (n *funcNode) Run(ctx context.Context, state *State) (any, error) { return n.fn(ctx, state) }
