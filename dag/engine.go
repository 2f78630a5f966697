package dag

import (
	"context"
	"sync"
	"time"
)

// Engine executes a graph in dependency order.
type Engine struct {
	// MaxParallel limits concurrent nodes per level (0 = unlimited).
	MaxParallel int
	// OnNodeDone is called after every executed node, from the node's
	// goroutine. It is not called for skipped nodes.
	OnNodeDone func(ctx context.Context, nr NodeResult)
}

// NodeFilter returns true if a node should execute in this run.
type NodeFilter func(nodeName string, state *State) bool

// ExecuteStreaming runs the nodes that pass the filter in dependency order.
// Nodes that don't pass are marked as skipped and their dependents still
// run. A nil filter runs every node.
func (e *Engine) ExecuteStreaming(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	return e.execute(ctx, g, state, filter)
}

// execute runs level by level and stops after the first level that contains
// a failed node. The returned error is a *StageError naming the first failed
// node in level order. The partial Result is returned alongside it.
func (e *Engine) execute(ctx context.Context, g *Graph, state *State, filter NodeFilter) (*Result, error) {
	start := time.Now()

	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}

	result := &Result{NodeResults: make(map[string]NodeResult)}
	defer func() { result.Duration = time.Since(start) }()

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var toRun []string
		for _, name := range level {
			if filter != nil && !filter(name, state) {
				result.NodeResults[name] = NodeResult{Name: name, Status: StatusSkipped}
				continue
			}
			toRun = append(toRun, name)
		}

		if len(toRun) == 0 {
			continue
		}

		e.executeLevel(ctx, g, state, toRun, result)

		for _, name := range toRun {
			if nr := result.NodeResults[name]; nr.Status == StatusFailed {
				return result, &StageError{Stage: name, Err: nr.Error}
			}
		}
	}

	return result, nil
}

func (e *Engine) executeLevel(ctx context.Context, g *Graph, state *State, names []string, result *Result) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.concurrency(len(names)))

	for _, name := range names {
		wg.Add(1)
		go func(nodeName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			nr := e.executeNode(ctx, g.Nodes[nodeName], state)
			mu.Lock()
			result.NodeResults[nodeName] = nr
			mu.Unlock()
			if e.OnNodeDone != nil {
				e.OnNodeDone(ctx, nr)
			}
		}(name)
	}

	wg.Wait()
}

func (e *Engine) executeNode(ctx context.Context, node Node, state *State) NodeResult {
	start := time.Now()
	output, err := node.Run(ctx, state)
	duration := time.Since(start)

	if err != nil {
		return NodeResult{Name: node.Name(), Status: StatusFailed, Duration: duration, Error: err}
	}
	return NodeResult{Name: node.Name(), Status: StatusCompleted, Duration: duration, Output: output}
}

func (e *Engine) concurrency(levelSize int) int {
	if e.MaxParallel <= 0 || e.MaxParallel > levelSize {
		return levelSize
	}
	return e.MaxParallel
}
