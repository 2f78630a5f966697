package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrNoProvider is returned when none of the candidate backends is
// available.
var ErrNoProvider = errors.New("provider: no backend available")

// Selector picks one provider out of the initialized set.
type Selector[T Provider] interface {
	Select(ctx context.Context, providers map[string]T) (T, error)
}

// PrioritySelector returns the first available provider in Priority order.
// Names that were never initialized are skipped.
type PrioritySelector[T Provider] struct {
	Priority []string
}

// Select implements Selector.
func (s *PrioritySelector[T]) Select(ctx context.Context, providers map[string]T) (T, error) {
	return firstAvailable(ctx, providers, s.Priority)
}

// FirstAvailable tries providers in name order.
type FirstAvailable[T Provider] struct{}

// Select implements Selector.
func (FirstAvailable[T]) Select(ctx context.Context, providers map[string]T) (T, error) {
	return firstAvailable(ctx, providers, slices.Sorted(maps.Keys(providers)))
}

func firstAvailable[T Provider](ctx context.Context, providers map[string]T, order []string) (T, error) {
	for _, name := range order {
		if p, ok := providers[name]; ok && p.IsAvailable(ctx) {
			return p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w (tried %s)", ErrNoProvider, strings.Join(order, ", "))
}
