package dag

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMissing is returned by Read when no node has written the port yet.
var ErrMissing = errors.New("dag: state key missing")

// State carries values between the nodes of one run. It is safe for the
// concurrent nodes of a level.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{values: make(map[string]any)}
}

// Get returns the raw value under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Has reports whether key was written.
func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Port names a State key together with the type stored under it, so the
// node writing a value and the nodes reading it agree at compile time.
type Port[T any] struct {
	Key string
}

// Read returns the value of port. It fails with ErrMissing when the key
// is absent and with a type error when another type was stored.
func Read[T any](s *State, port Port[T]) (T, error) {
	var zero T
	raw, ok := s.Get(port.Key)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrMissing, port.Key)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("dag: state key %q holds %T, want %T", port.Key, raw, zero)
	}
	return v, nil
}

// Write stores value under port.
func Write[T any](s *State, port Port[T], value T) {
	s.Set(port.Key, value)
}
