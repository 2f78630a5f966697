package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TypedStore keeps JSON-encoded values of one type under a key prefix.
// The orchestrator caches token and turn artifacts in it.
type TypedStore[C any] struct {
	client *Client
	prefix string
}

// NewTypedStore returns a store writing keys as "<prefix>:<key>", or bare
// keys when prefix is empty.
func NewTypedStore[C any](client *Client, prefix string) *TypedStore[C] {
	return &TypedStore[C]{client: client, prefix: prefix}
}

func (s *TypedStore[C]) key(k string) string {
	if s.prefix != "" {
		return s.prefix + ":" + k
	}
	return k
}

// Load returns nil without an error on a cache miss.
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	k := s.key(key)
	raw, err := s.client.Get(ctx, k)
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis load %s: %w", k, err)
	}
	v := new(C)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", k, err)
	}
	return v, nil
}

// Save stores val for ttl. A zero ttl keeps it until deleted.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	k := s.key(key)
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", k, err)
	}
	if err := s.client.Set(ctx, k, raw, ttl); err != nil {
		return fmt.Errorf("redis save %s: %w", k, err)
	}
	return nil
}

// Delete drops key. A missing key is not an error.
func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)); err != nil {
		return fmt.Errorf("redis delete %s: %w", s.key(key), err)
	}
	return nil
}
