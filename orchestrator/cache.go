package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/kbukum/meetscribe/errors"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/redis"
	"github.com/kbukum/meetscribe/store"
)

// Cache retains intermediate stage outputs between runs.
type Cache interface {
	// Tokens returns nil when nothing is cached.
	Tokens(ctx context.Context, meetingID string) ([]meeting.Token, error)
	SaveTokens(ctx context.Context, meetingID string, tokens []meeting.Token) error
	// Turns returns nil when nothing is cached.
	Turns(ctx context.Context, meetingID string) ([]meeting.Turn, error)
	SaveTurns(ctx context.Context, meetingID string, turns []meeting.Turn) error
	Clear(ctx context.Context, meetingID string) error
}

// ArtifactCache keeps stage outputs as meeting artifacts in the database,
// fronted by Redis when a client is given.
type ArtifactCache struct {
	store  *store.Store
	tokens *redis.TypedStore[[]meeting.Token]
	turns  *redis.TypedStore[[]meeting.Turn]
	ttl    time.Duration
	log    *logger.Logger
}

// NewArtifactCache creates an ArtifactCache. rc may be nil.
func NewArtifactCache(st *store.Store, rc *redis.Client, ttl time.Duration, log *logger.Logger) *ArtifactCache {
	c := &ArtifactCache{store: st, ttl: ttl, log: log.WithComponent("cache")}
	if rc != nil {
		c.tokens = redis.NewTypedStore[[]meeting.Token](rc, "meetscribe:tokens")
		c.turns = redis.NewTypedStore[[]meeting.Turn](rc, "meetscribe:turns")
	}
	return c
}

// Tokens implements Cache.
func (c *ArtifactCache) Tokens(ctx context.Context, meetingID string) ([]meeting.Token, error) {
	return load(ctx, c, c.tokens, meetingID, store.ArtifactTokens)
}

// SaveTokens implements Cache.
func (c *ArtifactCache) SaveTokens(ctx context.Context, meetingID string, tokens []meeting.Token) error {
	return save(ctx, c, c.tokens, meetingID, store.ArtifactTokens, tokens)
}

// Turns implements Cache.
func (c *ArtifactCache) Turns(ctx context.Context, meetingID string) ([]meeting.Turn, error) {
	return load(ctx, c, c.turns, meetingID, store.ArtifactDiarization)
}

// SaveTurns implements Cache.
func (c *ArtifactCache) SaveTurns(ctx context.Context, meetingID string, turns []meeting.Turn) error {
	return save(ctx, c, c.turns, meetingID, store.ArtifactDiarization, turns)
}

// Clear implements Cache.
func (c *ArtifactCache) Clear(ctx context.Context, meetingID string) error {
	if c.tokens != nil {
		if err := c.tokens.Delete(ctx, meetingID); err != nil {
			c.log.Warn("redis delete failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID), err))
		}
		if err := c.turns.Delete(ctx, meetingID); err != nil {
			c.log.Warn("redis delete failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID), err))
		}
	}
	return c.store.DeleteArtifacts(ctx, meetingID, store.ArtifactTokens, store.ArtifactDiarization)
}

func load[T any](ctx context.Context, c *ArtifactCache, fast *redis.TypedStore[[]T], meetingID, kind string) ([]T, error) {
	if fast != nil {
		v, err := fast.Load(ctx, meetingID)
		if err != nil {
			c.log.Warn("redis load failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID, "kind", kind), err))
		} else if v != nil {
			return *v, nil
		}
	}

	raw, err := c.store.GetArtifact(ctx, meetingID, kind)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decode %s artifact: %w", kind, err))
	}
	if fast != nil {
		if err := fast.Save(ctx, meetingID, &out, c.ttl); err != nil {
			c.log.Debug("redis backfill failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID), err))
		}
	}
	return out, nil
}

func save[T any](ctx context.Context, c *ArtifactCache, fast *redis.TypedStore[[]T], meetingID, kind string, v []T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("encode %s artifact: %w", kind, err))
	}
	if err := c.store.PutArtifact(ctx, meetingID, kind, raw); err != nil {
		return err
	}
	if fast != nil {
		if err := fast.Save(ctx, meetingID, &v, c.ttl); err != nil {
			c.log.Warn("redis save failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, meetingID, "kind", kind), err))
		}
	}
	return nil
}
