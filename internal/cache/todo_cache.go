package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	dom "todoapi/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyList       = "todo:list"
	keyGeneration = "todo:list:gen"
)

// TodoCache caches the sorted todo listing in Redis.
//
// Every write bumps a generation counter. A listing is only stored if the
// counter has not moved since the caller read it, so a list loaded before
// a concurrent write cannot overwrite that write's invalidation.
type TodoCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewTodoCache returns a new TodoCache.
func NewTodoCache(rdb redis.UniversalClient, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current write generation. A missing counter is 0.
func (c *TodoCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyGeneration).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetList returns the cached listing, or nil on a miss.
func (c *TodoCache) GetList(ctx context.Context) ([]dom.Todo, error) {
	b, err := c.rdb.Get(ctx, keyList).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.Todo{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetListIfGeneration stores list when the generation is still gen.
// It reports whether the list was stored.
func (c *TodoCache) SetListIfGeneration(ctx context.Context, gen int64, list []dom.Todo) (bool, error) {
	b, err := json.Marshal(list)
	if err != nil {
		return false, err
	}

	stored := false
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, keyGeneration).Int64()
		if errors.Is(err, redis.Nil) {
			cur, err = 0, nil
		}
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyList, b, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, keyGeneration)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

// Invalidate drops the cached listing and bumps the generation. Called on every write.
func (c *TodoCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyList)
		pipe.Incr(ctx, keyGeneration)
		return nil
	})
	return err
}
