// Package queue dedupes webhook deliveries. A delivery id is accepted once;
// redeliveries of the same id are recognised and dropped until the id is
// removed again.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/playtracker/internal/repository"
)

// Queue records accepted delivery ids.
type Queue interface {
	// Add reports true when id was not queued yet and now is.
	Add(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
}

// StoreQueue keeps ids in the request_sync table.
type StoreQueue struct {
	store repository.SyncRequestRepository
}

func NewStoreQueue(store repository.SyncRequestRepository) *StoreQueue {
	return &StoreQueue{store: store}
}

func (q *StoreQueue) Add(ctx context.Context, id string) (bool, error) {
	res, err := q.store.EnqueueSyncRequest(ctx, id)
	if err != nil {
		return false, err
	}
	return res == repository.Inserted, nil
}

func (q *StoreQueue) Remove(ctx context.Context, id string) error {
	return q.store.DeleteSyncRequest(ctx, id)
}

// DefaultTTL bounds how long a delivery id is remembered in Redis.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "playtracker:sync:"

// RedisQueue keeps ids as expiring Redis keys.
type RedisQueue struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisQueue(rdb *redis.Client, ttl time.Duration) *RedisQueue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisQueue{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("queue: connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (q *RedisQueue) Add(ctx context.Context, id string) (bool, error) {
	ok, err := q.rdb.SetNX(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), q.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("queue: adding %s: %w", id, err)
	}
	return ok, nil
}

func (q *RedisQueue) Remove(ctx context.Context, id string) error {
	if err := q.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("queue: removing %s: %w", id, err)
	}
	return nil
}

var (
	_ Queue = (*StoreQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
)
