package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskhub/taskhub/internal/domain/task"
)

// TasksCache is a short-TTL read-through cache for per-user task lists.
//
// Every list key embeds a per-user version counter; invalidation bumps the
// counter so all filter variants for that user fall out at once without a
// SCAN. Entries also carry a TTL so a lost invalidation heals itself.
type TasksCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func New(cfg Config) *TasksCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &TasksCache{rdb: rdb, ttl: ttl}
}

func (c *TasksCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *TasksCache) Close() error {
	return c.rdb.Close()
}

func (c *TasksCache) GetList(ctx context.Context, userID, filterKey string) ([]task.Task, bool) {
	key, err := c.listKey(ctx, userID, filterKey)

	if err != nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()

	if err != nil {
		// redis.Nil and transport errors both mean "miss"
		return nil, false
	}

	var items []task.Task

	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}

	return items, true
}

func (c *TasksCache) SetList(ctx context.Context, userID, filterKey string, items []task.Task) {
	key, err := c.listKey(ctx, userID, filterKey)

	if err != nil {
		return
	}

	raw, err := json.Marshal(items)

	if err != nil {
		return
	}

	_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the version counter of every affected scope. Cache
// failures are swallowed: the store remains the source of truth.
func (c *TasksCache) Invalidate(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		_ = c.rdb.Incr(ctx, versionKey(id)).Err()
	}
}

func (c *TasksCache) listKey(ctx context.Context, userID, filterKey string) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(userID)).Int64()

	if err != nil && err != redis.Nil {
		return "", err
	}

	return fmt.Sprintf("taskhub:tasks:%s:v%d:%s", userID, ver, filterKey), nil
}

func versionKey(userID string) string {
	return "taskhub:tasks:ver:" + userID
}
