// Package cache keeps rendered task details and live session ids in Redis.
// When Redis is not configured the Nop implementations are used instead.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"tasktracker/internal/models"
	"tasktracker/pkg/logger"
)

const taskTTL = time.Hour

// TaskCache stores task records by id.
type TaskCache interface {
	Get(ctx context.Context, id int64) (*models.Task, bool)
	Set(ctx context.Context, t *models.Task)
	Invalidate(ctx context.Context, ids ...int64)
	InvalidateAll(ctx context.Context)
}

func taskKey(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

type RedisTaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTaskCache(client *redis.Client) *RedisTaskCache {
	return &RedisTaskCache{client: client, ttl: taskTTL}
}

// Get misses on any error; a broken cache never fails a request.
func (c *RedisTaskCache) Get(ctx context.Context, id int64) (*models.Task, bool) {
	raw, err := c.client.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.ErrorLogger.Error("Redis get failed", zap.Int64("task_id", id), zap.Error(err))
		}
		return nil, false
	}
	var t models.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		logger.ErrorLogger.Error("Corrupt cached task", zap.Int64("task_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &t, true
}

func (c *RedisTaskCache) Set(ctx context.Context, t *models.Task) {
	data, err := json.Marshal(t)
	if err != nil {
		logger.ErrorLogger.Error("Marshal task for cache", zap.Int64("task_id", t.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, taskKey(t.ID), data, c.ttl).Err(); err != nil {
		logger.ErrorLogger.Error("Redis set failed", zap.Int64("task_id", t.ID), zap.Error(err))
	}
}

func (c *RedisTaskCache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.ErrorLogger.Error("Redis del failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidateAll drops every cached task. Deleting a category or renaming
// shared rows can touch any task, so the whole keyspace goes.
func (c *RedisTaskCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, "task:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.ErrorLogger.Error("Redis scan failed", zap.Error(err))
		return
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			logger.ErrorLogger.Error("Redis del failed", zap.Error(err))
		}
	}
}

type NopTaskCache struct{}

func (NopTaskCache) Get(context.Context, int64) (*models.Task, bool) { return nil, false }
func (NopTaskCache) Set(context.Context, *models.Task)              {}
func (NopTaskCache) Invalidate(context.Context, ...int64)           {}
func (NopTaskCache) InvalidateAll(context.Context)                  {}
