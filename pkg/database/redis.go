package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"tasktracker/configs"
)

// ConnectRedis returns nil when no Redis host is configured.
func ConnectRedis(ctx context.Context, cfg configs.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		DB:   0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
