package redis

import (
	"context"
	"fmt"

	"busticket/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient connects and pings. The client backs the idempotency middleware
// and the short-lived ticket and route caches.
func NewClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
