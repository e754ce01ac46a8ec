// Command tokenctl administers grabkit credentials: admin tokens with
// daily and lifetime limits, and credit-holding users with service keys.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/config"
	"github.com/KeremKalyoncu/grabkit/internal/store"
)

func main() {
	if err := newRootCmd(openRedisStore).Execute(); err != nil {
		os.Exit(1)
	}
}

// openRedisStore connects to the store the api server uses
func openRedisStore(ctx context.Context) (store.Admin, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.StoreDriver != "redis" {
		return nil, nil, fmt.Errorf("tokenctl needs STORE_DRIVER=redis, got %q", cfg.Auth.StoreDriver)
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:       cfg.Redis.Address,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   2,
		MaxRetries: cfg.Redis.MaxRetries,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return store.NewRedis(client, cfg.Auth.FreeCredits), func() { client.Close() }, nil
}
