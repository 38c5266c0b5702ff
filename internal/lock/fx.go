package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/orderdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New builds the locker selected by LOCK_BACKEND.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	if cfg.Lock.Backend != config.LockBackendRedis {
		log.Info("using in-process booking locks")
		return NewMemoryLocker(cfg.Lock.WaitTimeout)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using redis booking locks", zap.String("addr", cfg.Redis.Addr))
	return NewRedisLocker(client, RedisOptions{
		TTL:        cfg.Lock.TTL,
		Wait:       cfg.Lock.WaitTimeout,
		RetryDelay: cfg.Lock.RetryDelay,
	}, log)
}
