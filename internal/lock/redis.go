package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker holds SETNX tokens so several API instances share booking locks.
type RedisLocker struct {
	client     redis.UniversalClient
	script     *redis.Script
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	log        *zap.Logger
}

type RedisOptions struct {
	TTL        time.Duration
	Wait       time.Duration
	RetryDelay time.Duration
}

func NewRedisLocker(client redis.UniversalClient, opts RedisOptions, log *zap.Logger) *RedisLocker {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 25 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client:     client,
		script:     redis.NewScript(lockReleaseScript),
		ttl:        opts.TTL,
		wait:       opts.Wait,
		retryDelay: opts.RetryDelay,
		log:        log.Named("lock.redis"),
	}
}

func (l *RedisLocker) Backend() string { return "redis" }

// TryLock makes one SETNX attempt and returns the owner token on success.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if l.ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Unlock deletes key only while it still holds token.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return noopRelease, nil
	}

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	tokens := make(map[string]string, len(keys))
	for _, key := range keys {
		token, err := l.acquireOne(ctx, key)
		if err != nil {
			l.unlockAll(tokens)
			return nil, err
		}
		tokens[key] = token
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(tokens) })
	}, nil
}

func (l *RedisLocker) acquireOne(ctx context.Context, key string) (string, error) {
	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return "", ErrLockTimeout
			}
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ErrLockTimeout
		case <-ticker.C:
		}
	}
}

// unlockAll runs on a fresh context so an expired request context does not
// leave keys held until their TTL.
func (l *RedisLocker) unlockAll(tokens map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for key, token := range tokens {
		if err := l.Unlock(ctx, key, token); err != nil {
			l.log.Warn("failed to release booking lock", zap.String("key", key), zap.Error(err))
		}
	}
}
