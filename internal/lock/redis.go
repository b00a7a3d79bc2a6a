package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/amishk599/statejobs/internal/scheduler"
)

const defaultLeaseTTL = 30 * time.Minute

// releaseScript deletes the key only if it still carries our token, so an
// expired lease taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker guards cycles with a SET NX PX lease in Redis.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

var _ scheduler.Locker = (*RedisLocker)(nil)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a locker holding key for at most ttl per cycle.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, logger: logger}
}

// TryLock sets the lease key if it is absent. While held, the lease is
// renewed every ttl/3 so a cycle longer than ttl keeps it; unlock stops the
// renewal and releases the key.
func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis SETNX %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	return func() {
		close(stop)
		<-done
		// The cycle context may already be cancelled on shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("releasing redis lock failed", "key", l.key, "error", err)
		}
	}, true, nil
}

func (l *RedisLocker) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := max(l.ttl/3, time.Millisecond)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			// Transient; the next tick retries while the lease is still live.
			l.logger.Warn("renewing redis lock failed", "key", l.key, "error", err)
		case renewed == 0:
			l.logger.Error("redis lock lost before cycle finished", "key", l.key)
			return
		}
	}
}
