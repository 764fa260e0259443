package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultLeaseKey = "autosocial:scheduler:lock"

var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLease is a lock held as a Redis key with a TTL. The holder must
// renew it within the TTL; a crashed holder's lease simply expires.
type RedisLease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLease(client redis.Cmdable, key string, ttl time.Duration) *RedisLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	return &RedisLease{
		client: client,
		key:    key,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}
}

func (l *RedisLease) Owner() string { return l.owner }

func (l *RedisLease) TTL() time.Duration { return l.ttl }

func (l *RedisLease) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("error acquiring scheduler lease: %w", err)
	}
	if ok {
		slog.Info("scheduler lease acquired", "key", l.key, "owner", l.owner)
		return true, nil
	}

	current, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error reading scheduler lease: %w", err)
	}
	if current == l.owner {
		return true, nil
	}
	return false, nil
}

func (l *RedisLease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("error renewing scheduler lease: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("error releasing scheduler lease: %w", err)
	}
	if n > 0 {
		slog.Info("scheduler lease released", "key", l.key)
	}
	return nil
}
