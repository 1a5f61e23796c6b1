// Package leader answers whether this replica currently holds leadership.
//
// Callers poll IsLeader before each unit of leader-only work and never cache
// the answer across units of work.
package leader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
)

// Elector is a leadership oracle.
type Elector interface {
	IsLeader(ctx context.Context) bool
}

// Static always gives the same answer. Useful for single replica deployments and tests.
type Static bool

func (s Static) IsLeader(context.Context) bool {
	return bool(s)
}

var (
	// ErrKeyRequired is returned when the lease key is empty.
	ErrKeyRequired = errors.New("leader: lease key is required")
	// ErrIdentityRequired is returned when the replica identity is empty.
	ErrIdentityRequired = errors.New("leader: identity is required")
)

// renew extends the lease only when it is still owned by the caller.
var renew = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is an Elector backed by a single Redis key holding the
// identity of the current leader with a TTL.
type RedisLease struct {
	client   *redis.Client
	key      string
	identity string
	ttl      time.Duration
	held     *atomic.Bool
}

// NewRedisLease constructs a lease. The ttl must outlive the polling interval
// of the caller, otherwise leadership flaps between replicas.
func NewRedisLease(client *redis.Client, key, identity string, ttl time.Duration) (*RedisLease, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if identity == "" {
		return nil, ErrIdentityRequired
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &RedisLease{
		client:   client,
		key:      key,
		identity: identity,
		ttl:      ttl,
		held:     atomic.NewBool(false),
	}, nil
}

// IsLeader acquires or renews the lease. Any Redis error is treated as not leader.
func (l *RedisLease) IsLeader(ctx context.Context) bool {
	ok, err := l.acquireOrRenew(ctx)
	if err != nil {
		slog.WarnContext(ctx, "leader lease check failed", "key", l.key, "error", err)
		ok = false
	}

	if prev := l.held.Swap(ok); prev != ok {
		slog.InfoContext(ctx, "leadership changed", "key", l.key, "identity", l.identity, "leader", ok)
	}

	return ok
}

func (l *RedisLease) acquireOrRenew(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.identity, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if acquired {
		return true, nil
	}

	renewed, err := renew.Run(ctx, l.client, []string{l.key}, l.identity, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return renewed == 1, nil
}

// Release gives up the lease if this replica holds it.
func (l *RedisLease) Release(ctx context.Context) error {
	l.held.Store(false)
	return release.Run(ctx, l.client, []string{l.key}, l.identity).Err()
}
