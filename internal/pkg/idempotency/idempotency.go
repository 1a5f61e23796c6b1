// Package idempotency guards side effects that must happen at most once per
// key, using Redis as the shared state store.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidState is returned when a key holds a value this package did not write.
var ErrInvalidState = errors.New("idempotency: invalid state")

type State string

const (
	StateNone       State = "none"        // never attempted, caller owns the lock
	StateInProgress State = "in_progress" // someone else holds the lock
	StateCompleted  State = "completed"   // done, skip
	StateFailed     State = "failed"      // last attempt failed, caller owns the lock
)

func (s State) String() string {
	return string(s)
}

// CanProceed reports whether the caller took the lock and should run the side effect.
func (s State) CanProceed() bool {
	return s == StateNone || s == StateFailed
}

// Idempotency tracks the state of keyed side effects.
type Idempotency interface {
	// Acquire returns the state found for key. When it is None or Failed the
	// key is atomically moved to InProgress for lockDuration.
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
}

// acquireScript takes the lock on a missing or failed key in one round trip,
// so two retries of a failed side effect cannot both proceed.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur or cur == ARGV[2] then
	redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[1])
end
return cur or ''
`)

// StateTracker is the Redis implementation of Idempotency.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

// New returns a StateTracker storing keys under prefix. An empty prefix
// defaults to "idempotency:".
func New(client redis.UniversalClient, prefix string) *StateTracker {
	if prefix == "" {
		prefix = "idempotency:"
	}
	return &StateTracker{client: client, prefix: prefix}
}

func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	if lockDuration <= 0 {
		lockDuration = time.Minute
	}

	prev, err := acquireScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		lockDuration.Milliseconds(), StateFailed.String(), StateInProgress.String(),
	).Text()
	if err != nil {
		return "", fmt.Errorf("idempotency acquire %s: %w", key, err)
	}

	switch State(prev) {
	case "":
		return StateNone, nil
	case StateInProgress, StateCompleted, StateFailed:
		return State(prev), nil
	default:
		return "", fmt.Errorf("%w: %q for %s", ErrInvalidState, prev, key)
	}
}

func (s *StateTracker) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.set(ctx, key, StateCompleted, ttl)
}

func (s *StateTracker) MarkFailed(ctx context.Context, key string, ttl time.Duration) error {
	return s.set(ctx, key, StateFailed, ttl)
}

func (s *StateTracker) set(ctx context.Context, key string, st State, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, st.String(), ttl).Err()
}
