package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// ErrLockLost is returned by Lease.Extend once the lease has expired or been
// released and the key may belong to another holder.
var ErrLockLost = errors.New("cascade lock lost")

// Lease is a held lock. Extend pushes its expiry out by the lock TTL.
type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// KeyedLock grants mutual exclusion per key without blocking.
// ok is false when another holder owns the key.
type KeyedLock interface {
	TryLock(ctx context.Context, key string) (lease Lease, ok bool, err error)
}

type redisLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
	ExpireIfEquals(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
	LockKey(scope, id string) string
}

// RedisLock implements KeyedLock with SETNX and an owner token so an expired
// holder cannot delete or extend a lock acquired by someone else.
type RedisLock struct {
	store redisLockStore
	scope string
	ttl   time.Duration
}

// NewRedisLock constructs a Redis-backed keyed lock under the given scope.
func NewRedisLock(store redisLockStore, scope string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if scope == "" {
		return nil, errors.New("lock scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, scope: scope, ttl: ttl}, nil
}

func (l *RedisLock) TryLock(ctx context.Context, key string) (Lease, bool, error) {
	redisKey := l.store.LockKey(l.scope, key)
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, redisKey, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{lock: l, key: redisKey, owner: owner}, true, nil
}

type redisLease struct {
	lock  *RedisLock
	key   string
	owner string
}

func (r *redisLease) Extend(ctx context.Context) error {
	ok, err := r.lock.store.ExpireIfEquals(ctx, r.key, r.owner, r.lock.ttl)
	if err != nil {
		return fmt.Errorf("extend lock: %w", err)
	}
	if !ok {
		return ErrLockLost
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if _, err := r.lock.store.DeleteIfEquals(ctx, r.key, r.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// LocalLock is an in-process KeyedLock for tests and single-node deployments.
// Its leases never expire.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]*localLease
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: map[string]*localLease{}}
}

func (l *LocalLock) TryLock(_ context.Context, key string) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	lease := &localLease{lock: l, key: key}
	l.held[key] = lease
	return lease, true, nil
}

type localLease struct {
	lock *LocalLock
	key  string
}

func (r *localLease) Extend(context.Context) error {
	r.lock.mu.Lock()
	defer r.lock.mu.Unlock()
	if r.lock.held[r.key] != r {
		return ErrLockLost
	}
	return nil
}

func (r *localLease) Release(context.Context) error {
	r.lock.mu.Lock()
	defer r.lock.mu.Unlock()
	if r.lock.held[r.key] == r {
		delete(r.lock.held, r.key)
	}
	return nil
}
