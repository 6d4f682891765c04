// Package lock provides short-lived named locks, backed by Redis when a
// client is configured and by an in-process table otherwise.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a key stays held past the wait budget.
var ErrNotAcquired = errors.New("lock: not acquired")

const retryInterval = 25 * time.Millisecond

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases over sets of keys.
type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration

	mu    sync.Mutex
	local map[string]string
}

// New creates a Locker. A nil rdb keeps locks in process memory, which is
// only correct for a single server instance.
func New(rdb *redis.Client, prefix string, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
		local:  make(map[string]string),
	}
}

// Lease is a held set of keys.
type Lease struct {
	locker *Locker
	token  string
	keys   []string
}

// Keys held by the lease, sorted.
func (l *Lease) Keys() []string {
	return l.keys
}

// Acquire takes every key or none. Keys are taken in sorted order so two
// callers with overlapping sets cannot deadlock.
func (l *Locker) Acquire(ctx context.Context, keys ...string) (*Lease, error) {
	lease := &Lease{locker: l, token: uuid.New().String(), keys: normalize(keys)}

	deadline := time.Now().Add(l.wait)
	held := 0
	for held < len(lease.keys) {
		ok, err := l.tryOne(ctx, lease.keys[held], lease.token)
		if err != nil {
			lease.release(ctx, held)
			return nil, err
		}
		if ok {
			held++
			continue
		}
		if !time.Now().Before(deadline) {
			lease.release(ctx, held)
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			lease.release(context.Background(), held)
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return lease, nil
}

// Release frees every key of the lease. Keys that expired and were taken by
// someone else are left alone.
func (l *Lease) Release(ctx context.Context) error {
	return l.release(ctx, len(l.keys))
}

func (l *Lease) release(ctx context.Context, n int) error {
	var firstErr error
	for _, key := range l.keys[:n] {
		if err := l.locker.releaseOne(ctx, key, l.token); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Locker) tryOne(ctx context.Context, key, token string) (bool, error) {
	if l.rdb == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, taken := l.local[key]; taken {
			return false, nil
		}
		l.local[key] = token
		return true, nil
	}
	return l.rdb.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
}

func (l *Locker) releaseOne(ctx context.Context, key, token string) error {
	if l.rdb == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.local[key] == token {
			delete(l.local, key)
		}
		return nil
	}
	return releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, token).Err()
}

func normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
