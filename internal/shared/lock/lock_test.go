package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, "lock:", ttl, 0), mr
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t, time.Minute)

	lease, err := l.Acquire(ctx, "wo-2", "wo-1", "wo-2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := lease.Keys(); len(got) != 2 || got[0] != "wo-1" || got[1] != "wo-2" {
		t.Fatalf("Keys = %v", got)
	}
	if !mr.Exists("lock:wo-1") || !mr.Exists("lock:wo-2") {
		t.Fatalf("keys not written to redis")
	}

	if _, err := l.Acquire(ctx, "wo-2"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second Acquire err = %v, want ErrNotAcquired", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if mr.Exists("lock:wo-1") {
		t.Fatalf("key still present after release")
	}
	if _, err := l.Acquire(ctx, "wo-2"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestPartialAcquireRollsBack(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t, time.Minute)

	if _, err := l.Acquire(ctx, "b"); err != nil {
		t.Fatalf("Acquire b: %v", err)
	}
	if _, err := l.Acquire(ctx, "a", "b"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("err = %v, want ErrNotAcquired", err)
	}
	if mr.Exists("lock:a") {
		t.Fatalf("a should be released after failed acquire")
	}
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedisLocker(t, time.Second)

	lease, err := l.Acquire(ctx, "wo")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	mr.FastForward(2 * time.Second)

	other, err := l.Acquire(ctx, "wo")
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !mr.Exists("lock:wo") {
		t.Fatalf("expired lease released a key it no longer owns")
	}
	other.Release(ctx)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := New(nil, "", time.Second, 0)

	lease, err := l.Acquire(ctx, "x")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "x"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("err = %v, want ErrNotAcquired", err)
	}
	lease.Release(ctx)
	if _, err := l.Acquire(ctx, "x"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestAcquireWaits(t *testing.T) {
	ctx := context.Background()
	l := New(nil, "", time.Second, time.Second)

	lease, err := l.Acquire(ctx, "x")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		lease.Release(ctx)
	}()
	if _, err := l.Acquire(ctx, "x"); err != nil {
		t.Fatalf("waiting Acquire: %v", err)
	}
}
