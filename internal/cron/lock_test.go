package cron

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/playgate/pkg/redis"
)

func TestRedisLockAcquireRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	key := client.LockKey("cron", "cycle")
	ctx := context.Background()

	first, err := NewRedisLock(client, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, err := NewRedisLock(client, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second instance to be locked out")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("non-owner release must keep the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("expected owner release to delete the key")
	}
}

func TestRedisLockExpiredOwnerCannotDeleteNewLock(t *testing.T) {
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	ctx := context.Background()

	slow, _ := NewRedisLock(client, "pg:lock:cron:cycle", time.Second)
	fast, _ := NewRedisLock(client, "pg:lock:cron:cycle", time.Minute)
	if ok, _ := slow.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := fast.Acquire(ctx); !ok {
		t.Fatal("expected acquire after expiry")
	}
	if err := slow.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("pg:lock:cron:cycle") {
		t.Fatal("expired owner deleted the new lock")
	}
}

func TestLocalLock(t *testing.T) {
	var lock LocalLock
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatal("expected contention")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}
