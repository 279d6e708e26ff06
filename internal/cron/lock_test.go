package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "st:lock:cron", 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ok, err := lock.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, exists := store.values["st:lock:cron"]; exists {
		t.Fatal("lock key not removed")
	}
}

func TestRedisLockSecondAcquireFails(t *testing.T) {
	store := newFakeRedisStore()
	first, _ := NewRedisLock(store, "st:lock:cron", 0)
	second, _ := NewRedisLock(store, "st:lock:cron", 0)
	if ok, _ := first.Acquire(context.Background()); !ok {
		t.Fatal("first acquire should win")
	}
	if ok, _ := second.Acquire(context.Background()); ok {
		t.Fatal("second acquire should lose while lock is held")
	}
}

func TestRedisLockReleaseRespectsOwner(t *testing.T) {
	store := newFakeRedisStore()
	lock, _ := NewRedisLock(store, "st:lock:cron", 0)
	if ok, _ := lock.Acquire(context.Background()); !ok {
		t.Fatal("acquire failed")
	}
	// simulate the TTL firing and another instance taking over
	store.values["st:lock:cron"] = "someone-else"
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["st:lock:cron"] != "someone-else" {
		t.Fatal("release must not delete a lock owned by another instance")
	}
}
