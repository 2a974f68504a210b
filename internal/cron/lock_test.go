package cron

import (
	"context"
	"strings"
	"testing"
	"time"
)

type memoryLockStore struct {
	values map[string]string
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	if m.values[key] != token {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndOwned(t *testing.T) {
	const key = "merch:lock:cron:test"
	store := &memoryLockStore{values: map[string]string{}}
	first, _ := NewRedisLock(store, key, "worker-a", time.Minute)
	second, _ := NewRedisLock(store, key, "worker-b", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(store.values[key], "worker-a/") {
		t.Fatalf("token should name the holder, got %q", store.values[key])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values[key]; !held {
		t.Fatal("non-owner release must not delete the key")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after owner release")
	}
}

func TestRedisLockReleaseAfterTakeover(t *testing.T) {
	const key = "merch:lock:cron:test"
	store := &memoryLockStore{values: map[string]string{}}
	first, _ := NewRedisLock(store, key, "worker-a", time.Minute)
	ctx := context.Background()

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	// Simulate expiry followed by another instance taking the key.
	store.values[key] = "worker-b/other"
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[key] != "worker-b/other" {
		t.Fatal("stale holder must not delete the new holder's lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", "w", 0); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisLock(&memoryLockStore{}, "", "w", 0); err == nil {
		t.Fatal("expected error for empty key")
	}
	lock, err := NewRedisLock(&memoryLockStore{}, "k", "w", 0)
	if err != nil || lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v %v", lock, err)
	}
}
