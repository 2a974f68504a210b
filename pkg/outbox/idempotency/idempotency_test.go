package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	setErr  error
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "merch:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func TestOnceRunsFirstDeliveryOnly(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	manager.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	runs := 0
	handle := func(context.Context) error { runs++; return nil }

	require.NoError(t, manager.Once(context.Background(), "order-mail", eventID, handle))
	err = manager.Once(context.Background(), "order-mail", eventID, handle)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, runs)

	key := "merch:idempotency:evt:order-mail:" + eventID.String()
	assert.Equal(t, "2026-03-01T10:00:00Z", store.values[key])
	assert.Equal(t, 24*time.Hour, store.ttls[key])
}

func TestOnceIsScopedPerConsumer(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	noop := func(context.Context) error { return nil }
	require.NoError(t, manager.Once(context.Background(), "order-mail", eventID, noop))
	require.NoError(t, manager.Once(context.Background(), "analytics", eventID, noop))
}

func TestOnceReleasesClaimOnFailure(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	boom := errors.New("smtp down")
	err = manager.Once(context.Background(), "order-mail", eventID, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Len(t, store.deleted, 1)

	runs := 0
	err = manager.Once(context.Background(), "order-mail", eventID, func(context.Context) error { runs++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, runs, "redelivery after failure must run again")
}

func TestOnceClaimError(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis unavailable")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	called := false
	err = manager.Once(context.Background(), "order-mail", uuid.New(), func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.False(t, called)
}

func TestOnceValidatesInput(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	assert.Error(t, manager.Once(context.Background(), "", uuid.New(), noop))
	assert.Error(t, manager.Once(context.Background(), "order-mail", uuid.Nil, noop))

	_, err = NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	assert.Error(t, err)
}
