// Package idempotency gives Pub/Sub consumers at-most-once handling of outbox
// events on top of Redis SETNX.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/exclusivemerch/store-backend/pkg/redis"
)

// ErrDuplicate is returned by Once when the consumer already handled the event.
var ErrDuplicate = errors.New("event already processed")

// Manager records handled event ids per consumer under
// merch:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Once runs fn unless consumer already claimed eventID. When fn fails the
// claim is dropped so the redelivered message runs fn again; fn's error is
// returned unchanged.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		return ErrDuplicate
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			return errors.Join(err, fmt.Errorf("release %s: %w", key, delErr))
		}
		return err
	}
	return nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
