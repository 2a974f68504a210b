package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exclusivemerch/store-backend/internal/testutil"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	pendingState = enums.OrderState{
		Order:    enums.OrderStatusUnconfirmed,
		Payment:  enums.PaymentStatusPending,
		Shipping: enums.ShippingStatusNotShipped,
	}
	paidState = enums.OrderState{
		Order:    enums.OrderStatusConfirmed,
		Payment:  enums.PaymentStatusReceived,
		Shipping: enums.ShippingStatusNotShipped,
	}
)

func TestRepositoryCreateLoadsDetails(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	seeded := seedOrder(t, conn, orderSeed{})

	got, err := repo.FindByTokenAndGatewayID(context.Background(), seeded.OrderToken, seeded.GatewayOrderID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.Len(t, got.Charges, 1)
	assert.Equal(t, "499.00", got.Lines[0].Price.StringFixed(2))
	assert.Equal(t, enums.ChargeTypeDelivery, got.Charges[0].ChargeType)

	_, err = repo.FindByTokenAndGatewayID(context.Background(), seeded.OrderToken, "order_other")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	_, err = repo.FindByTokenForUser(context.Background(), seeded.OrderToken, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryUpdateGuarded(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	order := seedOrder(t, conn, orderSeed{})
	ctx := context.Background()

	ok, err := repo.UpdateGuarded(ctx, order.ID, GuardFor(pendingState), StatusUpdate{
		Order:   enums.OrderStatusConfirmed,
		Payment: enums.PaymentStatusReceived,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// The guard no longer matches once the first transition landed.
	ok, err = repo.UpdateGuarded(ctx, order.ID, GuardFor(pendingState), StatusUpdate{
		Order: enums.OrderStatusCancelledByUser,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	tracking := "AWB123"
	ok, err = repo.UpdateGuarded(ctx, order.ID, StatusGuard{Order: enums.OrderStatusConfirmed}, StatusUpdate{
		Shipping:   enums.ShippingStatusShipping,
		TrackingID: &tracking,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByToken(ctx, order.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, got.OrderStatus)
	assert.Equal(t, enums.PaymentStatusReceived, got.PaymentStatus)
	assert.Equal(t, enums.ShippingStatusShipping, got.ShippingStatus)
	require.NotNil(t, got.TrackingID)
	assert.Equal(t, "AWB123", *got.TrackingID)
}

func TestRepositoryUpdateGuardedRejectsIllegalState(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	order := seedOrder(t, conn, orderSeed{})
	ctx := context.Background()

	// Shipping cannot start on an order that was never paid.
	ok, err := repo.UpdateGuarded(ctx, order.ID, GuardFor(pendingState), StatusUpdate{Shipping: enums.ShippingStatusShipping})
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	// A partial guard is checked against the stored row.
	ok, err = repo.UpdateGuarded(ctx, order.ID, StatusGuard{Payment: enums.PaymentStatusPending}, StatusUpdate{
		Order: enums.OrderStatusConfirmed,
	})
	require.Error(t, err, "confirmed with pending payment must be rejected")
	assert.False(t, ok)

	ok, err = repo.UpdateGuarded(ctx, order.ID, StatusGuard{Payment: enums.PaymentStatusReceived}, StatusUpdate{
		Order: enums.OrderStatusCancelledByUser,
	})
	require.NoError(t, err)
	assert.False(t, ok, "guard mismatch is reported without error")

	ok, err = repo.UpdateGuarded(ctx, uuid.New(), StatusGuard{Payment: enums.PaymentStatusPending}, StatusUpdate{
		Order: enums.OrderStatusCancelledByUser,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByToken(ctx, order.OrderToken)
	require.NoError(t, err)
	assert.Equal(t, pendingState, got.State())
}

func TestRepositoryListPendingBefore(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	old := seedOrder(t, conn, orderSeed{createdAt: now.Add(-3 * time.Hour)})
	older := seedOrder(t, conn, orderSeed{createdAt: now.Add(-5 * time.Hour)})
	seedOrder(t, conn, orderSeed{createdAt: now.Add(-10 * time.Minute)})
	seedOrder(t, conn, orderSeed{createdAt: now.Add(-6 * time.Hour), state: paidState})

	rows, err := repo.ListPendingBefore(context.Background(), now.Add(-2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, old.ID, rows[1].ID)
	assert.Len(t, rows[0].Lines, 1)

	rows, err = repo.ListPendingBefore(context.Background(), now.Add(-2*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, older.ID, rows[0].ID)
}

func TestRepositoryListAwaitingPayment(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	userID := uuid.New()

	pending := seedOrder(t, conn, orderSeed{userID: userID})
	seedOrder(t, conn, orderSeed{userID: userID, state: paidState})
	seedOrder(t, conn, orderSeed{})

	rows, err := repo.ListAwaitingPayment(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)
}

func TestRepositoryListConfirmedPaginates(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	repo := NewRepository(conn)
	base := time.Now().UTC().Truncate(time.Second)

	var want []uuid.UUID
	for i := 0; i < 3; i++ {
		o := seedOrder(t, conn, orderSeed{state: paidState, createdAt: base.Add(time.Duration(i) * time.Minute)})
		want = append([]uuid.UUID{o.ID}, want...)
	}
	seedOrder(t, conn, orderSeed{createdAt: base.Add(time.Hour)})

	page, next, err := repo.ListConfirmed(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	assert.Equal(t, want[0], page[0].ID)
	assert.Equal(t, want[1], page[1].ID)

	page, next, err = repo.ListConfirmed(context.Background(), pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Empty(t, next)
	assert.Equal(t, want[2], page[0].ID)
}
