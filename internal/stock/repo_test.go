package stock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/exclusivemerch/store-backend/internal/testutil"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var redMedium = Variant{ItemID: 5, ColorOption: "Red", SizeOption: "M"}

func seedVariant(t *testing.T, db *gorm.DB, v Variant, count int) {
	t.Helper()
	require.NoError(t, db.Create(&models.StockRecord{
		ItemID:      v.ItemID,
		ColorOption: v.ColorOption,
		SizeOption:  v.SizeOption,
		Count:       count,
	}).Error)
}

func TestReserveDecrementsAndRejectsShortfall(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()
	seedVariant(t, db, redMedium, 2)

	require.NoError(t, repo.Reserve(ctx, redMedium, 2))

	err := repo.Reserve(ctx, redMedium, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	shortfall, ok := pkgerrors.As(err).Details().(Shortfall)
	require.True(t, ok)
	assert.Equal(t, 1, shortfall.Requested)
	assert.Equal(t, 0, shortfall.Available)

	count, err := repo.Available(ctx, redMedium)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReserveMissingRecordIsInternal(t *testing.T) {
	repo := NewRepository(testutil.OpenSQLite(t))

	err := repo.Reserve(context.Background(), redMedium, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.False(t, IsInsufficientStock(err))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	repo := NewRepository(testutil.OpenSQLite(t))
	err := repo.Reserve(context.Background(), redMedium, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()
	seedVariant(t, db, redMedium, 5)

	const buyers = 20
	var wg sync.WaitGroup
	var succeeded, rejected int32
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Reserve(ctx, redMedium, 1)
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case IsInsufficientStock(err):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected reserve error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, succeeded)
	assert.EqualValues(t, buyers-5, rejected)

	count, err := repo.Available(ctx, redMedium)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestReserveInsideTransactionRollsBack(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()
	blue := Variant{ItemID: 5, ColorOption: "Blue", SizeOption: "M"}
	seedVariant(t, db, redMedium, 3)
	seedVariant(t, db, blue, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		ledger := repo.WithTx(tx)
		if err := ledger.Reserve(ctx, redMedium, 3); err != nil {
			return err
		}
		return ledger.Reserve(ctx, blue, 1)
	})
	require.True(t, IsInsufficientStock(err))

	count, err := repo.Available(ctx, redMedium)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "first reservation must roll back with the second")
}

func TestReleaseRestoresCount(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()
	seedVariant(t, db, redMedium, 1)

	require.NoError(t, repo.Release(ctx, redMedium, 2))
	count, err := repo.Available(ctx, redMedium)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	err = repo.Release(ctx, Variant{ItemID: 99, ColorOption: "Red", SizeOption: "M"}, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestFindReturnsOnlyRequestedVariants(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()
	small := Variant{ItemID: 5, ColorOption: "Red", SizeOption: "S"}
	seedVariant(t, db, redMedium, 4)
	seedVariant(t, db, small, 7)

	missingVariant := Variant{ItemID: 6, ColorOption: "Black", SizeOption: "L"}
	found, err := repo.Find(ctx, []Variant{redMedium, missingVariant})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 4, found[redMedium].Count)
	_, ok := found[missingVariant]
	assert.False(t, ok)
}

func TestSeedAndSetCount(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, []models.StockRecord{
		{ItemID: 7, ColorOption: "Black", SizeOption: "S", Count: 2},
		{ItemID: 7, ColorOption: "Black", SizeOption: "M", Count: 0},
	}))
	err := repo.Seed(ctx, []models.StockRecord{{ItemID: 7, ColorOption: "Black", SizeOption: "S", Count: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	v := Variant{ItemID: 7, ColorOption: "Black", SizeOption: "M"}
	rec, err := repo.SetCount(ctx, v, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, rec.Count)

	_, err = repo.SetCount(ctx, v, -1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rows, err := repo.ListByItems(ctx, []int64{7})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "M", rows[0].SizeOption)
	assert.Equal(t, 9, rows[0].Count)
}
