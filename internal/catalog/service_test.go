package catalog

import (
	"context"
	"testing"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/internal/testutil"
	"github.com/exclusivemerch/store-backend/pkg/db"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogService(t *testing.T) (Service, *stock.Repository) {
	t.Helper()
	conn := testutil.OpenSQLite(t)
	ledger := stock.NewRepository(conn)
	svc, err := NewService(NewRepository(conn), ledger, db.NewFromGorm(conn))
	require.NoError(t, err)
	return svc, ledger
}

func teeInput() CreateItemInput {
	return CreateItemInput{
		Name:         "Logo Tee",
		Description:  "Cotton tee",
		Price:        decimal.RequireFromString("499.00"),
		ColorOptions: []string{"Red", "Black"},
		SizeOptions:  []string{"m", "L"},
		Stock: []StockCountInput{
			{ColorOption: "Red", SizeOption: "M", Count: 2},
			{ColorOption: "Red", SizeOption: "L", Count: 0},
			{ColorOption: "Black", SizeOption: "M", Count: 5},
			{ColorOption: "Black", SizeOption: "L", Count: 1},
		},
	}
}

func TestCreateItemSeedsFullGrid(t *testing.T) {
	svc, ledger := newCatalogService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, teeInput())
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, []string{"M", "L"}, item.SizeOptions)

	count, err := ledger.Available(ctx, stock.Variant{ItemID: item.ID, ColorOption: "Black", SizeOption: "M"})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	loaded, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Stock, 4)
}

func TestCreateItemRejectsIncompleteGrid(t *testing.T) {
	svc, _ := newCatalogService(t)
	input := teeInput()
	input.Stock = input.Stock[:3]

	_, err := svc.CreateItem(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = teeInput()
	input.Stock[3] = StockCountInput{ColorOption: "Red", SizeOption: "M", Count: 1}
	_, err = svc.CreateItem(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "duplicate variant must be rejected")

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCreateItemValidatesSizesAndPrice(t *testing.T) {
	svc, _ := newCatalogService(t)

	input := teeInput()
	input.SizeOptions = []string{"M", "XXXL"}
	_, err := svc.CreateItem(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	input = teeInput()
	input.Price = decimal.Zero
	_, err = svc.CreateItem(context.Background(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteHidesItemFromCatalog(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, teeInput())
	require.NoError(t, err)
	require.NoError(t, svc.DeleteItem(ctx, item.ID))

	_, err = svc.GetItem(ctx, item.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.DeleteItem(ctx, 9999)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSetStockUpdatesDeclaredVariantOnly(t *testing.T) {
	svc, _ := newCatalogService(t)
	ctx := context.Background()
	item, err := svc.CreateItem(ctx, teeInput())
	require.NoError(t, err)

	count := 12
	rec, err := svc.SetStock(ctx, item.ID, SetStockInput{ColorOption: "Red", SizeOption: "l", Count: &count})
	require.NoError(t, err)
	assert.Equal(t, 12, rec.Count)
	assert.Equal(t, "L", rec.SizeOption)

	_, err = svc.SetStock(ctx, item.ID, SetStockInput{ColorOption: "Green", SizeOption: "L", Count: &count})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
