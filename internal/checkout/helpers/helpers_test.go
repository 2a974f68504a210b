package helpers

import (
	"testing"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

func checkoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		Currency:              "INR",
		DeliveryCharge:        decimal.RequireFromString("50"),
		FreeDeliveryThreshold: decimal.RequireFromString("500"),
		GatewayFeePercent:     decimal.RequireFromString("2"),
		TransferFeePercent:    decimal.RequireFromString("0.25"),
		TaxPercent:            decimal.RequireFromString("18"),
	}
}

func TestTransferAmount(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"548", "533.49"},
		{"1000", "973.52"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got := TransferAmount(decimal.RequireFromString(tc.amount), checkoutConfig())
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("TransferAmount(%s) = %s, want %s", tc.amount, got, tc.want)
		}
	}
}

func TestComputeTotalsAddsDeliveryAtThreshold(t *testing.T) {
	item := &models.Item{ID: 1, Price: decimal.RequireFromString("250")}
	entries := []models.CartEntry{
		{ItemID: 1, Quantity: 2, ColorOption: "Black", SizeOption: "M", Price: decimal.RequireFromString("200"), Item: item},
	}

	totals := ComputeTotals(entries, checkoutConfig())
	if !totals.ItemsAmount.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("items amount should use the catalog price, got %s", totals.ItemsAmount)
	}
	if len(totals.Charges) != 1 || totals.Charges[0].ChargeType != enums.ChargeTypeDelivery {
		t.Fatalf("expected a delivery charge, got %#v", totals.Charges)
	}
	if !totals.Total.Equal(decimal.RequireFromString("550")) {
		t.Fatalf("unexpected total %s", totals.Total)
	}
	if !totals.Lines[0].Price.Equal(item.Price) {
		t.Fatalf("line price should snapshot the item price")
	}
}

func TestComputeTotalsFreeDeliveryAboveThreshold(t *testing.T) {
	entries := []models.CartEntry{
		{ItemID: 1, Quantity: 1, Item: &models.Item{ID: 1, Price: decimal.RequireFromString("500.01")}},
	}
	totals := ComputeTotals(entries, checkoutConfig())
	if len(totals.Charges) != 0 {
		t.Fatalf("expected no charges, got %#v", totals.Charges)
	}
	if !totals.Total.Equal(totals.ItemsAmount) {
		t.Fatalf("total should equal the items amount")
	}
}

func TestValidateCartItems(t *testing.T) {
	if err := ValidateCartItems(nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected empty cart validation error, got %v", err)
	}

	entries := []models.CartEntry{
		{ItemID: 1, Item: &models.Item{ID: 1, Name: "Tee"}},
		{ItemID: 2, Item: &models.Item{ID: 2, Name: "Cap", Deleted: true}},
	}
	err := ValidateCartItems(entries)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatal("expected deleted item error")
	}
	want := "Item Cap was deleted after you added to cart. Please remove it from cart and try again"
	if typed.Message() != want {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestValidateStockUsesRecords(t *testing.T) {
	entries := []models.CartEntry{{ItemID: 4, Quantity: 2, ColorOption: "Red", SizeOption: "L"}}
	records := map[stock.Variant]models.StockRecord{
		{ItemID: 4, ColorOption: "Red", SizeOption: "L"}: {ItemID: 4, ColorOption: "Red", SizeOption: "L", Count: 1},
	}
	if err := ValidateStock(entries, records); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected shortfall, got %v", err)
	}
	records[stock.Variant{ItemID: 4, ColorOption: "Red", SizeOption: "L"}] = models.StockRecord{Count: 2}
	if err := ValidateStock(entries, records); err != nil {
		t.Fatalf("expected stock to cover the line, got %v", err)
	}
}
