package stock

import (
	"testing"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
)

func TestLockOrderSortsByVariant(t *testing.T) {
	lines := []models.OrderLine{
		{ItemID: 7, ColorOption: "Black", SizeOption: "S", Quantity: 1},
		{ItemID: 5, ColorOption: "Red", SizeOption: "M", Quantity: 2},
		{ItemID: 5, ColorOption: "Blue", SizeOption: "XL", Quantity: 1},
		{ItemID: 5, ColorOption: "Red", SizeOption: "L", Quantity: 3},
	}
	want := []Variant{
		{ItemID: 5, ColorOption: "Blue", SizeOption: "XL"},
		{ItemID: 5, ColorOption: "Red", SizeOption: "L"},
		{ItemID: 5, ColorOption: "Red", SizeOption: "M"},
		{ItemID: 7, ColorOption: "Black", SizeOption: "S"},
	}

	got := LockOrder(lines)
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i, line := range got {
		if LineVariant(line) != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], LineVariant(line))
		}
	}
	if got[2].Quantity != 2 {
		t.Fatalf("line payload must travel with its variant, got quantity %d", got[2].Quantity)
	}
	if lines[0].ItemID != 7 {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestLockOrderIsSymmetric(t *testing.T) {
	a := []models.OrderLine{{ItemID: 1, ColorOption: "Black", SizeOption: "M"}, {ItemID: 1, ColorOption: "Black", SizeOption: "L"}}
	b := []models.OrderLine{a[1], a[0]}
	x, y := LockOrder(a), LockOrder(b)
	for i := range x {
		if LineVariant(x[i]) != LineVariant(y[i]) {
			t.Fatalf("orders holding the same variants must lock in the same sequence")
		}
	}
}
