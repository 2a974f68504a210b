package helpers

import (
	"fmt"

	"github.com/exclusivemerch/store-backend/internal/stock"
	"github.com/exclusivemerch/store-backend/pkg/checkout"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
)

// ValidateCartItems rejects carts holding items removed from the catalog
// after they were added.
func ValidateCartItems(entries []models.CartEntry) error {
	if len(entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}
	for _, entry := range entries {
		if entry.Item == nil || entry.Item.Deleted {
			name := fmt.Sprintf("%d", entry.ItemID)
			if entry.Item != nil {
				name = entry.Item.Name
			}
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"Item %s was deleted after you added to cart. Please remove it from cart and try again", name)
		}
	}
	return nil
}

// CartVariants returns the stock keys of the cart lines.
func CartVariants(entries []models.CartEntry) []stock.Variant {
	out := make([]stock.Variant, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryVariant(entry))
	}
	return out
}

// ValidateStock compares each cart line with the stock records read for it.
func ValidateStock(entries []models.CartEntry, records map[stock.Variant]models.StockRecord) error {
	checks := make([]checkout.StockCheckInput, 0, len(entries))
	for _, entry := range entries {
		rec, ok := records[entryVariant(entry)]
		checks = append(checks, checkout.StockCheckInput{
			ItemID:      entry.ItemID,
			ColorOption: entry.ColorOption,
			SizeOption:  entry.SizeOption,
			Requested:   entry.Quantity,
			Available:   rec.Count,
			Found:       ok,
		})
	}
	return checkout.ValidateStock(checks)
}

func entryVariant(entry models.CartEntry) stock.Variant {
	return stock.Variant{ItemID: entry.ItemID, ColorOption: entry.ColorOption, SizeOption: entry.SizeOption}
}
