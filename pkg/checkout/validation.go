package checkout

import (
	"fmt"

	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
)

// StockCheckInput pairs a requested cart line with the stock record found for it.
type StockCheckInput struct {
	ItemID      int64
	ColorOption string
	SizeOption  string
	Requested   int
	Available   int
	Found       bool
}

// StockShortfall is returned to callers when a line cannot be covered.
type StockShortfall struct {
	ItemID      int64  `json:"item_id"`
	ColorOption string `json:"color_option"`
	SizeOption  string `json:"size_option"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// ValidateStock checks every line against current stock without reserving
// anything. A missing stock record is a catalog inconsistency and reported as
// internal; the first shortfall is reported as a validation error.
func ValidateStock(lines []StockCheckInput) error {
	for _, line := range lines {
		if !line.Found {
			return pkgerrors.New(pkgerrors.CodeInternal, "Item Stock for this color and size not found")
		}
		if line.Requested > line.Available {
			msg := fmt.Sprintf("Not enough stock for itemId: %d. Requested: %d, Available: %d",
				line.ItemID, line.Requested, line.Available)
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(StockShortfall{
				ItemID:      line.ItemID,
				ColorOption: line.ColorOption,
				SizeOption:  line.SizeOption,
				Requested:   line.Requested,
				Available:   line.Available,
			})
		}
	}
	return nil
}
