package stock

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
)

// Variant identifies one stock record.
type Variant struct {
	ItemID      int64  `json:"item_id"`
	ColorOption string `json:"color_option"`
	SizeOption  string `json:"size_option"`
}

func (v Variant) String() string {
	return fmt.Sprintf("%d/%s/%s", v.ItemID, v.ColorOption, v.SizeOption)
}

// VariantOf returns the key of a stock record.
func VariantOf(rec models.StockRecord) Variant {
	return Variant{ItemID: rec.ItemID, ColorOption: rec.ColorOption, SizeOption: rec.SizeOption}
}

// LineVariant returns the variant an order line was bought in.
func LineVariant(line models.OrderLine) Variant {
	return Variant{ItemID: line.ItemID, ColorOption: line.ColorOption, SizeOption: line.SizeOption}
}

// Compare orders variants by item, color then size.
func (v Variant) Compare(o Variant) int {
	return cmp.Or(
		cmp.Compare(v.ItemID, o.ItemID),
		cmp.Compare(v.ColorOption, o.ColorOption),
		cmp.Compare(v.SizeOption, o.SizeOption),
	)
}

// LockOrder returns a copy of lines sorted by variant. Row locks taken while
// walking the result are always acquired in the same order across orders.
func LockOrder(lines []models.OrderLine) []models.OrderLine {
	sorted := slices.Clone(lines)
	slices.SortStableFunc(sorted, func(a, b models.OrderLine) int {
		return LineVariant(a).Compare(LineVariant(b))
	})
	return sorted
}

// Shortfall describes a variant that cannot cover a requested quantity.
type Shortfall struct {
	Variant   Variant `json:"variant"`
	Requested int     `json:"requested"`
	Available int     `json:"available"`
}
