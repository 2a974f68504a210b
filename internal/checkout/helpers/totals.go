package helpers

import (
	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OrderTotals is the priced form of a cart.
type OrderTotals struct {
	Lines       []models.OrderLine
	Charges     []models.AdditionalCharge
	ItemsAmount decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals prices every line at the item's current catalog price and
// adds the delivery charge when the items amount does not exceed the
// free-delivery threshold.
func ComputeTotals(entries []models.CartEntry, cfg config.CheckoutConfig) OrderTotals {
	totals := OrderTotals{ItemsAmount: decimal.Zero}
	for _, entry := range entries {
		price := entry.Price
		if entry.Item != nil {
			price = entry.Item.Price
		}
		line := models.OrderLine{
			ItemID:      entry.ItemID,
			Quantity:    entry.Quantity,
			ColorOption: entry.ColorOption,
			SizeOption:  entry.SizeOption,
			Price:       price,
		}
		totals.Lines = append(totals.Lines, line)
		totals.ItemsAmount = totals.ItemsAmount.Add(line.LineTotal())
	}

	totals.Total = totals.ItemsAmount
	if totals.ItemsAmount.IsPositive() && totals.ItemsAmount.LessThanOrEqual(cfg.FreeDeliveryThreshold) {
		totals.Charges = append(totals.Charges, models.AdditionalCharge{
			ChargeType: enums.ChargeTypeDelivery,
			Amount:     cfg.DeliveryCharge,
		})
		totals.Total = totals.Total.Add(cfg.DeliveryCharge)
	}
	return totals
}

// TransferAmount returns what reaches the linked account after the gateway fee
// and the transfer fee, each carrying tax, are deducted.
func TransferAmount(amount decimal.Decimal, cfg config.CheckoutConfig) decimal.Decimal {
	amount = amount.Round(2)
	tax := decimal.NewFromInt(1).Add(cfg.TaxPercent.Div(hundred))

	gatewayFee := amount.Mul(cfg.GatewayFeePercent.Div(hundred)).Mul(tax).Round(2)
	remainder := amount.Sub(gatewayFee)
	transferFee := remainder.Mul(cfg.TransferFeePercent.Div(hundred)).Mul(tax).Round(2)

	return amount.Sub(gatewayFee.Add(transferFee))
}
