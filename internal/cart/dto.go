package cart

import (
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// AddItemInput is the add-or-update payload.
type AddItemInput struct {
	ItemID      int64  `json:"item_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"required,gte=1"`
	ColorOption string `json:"color_option" validate:"required"`
	SizeOption  string `json:"size_option" validate:"required"`
}

// EntryDTO is one cart line joined with its item.
type EntryDTO struct {
	ItemID      int64           `json:"item_id"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	ColorOption string          `json:"color_option"`
	SizeOption  string          `json:"size_option"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Deleted     bool            `json:"item_deleted"`
}

// PendingOrderDTO summarizes an order still waiting for payment.
type PendingOrderDTO struct {
	OrderToken  string          `json:"order_token"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// View is the cart listing.
type View struct {
	Entries       []EntryDTO        `json:"entries"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	PendingOrders []PendingOrderDTO `json:"pending_orders"`
	Message       string            `json:"message"`
}

func toEntryDTO(entry models.CartEntry) EntryDTO {
	dto := EntryDTO{
		ItemID:      entry.ItemID,
		Quantity:    entry.Quantity,
		ColorOption: entry.ColorOption,
		SizeOption:  entry.SizeOption,
		Price:       entry.Price,
		LineTotal:   entry.LineTotal(),
	}
	if entry.Item != nil {
		dto.Name = entry.Item.Name
		dto.Deleted = entry.Item.Deleted
	}
	return dto
}
