package catalog

import (
	"time"

	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// ItemDTO is the public catalog shape.
type ItemDTO struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ColorOptions []string        `json:"color_options"`
	SizeOptions  []string        `json:"size_options"`
	Stock        []StockDTO      `json:"stock"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StockDTO reports the available count of one variant.
type StockDTO struct {
	ColorOption string `json:"color_option"`
	SizeOption  string `json:"size_option"`
	Count       int    `json:"count"`
}

// CreateItemInput is the admin payload for a new catalog item.
type CreateItemInput struct {
	Name         string            `json:"name" validate:"required,max=200"`
	Description  string            `json:"description" validate:"required"`
	Price        decimal.Decimal   `json:"price"`
	ColorOptions []string          `json:"color_options" validate:"required,min=1,unique,dive,required"`
	SizeOptions  []string          `json:"size_options" validate:"required,min=1,unique,dive,oneof=S M L XL XXL"`
	Stock        []StockCountInput `json:"stock" validate:"required,dive"`
}

// StockCountInput declares the count of one variant.
type StockCountInput struct {
	ColorOption string `json:"color_option" validate:"required"`
	SizeOption  string `json:"size_option" validate:"required"`
	Count       int    `json:"count" validate:"gte=0"`
}

// SetStockInput corrects the count of one existing variant.
type SetStockInput struct {
	ColorOption string `json:"color_option" validate:"required"`
	SizeOption  string `json:"size_option" validate:"required"`
	Count       *int   `json:"count" validate:"required,gte=0"`
}

func toItemDTO(item models.Item, records []models.StockRecord) ItemDTO {
	stock := make([]StockDTO, 0, len(records))
	for _, rec := range records {
		stock = append(stock, StockDTO{
			ColorOption: rec.ColorOption,
			SizeOption:  rec.SizeOption,
			Count:       rec.Count,
		})
	}
	return ItemDTO{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Price:        item.Price,
		ColorOptions: append([]string{}, item.ColorOptions...),
		SizeOptions:  append([]string{}, item.SizeOptions...),
		Stock:        stock,
		CreatedAt:    item.CreatedAt,
	}
}
