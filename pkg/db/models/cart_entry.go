package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartEntry is one item in a user's cart. A user holds at most one entry per item.
type CartEntry struct {
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	ItemID      int64           `gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Quantity    int             `gorm:"column:quantity;not null"`
	ColorOption string          `gorm:"column:color_option;not null"`
	SizeOption  string          `gorm:"column:size_option;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Item        *Item           `gorm:"foreignKey:ItemID;references:ID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal returns price x quantity.
func (c CartEntry) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
