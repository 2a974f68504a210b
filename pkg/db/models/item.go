package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Item is a catalog entry. Deleted items stay in the table so old orders keep resolving.
type Item struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string          `gorm:"column:name;not null"`
	Description  string          `gorm:"column:description;not null;default:''"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ColorOptions pq.StringArray  `gorm:"column:color_options;type:text[];not null"`
	SizeOptions  pq.StringArray  `gorm:"column:size_options;type:text[];not null"`
	Deleted      bool            `gorm:"column:deleted;not null;default:false"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasColor reports whether color is one of the declared options.
func (i Item) HasColor(color string) bool {
	return contains(i.ColorOptions, color)
}

// HasSize reports whether size is one of the declared options.
func (i Item) HasSize(size string) bool {
	return contains(i.SizeOptions, size)
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
