package models

// StockRecord is the available count of one (item, color, size) variant.
// The table carries CHECK (count >= 0).
type StockRecord struct {
	ItemID      int64  `gorm:"column:item_id;primaryKey;autoIncrement:false"`
	ColorOption string `gorm:"column:color_option;primaryKey"`
	SizeOption  string `gorm:"column:size_option;primaryKey"`
	Count       int    `gorm:"column:count;not null"`
}

// StockCountConstraint names the non-negative CHECK on stock_records.count.
const StockCountConstraint = "stock_records_count_non_negative"
