package types

import "time"

// SalesQueryRequest bounds the admin sales report.
type SalesQueryRequest struct {
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue is a top-N entry such as an item id.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SalesQueryResponse holds the sales KPIs for the admin dashboard. Money values are paise.
type SalesQueryResponse struct {
	OrdersSeries   []TimeSeriesPoint `json:"orders"`
	RevenueSeries  []TimeSeriesPoint `json:"revenue"`
	RefundsSeries  []TimeSeriesPoint `json:"refunds"`
	TopItems       []LabelValue      `json:"top_items"`
	AOV            float64           `json:"aov"`
	ExpiredOrders  int64             `json:"expired_orders"`
	StockCancelled int64             `json:"stock_cancelled"`
	DistinctBuyers int64             `json:"distinct_buyers"`
}
