package query

import (
	"context"
	"fmt"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	"github.com/exclusivemerch/store-backend/pkg/bigquery"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"google.golang.org/api/iterator"
)

const maxRange = 366 * 24 * time.Hour

const (
	timeSeriesOrdersSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at, 'Asia/Kolkata')) AS day,
  COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type = 'order_confirmed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	timeSeriesRevenueSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at, 'Asia/Kolkata')) AS day,
  SUM(total_paise) AS value
FROM %s
WHERE event_type = 'order_confirmed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	timeSeriesRefundsSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at, 'Asia/Kolkata')) AS day,
  SUM(COALESCE(refund_paise, 0)) AS value
FROM %s
WHERE event_type = 'refund_completed'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topItemsSQL = `
SELECT label, SUM(value) AS value FROM (
  SELECT
    JSON_VALUE(item, '$.item_id') AS label,
    SAFE_CAST(JSON_VALUE(item, '$.quantity') AS INT64) AS value
  FROM %s,
  UNNEST(JSON_EXTRACT_ARRAY(items)) AS item
  WHERE items IS NOT NULL
    AND event_type = 'order_confirmed'
    AND occurred_at BETWEEN @start AND @end
)
WHERE label IS NOT NULL
GROUP BY label
ORDER BY value DESC
LIMIT 5
`

	totalsSQL = `
SELECT
  SAFE_DIVIDE(SUM(IF(event_type = 'order_confirmed', total_paise, 0)),
    NULLIF(COUNT(DISTINCT IF(event_type = 'order_confirmed', order_id, NULL)), 0)) AS aov,
  COUNTIF(event_type = 'order_expired') AS expired_orders,
  COUNTIF(event_type = 'refund_initiated') AS stock_cancelled,
  COUNT(DISTINCT IF(event_type = 'order_confirmed', user_id, NULL)) AS distinct_buyers
FROM %s
WHERE occurred_at BETWEEN @start AND @end
`
)

// SalesService provides the admin sales report from BigQuery order_events.
type SalesService interface {
	Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error)
}

type querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

type salesService struct {
	client   querier
	tableRef string
}

// NewSalesService builds a service backed by BigQuery.
func NewSalesService(client *bigquery.Client, table string) (SalesService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	ref, err := client.TableRef(table)
	if err != nil {
		return nil, err
	}
	return &salesService{client: client, tableRef: ref}, nil
}

func (s *salesService) Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	params := baseParams(req)

	orders, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesOrdersSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	revenue, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesRevenueSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	refunds, err := s.querySeries(ctx, fmt.Sprintf(timeSeriesRefundsSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	topItems, err := s.queryTopLabels(ctx, fmt.Sprintf(topItemsSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	resp := &types.SalesQueryResponse{
		OrdersSeries:  orders,
		RevenueSeries: revenue,
		RefundsSeries: refunds,
		TopItems:      topItems,
	}
	if err := s.queryTotals(ctx, fmt.Sprintf(totalsSQL, s.tableRef), params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidateRequest checks the report window.
func ValidateRequest(req types.SalesQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	if req.End.Sub(req.Start) > maxRange {
		return pkgerrors.New(pkgerrors.CodeValidation, "range must not exceed one year")
	}
	return nil
}

func baseParams(req types.SalesQueryRequest) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start.UTC()},
		{Name: "end", Value: req.End.UTC()},
	}
}

func (s *salesService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	points := []types.TimeSeriesPoint{}
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *salesService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	result := []types.LabelValue{}
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *salesService) queryTotals(ctx context.Context, sql string, params []cloudbigquery.QueryParameter, resp *types.SalesQueryResponse) error {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("query totals: %w", err)
	}
	var row struct {
		AOV            cloudbigquery.NullFloat64 `bigquery:"aov"`
		ExpiredOrders  int64                     `bigquery:"expired_orders"`
		StockCancelled int64                     `bigquery:"stock_cancelled"`
		DistinctBuyers int64                     `bigquery:"distinct_buyers"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return nil
		}
		return fmt.Errorf("reading totals row: %w", err)
	}
	if row.AOV.Valid {
		resp.AOV = row.AOV.Float64
	}
	resp.ExpiredOrders = row.ExpiredOrders
	resp.StockCancelled = row.StockCancelled
	resp.DistinctBuyers = row.DistinctBuyers
	return nil
}
