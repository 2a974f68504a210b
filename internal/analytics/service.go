package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/exclusivemerch/store-backend/internal/analytics/query"
	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	"github.com/exclusivemerch/store-backend/pkg/bigquery"
)

const defaultWindow = 30 * 24 * time.Hour

// Service provides the admin sales report based on order events.
type Service interface {
	// Sales returns sales KPIs for the window. A zero window defaults to the last 30 days.
	Sales(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error)
}

type service struct {
	sales query.SalesService
	now   func() time.Time
}

// NewService builds an analytics service backed by BigQuery.
func NewService(client *bigquery.Client, table string) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}

	sales, err := query.NewSalesService(client, table)
	if err != nil {
		return nil, err
	}

	return &service{sales: sales, now: time.Now}, nil
}

func (s *service) Sales(ctx context.Context, req types.SalesQueryRequest) (*types.SalesQueryResponse, error) {
	if req.End.IsZero() {
		req.End = s.now().UTC()
	}
	if req.Start.IsZero() {
		req.Start = req.End.Add(-defaultWindow)
	}
	return s.sales.Query(ctx, req)
}
