package analytics

import (
	"net/http"

	"github.com/exclusivemerch/store-backend/api/responses"
	internalanalytics "github.com/exclusivemerch/store-backend/internal/analytics"
	"github.com/exclusivemerch/store-backend/internal/analytics/query"
	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// AdminSales returns the sales report built from the order event table.
func AdminSales(svc internalanalytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "analytics unavailable"))
			return
		}

		start, end, err := resolveSalesRange(r, timeNowUTC())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		req := types.SalesQueryRequest{Start: start, End: end}
		if err := query.ValidateRequest(req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp, err := svc.Sales(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
