package cart

import (
	"net/http"

	"github.com/exclusivemerch/store-backend/api/middleware"
	"github.com/exclusivemerch/store-backend/api/responses"
	"github.com/exclusivemerch/store-backend/api/validators"
	cartsvc "github.com/exclusivemerch/store-backend/internal/cart"
	"github.com/exclusivemerch/store-backend/internal/checkout"
	"github.com/exclusivemerch/store-backend/internal/orders"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/razorpay"
)

// CheckoutResponse carries what the storefront needs to open the payment sheet.
type CheckoutResponse struct {
	Order          orders.OrderDTO `json:"order"`
	GatewayOrderID string          `json:"gateway_order_id"`
	GatewayKeyID   string          `json:"gateway_key_id"`
	AmountPaise    int64           `json:"amount_paise"`
	Currency       string          `json:"currency"`
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
}

// CartFetch lists the caller's cart with a warning about unpaid orders.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		userID, err := middleware.UserUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartUpsert adds an item variant or replaces its quantity.
func CartUpsert(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		userID, err := middleware.UserUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartsvc.AddItemInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.AddOrUpdate(r.Context(), userID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		userID, err := middleware.UserUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathInt64(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), userID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CartEmpty(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg)
			return
		}
		userID, err := middleware.UserUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Empty(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CartCheckout turns the cart into an unconfirmed order with a gateway order attached.
func CartCheckout(svc checkout.Service, gatewayKeyID, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.UserUUID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Checkout(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, CheckoutResponse{
			Order:          orders.FromModel(*order),
			GatewayOrderID: order.GatewayOrderID,
			GatewayKeyID:   gatewayKeyID,
			AmountPaise:    razorpay.ToPaise(order.TotalAmount),
			Currency:       currency,
		})
	}
}
