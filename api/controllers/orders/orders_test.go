package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/exclusivemerch/store-backend/api/middleware"
	internalorders "github.com/exclusivemerch/store-backend/internal/orders"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/exclusivemerch/store-backend/pkg/pagination"
)

type stubOrders struct {
	owner    uuid.UUID
	params   pagination.Params
	shipping *internalorders.UpdateShippingInput
}

func (s *stubOrders) List(context.Context, uuid.UUID) ([]internalorders.OrderDTO, error) {
	return []internalorders.OrderDTO{{OrderToken: "exc_1"}}, nil
}

func (s *stubOrders) Get(_ context.Context, userID uuid.UUID, token string) (*internalorders.DetailDTO, error) {
	if userID != s.owner {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &internalorders.DetailDTO{Order: internalorders.OrderDTO{OrderToken: token}, GatewayUnavailable: true}, nil
}

func (s *stubOrders) Cancel(_ context.Context, _ uuid.UUID, token string) (*internalorders.OrderDTO, error) {
	if token == "exc_paid" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").WithDetails(internalorders.StateConflictDetails{
			OrderStatus:    enums.OrderStatusConfirmed,
			PaymentStatus:  enums.PaymentStatusReceived,
			ShippingStatus: enums.ShippingStatusNotShipped,
		})
	}
	return &internalorders.OrderDTO{OrderToken: token, OrderStatus: enums.OrderStatusCancelledByUser}, nil
}

func (s *stubOrders) Invoice(_ context.Context, _ uuid.UUID, token string) ([]byte, error) {
	return []byte("%PDF-" + token), nil
}

func (s *stubOrders) ListConfirmed(_ context.Context, params pagination.Params) (*internalorders.ConfirmedOrderList, error) {
	s.params = params
	return &internalorders.ConfirmedOrderList{}, nil
}

func (s *stubOrders) UpdateShipping(_ context.Context, token string, in internalorders.UpdateShippingInput) (*internalorders.OrderDTO, error) {
	s.shipping = &in
	return &internalorders.OrderDTO{OrderToken: token, ShippingStatus: enums.ShippingStatus(in.ShippingStatus)}, nil
}

func newRouter(svc *stubOrders) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), svc.owner.String())))
		})
	})
	r.Get("/orders", List(svc, nil))
	r.Get("/orders/{orderToken}", Detail(svc, nil))
	r.Post("/orders/{orderToken}/cancel", Cancel(svc, nil))
	r.Get("/orders/{orderToken}/invoice", Invoice(svc, nil))
	r.Get("/admin/orders", AdminList(svc, nil))
	r.Patch("/admin/orders/{orderToken}/shipping", AdminUpdateShipping(svc, nil))
	return r
}

func TestDetailFlagsGatewayOutage(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders/exc_1", nil))

	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"gateway_unavailable":true`) {
		t.Fatalf("unexpected detail %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCancelConflictCarriesStatuses(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/orders/exc_paid/cancel", nil))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string                              `json:"code"`
			Details internalorders.StateConflictDetails `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeStateConflict) || body.Error.Details.PaymentStatus != enums.PaymentStatusReceived {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/orders/exc_2/cancel", nil))

	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), string(enums.OrderStatusCancelledByUser)) {
		t.Fatalf("unexpected cancel %d: %s", resp.Code, resp.Body.String())
	}
}

func TestInvoiceStreamsPDF(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders/exc_1/invoice", nil))

	if resp.Code != http.StatusOK || resp.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected invoice response %d %q", resp.Code, resp.Header().Get("Content-Type"))
	}
	if resp.Body.String() != "%PDF-exc_1" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestAdminListPagination(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/admin/orders?limit=10&cursor=abc", nil))
	if resp.Code != http.StatusOK || svc.params.Limit != 10 || svc.params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v (%d)", svc.params, resp.Code)
	}

	resp = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/admin/orders?limit=1000", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", resp.Code)
	}
}

func TestAdminUpdateShippingValidatesStatus(t *testing.T) {
	svc := &stubOrders{owner: uuid.New()}
	resp := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/admin/orders/exc_1/shipping", strings.NewReader(`{"shipping_status":"lost"}`)))
	if resp.Code != http.StatusBadRequest || svc.shipping != nil {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	newRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/admin/orders/exc_1/shipping", strings.NewReader(`{"shipping_status":"shipping","tracking_id":"AWB123"}`)))
	if resp.Code != http.StatusOK || svc.shipping == nil || *svc.shipping.TrackingID != "AWB123" {
		t.Fatalf("unexpected shipping update %d: %s", resp.Code, resp.Body.String())
	}
}
