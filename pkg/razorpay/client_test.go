package razorpay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestCreateOrderSendsTransfersAndAuth(t *testing.T) {
	var captured map[string]any
	var capturedURL string
	var user, pass string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		user, pass, _ = req.BasicAuth()
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"id":"order_abc","entity":"order","amount":120000,"amount_due":120000,"currency":"INR","receipt":"exc_1","status":"created"}`), nil
	})

	client, err := NewClient("rzp_key", "rzp_secret", WithBaseURL("http://rzp.test/v1/"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Amount:    120000,
		Currency:  "INR",
		Receipt:   "exc_1",
		Transfers: []Transfer{{Account: "acc_1", Amount: 117115, Currency: "INR"}},
		Notes:     map[string]string{"order_token": "exc_1"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if capturedURL != "http://rzp.test/v1/orders" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if user != "rzp_key" || pass != "rzp_secret" {
		t.Fatalf("basic auth not sent")
	}
	if captured["receipt"] != "exc_1" || captured["amount"].(float64) != 120000 {
		t.Fatalf("unexpected payload %+v", captured)
	}
	transfers, ok := captured["transfers"].([]any)
	if !ok || len(transfers) != 1 {
		t.Fatalf("expected one transfer, got %+v", captured["transfers"])
	}
	if order.ID != "order_abc" || order.AmountDue != 120000 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderOmitsEmptyTransfers(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(req.Body)
		if strings.Contains(string(raw), "transfers") {
			t.Fatalf("transfers should be omitted: %s", raw)
		}
		return jsonResponse(http.StatusOK, `{"id":"order_x"}`), nil
	})
	client, _ := NewClient("k", "s", WithHTTPClient(&http.Client{Transport: rt}))
	if _, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR", Receipt: "exc_2"}); err != nil {
		t.Fatalf("create order: %v", err)
	}
}

func TestClientMapsGatewayFailuresToDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient("k", "s", WithBaseURL(srv.URL))
	_, err := client.FetchOrder(context.Background(), "order_1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestFetchOrderPaymentsAndRefund(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/order_1/payments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entity":"collection","count":1,"items":[{"id":"pay_1","amount":120000,"status":"captured","order_id":"order_1"}]}`))
	})
	mux.HandleFunc("/payments/pay_1/refund", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body RefundRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode refund body: %v", err)
		}
		if body.Amount != 120000 || body.Speed != RefundSpeedOptimum || body.Notes["reason"] != "stock ran out" {
			t.Errorf("unexpected refund body %+v", body)
		}
		_, _ = w.Write([]byte(`{"id":"rfnd_1","amount":120000,"payment_id":"pay_1","status":"pending"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := NewClient("k", "s", WithBaseURL(srv.URL))

	payments, err := client.FetchOrderPayments(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("fetch payments: %v", err)
	}
	if len(payments) != 1 || payments[0].ID != "pay_1" {
		t.Fatalf("unexpected payments %+v", payments)
	}

	refund, err := client.Refund(context.Background(), "pay_1", RefundRequest{
		Amount:  120000,
		Speed:   RefundSpeedOptimum,
		Receipt: "exc_1",
		Notes:   map[string]string{"reason": "stock ran out"},
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.ID != "rfnd_1" {
		t.Fatalf("unexpected refund %+v", refund)
	}
}

func TestNewClientRequiresKeys(t *testing.T) {
	if _, err := NewClient("", "s"); err == nil {
		t.Fatal("expected missing key id error")
	}
	if _, err := NewClient("k", " "); err == nil {
		t.Fatal("expected missing key secret error")
	}
}

func TestPaiseConversion(t *testing.T) {
	if got := ToPaise(decimal.RequireFromString("1171.15")); got != 117115 {
		t.Fatalf("expected 117115 paise, got %d", got)
	}
	if got := FromPaise(5050); !got.Equal(decimal.RequireFromString("50.50")) {
		t.Fatalf("expected 50.50, got %s", got)
	}
}
