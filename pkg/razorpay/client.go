package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/config"
	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL              = "https://api.razorpay.com/v1"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

// RefundSpeedOptimum lets the gateway pick instant refunds where possible.
const RefundSpeedOptimum = "optimum"

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
)

// Gateway is the subset of the Razorpay API the store relies on.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error)
	Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error)
}

// Client talks to the Razorpay REST API with basic auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a gateway client from the key pair.
func NewClient(keyID, keySecret string, opts ...Option) (*Client, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	if strings.TrimSpace(keySecret) == "" {
		return nil, errKeySecretRequired
	}

	client := &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds the client from the Razorpay config section.
func NewFromConfig(cfg config.RazorpayConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return NewClient(cfg.KeyID, cfg.KeySecret,
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// Transfer routes part of an order amount to a linked account.
type Transfer struct {
	Account  string `json:"account"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateOrderRequest is the body of POST /orders. Amounts are in paise.
type CreateOrderRequest struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Transfers []Transfer        `json:"transfers,omitempty"`
	Notes     map[string]string `json:"notes,omitempty"`
}

// Order mirrors the gateway order entity.
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

// Payment mirrors the gateway payment entity.
type Payment struct {
	ID             string `json:"id"`
	Entity         string `json:"entity"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	OrderID        string `json:"order_id"`
	Method         string `json:"method"`
	AmountRefunded int64  `json:"amount_refunded"`
	RefundStatus   string `json:"refund_status"`
	Captured       bool   `json:"captured"`
	Email          string `json:"email"`
	ErrorCode      string `json:"error_code"`
	CreatedAt      int64  `json:"created_at"`
}

// RefundRequest is the body of POST /payments/{id}/refund.
type RefundRequest struct {
	Amount  int64             `json:"amount"`
	Speed   string            `json:"speed,omitempty"`
	Receipt string            `json:"receipt,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

// Refund mirrors the gateway refund entity.
type Refund struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// Notes are free-form key/value pairs. The gateway encodes an empty set as [].
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		*n = Notes{}
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// ToPaise converts a rupee amount into the smallest currency unit.
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromPaise converts the smallest currency unit back to rupees.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}

// CreateOrder registers a payable order with the gateway.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if strings.TrimSpace(req.Receipt) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order receipt is required")
	}
	var out Order
	if err := c.do(ctx, http.MethodPost, "orders", req, &out, "create order"); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOrder loads a gateway order by id.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	var out Order
	if err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(orderID), nil, &out, "fetch order"); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOrderPayments lists the payment attempts made against a gateway order.
func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	var out struct {
		Count int       `json:"count"`
		Items []Payment `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(orderID)+"/payments", nil, &out, "fetch order payments"); err != nil {
		return nil, err
	}
	if out.Items == nil {
		return []Payment{}, nil
	}
	return out.Items, nil
}

// Refund issues a refund against a captured payment.
func (c *Client) Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var out Refund
	if err := c.do(ctx, http.MethodPost, "payments/"+url.PathEscape(paymentID)+"/refund", req, &out, "refund payment"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, op string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "razorpay client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
