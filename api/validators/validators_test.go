package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/exclusivemerch/store-backend/pkg/errors"
)

type shippingBody struct {
	ShippingStatus string `json:"shipping_status" validate:"required,oneof=processing shipping"`
	Quantity       int    `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"shipping_status":"lost","quantity":0}`))
	var body shippingBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %#v", pkgerrors.As(err).Details())
	}
	if details["shipping_status"] != "must be one of [processing shipping]" {
		t.Fatalf("unexpected shipping_status message %q", details["shipping_status"])
	}
	if details["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected quantity message %q", details["quantity"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"shipping_status":"shipping","quantity":1,"extra":true}`))
	var body shippingBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type cartBody struct {
	Zipcode string     `json:"zipcode" validate:"required,zipcode"`
	Note    string     `json:"note" validate:"omitempty,notblank"`
	Lines   []lineBody `json:"lines" validate:"required,min=1,dive"`
}

type lineBody struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBodyReportsNestedPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"zipcode":"12ab56","note":"   ","lines":[{"quantity":2},{"quantity":0}]}`))
	var body cartBody
	err := DecodeJSONBody(req, &body)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %v", err)
	}
	if details["zipcode"] != "must be 6 digits" {
		t.Fatalf("unexpected zipcode message %q", details["zipcode"])
	}
	if details["lines[1].quantity"] != "must be at least 1" {
		t.Fatalf("expected nested path for line quantity, got %#v", details)
	}
	if details["note"] != "is required" {
		t.Fatalf("expected blank note to be rejected, got %#v", details)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":     ``,
		"trailing":  `{"shipping_status":"shipping","quantity":1}{"quantity":2}`,
		"syntax":    `{"shipping_status":`,
		"type":      `{"shipping_status":"shipping","quantity":"two"}`,
		"too large": `{"shipping_status":"` + strings.Repeat("x", maxBodyBytes) + `"}`,
	}
	for name, raw := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body shippingBody
		if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestParsePathInt64(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemID", "42")
	got, err := ParsePathInt64(req, "itemID")
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d (%v)", got, err)
	}

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "itemID", raw)
		if _, err := ParsePathInt64(req, "itemID"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%q: expected validation error, got %v", raw, err)
		}
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || got != 25 {
		t.Fatalf("expected default 25, got %d (%v)", got, err)
	}
}

func TestParseQueryTime(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-01-02T03:04:05%2B05:30&bad=yesterday", nil)
	got, ok, err := ParseQueryTime(req, "from")
	if err != nil || !ok {
		t.Fatalf("expected timestamp, got ok=%v err=%v", ok, err)
	}
	if got.Location() != time.UTC || got.Hour() != 21 {
		t.Fatalf("expected UTC normalised time, got %v", got)
	}
	if _, ok, err := ParseQueryTime(req, "to"); ok || err != nil {
		t.Fatalf("missing key should be absent, got ok=%v err=%v", ok, err)
	}
	if _, _, err := ParseQueryTime(req, "bad"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSanitizeStringCapsRunes(t *testing.T) {
	if got := SanitizeString("  ñandú\x00 tee  ", 5); got != "ñandú" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
