package bigquery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/exclusivemerch/store-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		gcp  config.GCPConfig
		cfg  config.BigQueryConfig
		want error
	}{
		{config.GCPConfig{}, config.BigQueryConfig{Dataset: "merch", OrderEventsTable: "order_events"}, errProjectRequired},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: " ", OrderEventsTable: "order_events"}, errDatasetRequired},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "merch", OrderEventsTable: "  "}, errTableRequired},
	}
	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.gcp, tc.cfg, nil); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("unexpected ping error %v", err)
	}
	if _, err := c.TableRef("order_events"); !errors.Is(err, errNotInitialized) {
		t.Fatalf("unexpected table ref error %v", err)
	}
	if err := c.InsertRows(context.Background(), "order_events", []any{1}); !errors.Is(err, errNotInitialized) {
		t.Fatalf("unexpected insert error %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func TestTableRef(t *testing.T) {
	c := &Client{dataset: &bigquery.Dataset{ProjectID: "merch-prod", DatasetID: "merch"}}
	ref, err := c.TableRef(" order_events ")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if ref != "`merch-prod.merch.order_events`" {
		t.Fatalf("unexpected ref %s", ref)
	}
	if _, err := c.TableRef(""); !errors.Is(err, errTableRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestDescribeNotFound(t *testing.T) {
	err := describe(&googleapi.Error{Code: http.StatusNotFound}, "table", "order_events")
	if err.Error() != `table "order_events" does not exist` {
		t.Fatalf("unexpected message %q", err)
	}
	other := describe(&googleapi.Error{Code: http.StatusForbidden}, "dataset", "merch")
	if !strings.HasPrefix(other.Error(), `checking dataset "merch"`) {
		t.Fatalf("unexpected message %q", other)
	}
}

func TestCredentialsPreferInlineJSON(t *testing.T) {
	if opts := credentials(config.GCPConfig{CredentialsJSON: `{"type":"x"}`, ApplicationCredentials: "/tmp/creds"}); len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
	if opts := credentials(config.GCPConfig{ApplicationCredentials: "/tmp/creds"}); len(opts) != 1 {
		t.Fatalf("expected file option, got %d", len(opts))
	}
	if opts := credentials(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
}
