package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/exclusivemerch/store-backend/internal/analytics/types"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config controls the analytics writer. BatchSize above 1 trades durability
// for fewer streaming inserts: buffered rows belong to messages that were
// already acked, so only raise it where a lost row is acceptable.
type Config struct {
	OrderEventsTable string
	BatchSize        int
	RetryPolicy      RetryPolicy
}

// RetryPolicy bounds retries of transient BigQuery failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// TableInserter is the slice of the BigQuery client the writer needs.
type TableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter streams order_events rows. It is safe for concurrent use by
// the subscription's receive goroutines.
type BigQueryWriter struct {
	client    TableInserter
	table     string
	batchSize int
	retry     RetryPolicy

	mu     sync.Mutex
	buffer []types.OrderEventRow
}

func New(client TableInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.OrderEventsTable)
	if table == "" {
		return nil, errors.New("order events table is required")
	}
	return &BigQueryWriter{
		client:    client,
		table:     table,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertOrderEvent queues row and writes the batch once it is full.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes whatever is buffered. Rows stay buffered when the insert fails.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.buffer))
	for i := range w.buffer {
		rows[i] = &w.buffer[i]
	}
	if err := w.insert(ctx, rows); err != nil {
		return err
	}
	w.buffer = w.buffer[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, rows []any) error {
	wait := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s (attempt %d): %w", len(rows), w.table, attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, w.retry.MaximumBackoff)
	}
}

var (
	retryableHTTP = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	retryableGRPC = []codes.Code{
		codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable,
	}
)

// retryable reports whether err is worth another attempt. Row level errors
// are retryable only when every row failed for a transient reason; a single
// schema rejection makes the whole insert permanent.
func retryable(err error) bool {
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return len(rowErrs) > 0 && !slices.ContainsFunc(rowErrs, func(r cbigquery.RowInsertionError) bool {
			return !retryable(r.Errors)
		})
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return len(multi) > 0 && !slices.ContainsFunc(multi, func(e error) bool { return !retryable(e) })
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return slices.Contains(retryableHTTP, apiErr.Code)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return slices.Contains(retryableGRPC, st.Code())
	}
	return false
}

// EncodeJSON prepares payload for a BigQuery JSON column. nil and empty raw
// messages become NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return v, nil
	case json.RawMessage:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
