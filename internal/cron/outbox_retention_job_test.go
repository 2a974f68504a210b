package cron

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/exclusivemerch/store-backend/internal/testutil"
	"github.com/exclusivemerch/store-backend/pkg/db/models"
	"github.com/exclusivemerch/store-backend/pkg/enums"
	"github.com/exclusivemerch/store-backend/pkg/logger"
	"github.com/exclusivemerch/store-backend/pkg/outbox"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestOutboxRetentionJobDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := testutil.OpenSQLite(t)
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, PublishedAt: &old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: recent, PublishedAt: &recent},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old},
	}
	if err := conn.Create(&rows).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: outbox.NewRepository(conn),
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
	var remaining int64
	conn.Model(&models.OutboxEvent{}).Count(&remaining)
	if remaining != 2 {
		t.Fatalf("expected 2 remaining rows, got %d", remaining)
	}
}

type failingRetentionRepo struct{}

func (failingRetentionRepo) DeletePublishedBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger(), Repository: failingRetentionRepo{}})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
