// Package testutil opens throwaway sqlite databases carrying the same tables,
// keys and CHECK constraints as the postgres migrations.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE addresses (
		user_id TEXT PRIMARY KEY,
		house TEXT NOT NULL,
		area TEXT NOT NULL,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		zipcode TEXT NOT NULL,
		updated_at DATETIME
	)`,
	`CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL CHECK (price > 0),
		color_options TEXT NOT NULL,
		size_options TEXT NOT NULL,
		deleted BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE stock_records (
		item_id INTEGER NOT NULL,
		color_option TEXT NOT NULL,
		size_option TEXT NOT NULL,
		count INTEGER NOT NULL CONSTRAINT stock_records_count_non_negative CHECK (count >= 0),
		PRIMARY KEY (item_id, color_option, size_option)
	)`,
	`CREATE TABLE cart_entries (
		user_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		color_option TEXT NOT NULL,
		size_option TEXT NOT NULL,
		price NUMERIC NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_token TEXT NOT NULL UNIQUE,
		gateway_order_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		address TEXT NOT NULL,
		total_amount NUMERIC NOT NULL,
		order_status TEXT NOT NULL CHECK (order_status IN ('unconfirmed', 'confirmed', 'cancelled_by_user', 'cancelled_insufficient_stock')),
		payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'received', 'refund_initiated', 'refunded', 'refund_failed', 'timeout')),
		shipping_status TEXT NOT NULL CHECK (shipping_status IN ('not_shipped', 'processing', 'shipping', 'delivered', 'cancelled')),
		tracking_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		item_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		color_option TEXT NOT NULL,
		size_option TEXT NOT NULL,
		price NUMERIC NOT NULL
	)`,
	`CREATE TABLE additional_charges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		charge_type TEXT NOT NULL,
		amount NUMERIC NOT NULL
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// OpenSQLite returns a fresh in-memory database with the full store schema.
// Connections are capped at one so concurrent tests serialize on the driver
// instead of failing with table locks.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:merch_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
