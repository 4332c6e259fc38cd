package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Schema is created with raw DDL because the production models declare
// postgres defaults sqlite cannot parse.
const testSchema = `
CREATE TABLE cart_records (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	delivery_date DATE,
	delivery_address TEXT,
	subtotal_cents INTEGER NOT NULL DEFAULT 0,
	converted_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE cart_items (
	id TEXT PRIMARY KEY,
	cart_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	farm_id TEXT NOT NULL,
	product_title TEXT NOT NULL,
	farm_name TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price_cents INTEGER NOT NULL,
	line_subtotal_cents INTEGER NOT NULL,
	created_at DATETIME,
	updated_at DATETIME
);
`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.Exec(testSchema).Error; err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := conn.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}
