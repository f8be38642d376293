package main

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		category_ids BIGINT[] NOT NULL DEFAULT '{}',
		name TEXT NOT NULL,
		price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		discount_percent NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (discount_percent BETWEEN 0 AND 100),
		stock_quantity INT NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_shop_id_idx ON products (shop_id)`,
	`CREATE TABLE IF NOT EXISTS product_variants (
		id TEXT PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		position INT NOT NULL,
		attributes JSONB NOT NULL DEFAULT '{}',
		price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
		discount_percent NUMERIC(5, 2) NOT NULL DEFAULT 0 CHECK (discount_percent BETWEEN 0 AND 100),
		stock_quantity INT NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
		is_default BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS product_variants_product_id_idx ON product_variants (product_id, position)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_shop_name_idx ON categories (shop_id, lower(name))`,
	`CREATE TABLE IF NOT EXISTS carts (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		user_id TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (shop_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		cart_id BIGINT NOT NULL REFERENCES carts (id) ON DELETE CASCADE,
		line_no INT NOT NULL,
		product_id BIGINT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		quantity INT NOT NULL CHECK (quantity BETWEEN 1 AND 99),
		PRIMARY KEY (cart_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		line1 TEXT NOT NULL,
		line2 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL,
		country TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS addresses_user_id_idx ON addresses (user_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		shop_id BIGINT NOT NULL,
		tracking_id TEXT NOT NULL,
		total_amount NUMERIC(12, 2) NOT NULL,
		discount_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		tax_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		shipping_amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		final_amount NUMERIC(12, 2) NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		shipping_address JSONB NOT NULL,
		billing_address JSONB,
		notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		shipped_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT orders_tracking_id_key UNIQUE (tracking_id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_shop_id_idx ON orders (shop_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		line_no INT NOT NULL,
		product_id BIGINT NOT NULL,
		variant_id TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL,
		variant_attributes JSONB,
		quantity INT NOT NULL,
		unit_price NUMERIC(12, 2) NOT NULL,
		discount_percent NUMERIC(5, 2) NOT NULL,
		subtotal NUMERIC(12, 2) NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
