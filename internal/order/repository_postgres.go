package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/wichananm65/storefront-backend/internal/catalog"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	orderColumns = `id, user_id, shop_id, tracking_id, total_amount, discount_amount, tax_amount, shipping_amount,
		final_amount, status, payment_status, payment_method, shipping_address, billing_address, notes, admin_notes,
		shipped_at, delivered_at, cancelled_at, created_at, updated_at`

	insertOrderQuery = `
		INSERT INTO orders (user_id, shop_id, tracking_id, total_amount, discount_amount, tax_amount, shipping_amount,
			final_amount, status, payment_status, payment_method, shipping_address, billing_address, notes, admin_notes,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING id, created_at, updated_at
	`
	insertOrderLineQuery = `
		INSERT INTO order_lines (order_id, line_no, product_id, variant_id, product_name, variant_attributes, quantity,
			unit_price, discount_percent, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	getOrderQuery        = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderQuery       = getOrderQuery + ` FOR UPDATE`
	getByTrackingQuery   = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_id = $1`
	listOrdersQuery      = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text = '' OR user_id = $1)
			AND ($2::bigint = 0 OR shop_id = $2)
			AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`
	listOrderLinesQuery = `
		SELECT order_id, product_id, variant_id, product_name, variant_attributes, quantity, unit_price, discount_percent, subtotal
		FROM order_lines
		WHERE order_id = ANY($1::bigint[])
		ORDER BY order_id, line_no
	`
	updateOrderStateQuery = `
		UPDATE orders
		SET status = $2,
			payment_status = $3,
			payment_method = $4,
			admin_notes = $5,
			shipped_at = $6,
			delivered_at = $7,
			cancelled_at = $8,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	statsQuery = `
		SELECT status, COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM orders
		WHERE shop_id = $1 AND created_at >= $2
		GROUP BY status
	`
	deleteOrderQuery = `DELETE FROM orders WHERE id = $1`

	uniqueViolation = "23505"
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Create decrements stock and inserts the order and its lines in a single
// transaction.
func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := catalog.ReserveStockTx(ctx, tx, stockRequests(o.Lines)); err != nil {
		return Order{}, err
	}
	shipping, err := marshalAddress(o.ShippingAddress)
	if err != nil {
		return Order{}, err
	}
	billing, err := marshalAddress(o.BillingAddress)
	if err != nil {
		return Order{}, err
	}
	err = tx.QueryRowContext(ctx, insertOrderQuery,
		o.UserID,
		o.ShopID,
		o.TrackingID,
		o.TotalAmount,
		o.DiscountAmount,
		o.TaxAmount,
		o.ShippingAmount,
		o.FinalAmount,
		string(o.Status),
		string(o.PaymentStatus),
		o.PaymentMethod,
		shipping,
		billing,
		o.Notes,
		o.AdminNotes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Order{}, errDuplicateTracking
		}
		return Order{}, err
	}
	for i, l := range o.Lines {
		attrs, err := json.Marshal(l.VariantAttributes)
		if err != nil {
			return Order{}, err
		}
		if _, err := tx.ExecContext(ctx, insertOrderLineQuery,
			o.ID, i, l.ProductID, l.VariantID, l.ProductName, attrs, l.Quantity, l.UnitPrice, l.DiscountPercent, l.Subtotal,
		); err != nil {
			return Order{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (Order, error) {
	return r.getOne(ctx, getOrderQuery, id)
}

func (r *PostgresRepository) GetByTracking(ctx context.Context, trackingID string) (Order, error) {
	return r.getOne(ctx, getByTrackingQuery, trackingID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	lines, err := loadLines(ctx, r.db, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Order, error) {
	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.db.QueryContext(ctx, listOrdersQuery, f.UserID, f.ShopID, pq.Array(statuses), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	lines, err := loadLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// Transition locks the order row, applies fn and writes the mutable state
// columns back. Lines and amounts are never rewritten.
func (r *PostgresRepository) Transition(ctx context.Context, id int64, fn func(o *Order) error) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	o, err := scanOrder(tx.QueryRowContext(ctx, lockOrderQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	lines, err := loadLines(ctx, tx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines[id]
	if err := fn(&o); err != nil {
		return Order{}, err
	}
	err = tx.QueryRowContext(ctx, updateOrderStateQuery,
		id,
		string(o.Status),
		string(o.PaymentStatus),
		o.PaymentMethod,
		o.AdminNotes,
		o.ShippedAt,
		o.DeliveredAt,
		o.CancelledAt,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) Stats(ctx context.Context, shopID int64, since time.Time) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, statsQuery, shopID, since)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	totals := make([]statusTotal, 0)
	for rows.Next() {
		var (
			t      statusTotal
			status string
		)
		if err := rows.Scan(&status, &t.count, &t.amount); err != nil {
			return Stats{}, err
		}
		t.status = Status(status)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}
	return summarize(shopID, totals), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, deleteOrderQuery, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func loadLines(ctx context.Context, q querier, ids []int64) (map[int64][]Line, error) {
	rows, err := q.QueryContext(ctx, listOrderLinesQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Line, len(ids))
	for rows.Next() {
		var (
			l       Line
			orderID int64
			attrs   []byte
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.VariantID, &l.ProductName, &attrs, &l.Quantity,
			&l.UnitPrice, &l.DiscountPercent, &l.Subtotal); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &l.VariantAttributes); err != nil {
				return nil, fmt.Errorf("order %d line attributes: %w", orderID, err)
			}
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

func marshalAddress(a *Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func unmarshalAddress(raw []byte) (*Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(scanner rowScanner) (Order, error) {
	var (
		o                                 Order
		status, paymentStatus             string
		shipping, billing                 []byte
		shippedAt, deliveredAt, cancelled sql.NullTime
	)
	if err := scanner.Scan(
		&o.ID,
		&o.UserID,
		&o.ShopID,
		&o.TrackingID,
		&o.TotalAmount,
		&o.DiscountAmount,
		&o.TaxAmount,
		&o.ShippingAmount,
		&o.FinalAmount,
		&status,
		&paymentStatus,
		&o.PaymentMethod,
		&shipping,
		&billing,
		&o.Notes,
		&o.AdminNotes,
		&shippedAt,
		&deliveredAt,
		&cancelled,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	var err error
	if o.ShippingAddress, err = unmarshalAddress(shipping); err != nil {
		return Order{}, fmt.Errorf("order %d shipping address: %w", o.ID, err)
	}
	if o.BillingAddress, err = unmarshalAddress(billing); err != nil {
		return Order{}, fmt.Errorf("order %d billing address: %w", o.ID, err)
	}
	o.ShippedAt = nullTime(shippedAt)
	o.DeliveredAt = nullTime(deliveredAt)
	o.CancelledAt = nullTime(cancelled)
	return o, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	ts := t.Time
	return &ts
}
