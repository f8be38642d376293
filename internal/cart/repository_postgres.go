package cart

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	getCartQuery = `SELECT id, version, created_at, updated_at FROM carts WHERE shop_id = $1 AND user_id = $2`
	// lockCartQuery serializes writers on one cart row until the transaction ends.
	lockCartQuery   = getCartQuery + ` FOR UPDATE`
	insertCartQuery = `
		INSERT INTO carts (shop_id, user_id, version, created_at, updated_at)
		VALUES ($1, $2, 0, now(), now())
		ON CONFLICT (shop_id, user_id) DO NOTHING
	`
	listLinesQuery   = `SELECT product_id, variant_id, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY line_no`
	deleteLinesQuery = `DELETE FROM cart_lines WHERE cart_id = $1`
	insertLineQuery  = `INSERT INTO cart_lines (cart_id, line_no, product_id, variant_id, quantity) VALUES ($1, $2, $3, $4, $5)`
	bumpCartQuery    = `UPDATE carts SET version = version + 1, updated_at = now() WHERE id = $1 RETURNING version, created_at, updated_at`
	deleteCartQuery  = `DELETE FROM carts WHERE shop_id = $1 AND user_id = $2`
	deleteCartByID   = `DELETE FROM carts WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostgresRepository) Get(ctx context.Context, key Key) (Cart, error) {
	id, c, err := readCart(ctx, r.db, getCartQuery, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, err
	}
	c.Lines, err = readLines(ctx, r.db, id)
	if err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, key Key, fn Mutation) (Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	id, c, err := lockOrCreate(ctx, tx, key)
	if err != nil {
		return Cart{}, err
	}
	before := c.clone()
	if err := fn(&c); err != nil {
		if errors.Is(err, errNoChange) {
			return before, nil
		}
		return Cart{}, err
	}
	saved, err := writeCart(ctx, tx, id, c)
	if err != nil {
		return Cart{}, err
	}
	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return saved, nil
}

func (r *PostgresRepository) Move(ctx context.Context, from, to Key, fn MoveMutation) (Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		sourceID, targetID int64
		source, target     Cart
		found              bool
	)
	lockSource := func() error {
		id, c, err := readCart(ctx, tx, lockCartQuery, from)
		if errors.Is(err, sql.ErrNoRows) {
			source = Cart{Key: from}
			return nil
		}
		if err != nil {
			return err
		}
		c.Lines, err = readLines(ctx, tx, id)
		if err != nil {
			return err
		}
		sourceID, source, found = id, c, true
		return nil
	}
	lockTarget := func() error {
		var err error
		targetID, target, err = lockOrCreate(ctx, tx, to)
		return err
	}
	// same lock order as the in-memory repository
	steps := []func() error{lockSource, lockTarget}
	if to.less(from) {
		steps = []func() error{lockTarget, lockSource}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Cart{}, err
		}
	}

	before := target.clone()
	if err := fn(&target, source, found); err != nil {
		if errors.Is(err, errNoChange) {
			return before, nil
		}
		return Cart{}, err
	}
	saved, err := writeCart(ctx, tx, targetID, target)
	if err != nil {
		return Cart{}, err
	}
	if found && sourceID != targetID {
		if _, err := tx.ExecContext(ctx, deleteCartByID, sourceID); err != nil {
			return Cart{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Cart{}, err
	}
	return saved, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, key Key) error {
	_, err := r.db.ExecContext(ctx, deleteCartQuery, key.ShopID, key.UserID)
	return err
}

// lockOrCreate locks the cart row for key, inserting an empty cart first when
// none exists. The insert is rolled back with the transaction if the caller
// ends up writing nothing.
func lockOrCreate(ctx context.Context, tx *sql.Tx, key Key) (int64, Cart, error) {
	id, c, err := readCart(ctx, tx, lockCartQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, insertCartQuery, key.ShopID, key.UserID); err != nil {
			return 0, Cart{}, err
		}
		id, c, err = readCart(ctx, tx, lockCartQuery, key)
	}
	if err != nil {
		return 0, Cart{}, err
	}
	c.Lines, err = readLines(ctx, tx, id)
	if err != nil {
		return 0, Cart{}, err
	}
	return id, c, nil
}

func readCart(ctx context.Context, q queryer, query string, key Key) (int64, Cart, error) {
	c := Cart{Key: key}
	var id int64
	if err := q.QueryRowContext(ctx, query, key.ShopID, key.UserID).Scan(&id, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return 0, Cart{}, err
	}
	return id, c, nil
}

func readLines(ctx context.Context, q queryer, cartID int64) ([]Line, error) {
	rows, err := q.QueryContext(ctx, listLinesQuery, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.VariantID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// writeCart replaces the stored lines and bumps the version.
func writeCart(ctx context.Context, tx *sql.Tx, id int64, c Cart) (Cart, error) {
	if _, err := tx.ExecContext(ctx, deleteLinesQuery, id); err != nil {
		return Cart{}, err
	}
	for i, l := range c.Lines {
		if _, err := tx.ExecContext(ctx, insertLineQuery, id, i, l.ProductID, l.VariantID, l.Quantity); err != nil {
			return Cart{}, err
		}
	}
	if err := tx.QueryRowContext(ctx, bumpCartQuery, id).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Cart{}, err
	}
	return c, nil
}
