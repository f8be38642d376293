package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	productColumns = `id, shop_id, category_ids, name, price, discount_percent, stock_quantity, status, created_at, updated_at`

	getProductQuery   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsQuery  = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::bigint[])`
	listProductsQuery = `SELECT ` + productColumns + ` FROM products WHERE ($1::bigint = 0 OR shop_id = $1) ORDER BY id`

	listVariantsQuery = `
		SELECT id, product_id, position, attributes, price, discount_percent, stock_quantity, is_default
		FROM product_variants
		WHERE product_id = ANY($1::bigint[])
		ORDER BY product_id, position
	`
	insertProductQuery = `
		INSERT INTO products (shop_id, category_ids, name, price, discount_percent, stock_quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, created_at, updated_at
	`
	updateProductQuery = `
		UPDATE products
		SET shop_id = $1,
			category_ids = $2,
			name = $3,
			price = $4,
			discount_percent = $5,
			stock_quantity = $6,
			status = $7,
			updated_at = now()
		WHERE id = $8
	`
	upsertVariantQuery = `
		INSERT INTO product_variants (id, product_id, position, attributes, price, discount_percent, stock_quantity, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET position = EXCLUDED.position,
			attributes = EXCLUDED.attributes,
			price = EXCLUDED.price,
			discount_percent = EXCLUDED.discount_percent,
			stock_quantity = EXCLUDED.stock_quantity,
			is_default = EXCLUDED.is_default
	`
	pruneVariantsQuery  = `DELETE FROM product_variants WHERE product_id = $1 AND NOT (id = ANY($2::text[]))`
	deleteProductQuery  = `DELETE FROM products WHERE id = $1`
	reserveProductQuery = `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = now() WHERE id = $2 AND stock_quantity >= $1`
	reserveVariantQuery = `UPDATE product_variants SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND product_id = $3 AND stock_quantity >= $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	variants, err := loadVariants(ctx, r.db, []int64{id})
	if err != nil {
		return Product{}, err
	}
	p.Variants = variants[id]
	return p, nil
}

// GetProducts loads every existing product among ids in two queries.
func (r *PostgresRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, getProductsQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make([]int64, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
		found = append(found, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return out, nil
	}
	variants, err := loadVariants(ctx, r.db, found)
	if err != nil {
		return nil, err
	}
	for id, vs := range variants {
		p := out[id]
		p.Variants = vs
		out[id] = p
	}
	return out, nil
}

func (r *PostgresRepository) List(ctx context.Context, shopID int64) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	variants, err := loadVariants(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Variants = variants[out[i].ID]
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	err = tx.QueryRowContext(ctx, insertProductQuery,
		p.ShopID,
		pq.Array(p.CategoryIDs),
		p.Name,
		p.Price,
		p.DiscountPercent,
		p.StockQuantity,
		string(p.Status),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if err := writeVariants(ctx, tx, p.ID, p.Variants); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Update rewrites the product row and upserts its variants by id, so variant
// ids referenced by carts and orders survive reordering.
func (r *PostgresRepository) Update(ctx context.Context, id int64, p Product) (Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, updateProductQuery,
		p.ShopID,
		pq.Array(p.CategoryIDs),
		p.Name,
		p.Price,
		p.DiscountPercent,
		p.StockQuantity,
		string(p.Status),
		id,
	)
	if err != nil {
		return Product{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Product{}, err
	}
	if affected == 0 {
		return Product{}, ErrProductNotFound
	}
	if err := writeVariants(ctx, tx, id, p.Variants); err != nil {
		return Product{}, err
	}
	keep := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		keep = append(keep, v.ID)
	}
	if _, err := tx.ExecContext(ctx, pruneVariantsQuery, id, pq.Array(keep)); err != nil {
		return Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, deleteProductQuery, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PostgresRepository) ReserveStock(ctx context.Context, reqs []StockRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := ReserveStockTx(ctx, tx, reqs); err != nil {
		return err
	}
	return tx.Commit()
}

// ReserveStockTx decrements stock inside tx. Each row is updated with a
// conditional UPDATE, so a concurrent checkout of the last unit makes one of
// the two transactions fail with ErrInsufficientStock. Keys are processed in a
// fixed order to keep lock acquisition consistent across transactions.
func ReserveStockTx(ctx context.Context, tx *sql.Tx, reqs []StockRequest) error {
	needed := aggregate(reqs)
	keys := make([]stockKey, 0, len(needed))
	for k := range needed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].productID != keys[j].productID {
			return keys[i].productID < keys[j].productID
		}
		return keys[i].variantID < keys[j].variantID
	})

	for _, k := range keys {
		qty := needed[k]
		var (
			result sql.Result
			err    error
		)
		if k.variantID == "" {
			result, err = tx.ExecContext(ctx, reserveProductQuery, qty, k.productID)
		} else {
			result, err = tx.ExecContext(ctx, reserveVariantQuery, qty, k.variantID, k.productID)
		}
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if k.variantID == "" {
				return fmt.Errorf("%w for product %d: requested %d", ErrInsufficientStock, k.productID, qty)
			}
			return fmt.Errorf("%w for product %d variant %s: requested %d", ErrInsufficientStock, k.productID, k.variantID, qty)
		}
	}
	return nil
}

func writeVariants(ctx context.Context, tx *sql.Tx, productID int64, variants []Variant) error {
	for _, v := range variants {
		attrs, err := json.Marshal(v.Attributes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertVariantQuery,
			v.ID,
			productID,
			v.Position,
			attrs,
			v.Price,
			v.DiscountPercent,
			v.StockQuantity,
			v.IsDefault,
		); err != nil {
			return err
		}
	}
	return nil
}

func loadVariants(ctx context.Context, q querier, ids []int64) (map[int64][]Variant, error) {
	rows, err := q.QueryContext(ctx, listVariantsQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Variant, len(ids))
	for rows.Next() {
		var (
			v         Variant
			productID int64
			attrs     []byte
		)
		if err := rows.Scan(&v.ID, &productID, &v.Position, &attrs, &v.Price, &v.DiscountPercent, &v.StockQuantity, &v.IsDefault); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &v.Attributes); err != nil {
				return nil, fmt.Errorf("variant %s attributes: %w", v.ID, err)
			}
		}
		out[productID] = append(out[productID], v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(scanner rowScanner) (Product, error) {
	p := Product{}
	var status string
	var categories pq.Int64Array
	if err := scanner.Scan(
		&p.ID,
		&p.ShopID,
		&categories,
		&p.Name,
		&p.Price,
		&p.DiscountPercent,
		&p.StockQuantity,
		&status,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Product{}, err
	}
	p.Status = Status(status)
	p.CategoryIDs = []int64(categories)
	return p, nil
}
