package category

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements Repository using Postgres.
type PostgresRepository struct {
	db *sql.DB
}

const (
	listCategoriesQuery = `
		SELECT id, shop_id, name, position, created_at
		FROM categories
		WHERE shop_id = $1
		ORDER BY position, id
	`
	insertCategoryQuery = `
		INSERT INTO categories (shop_id, name, position, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`
	deleteCategoryQuery = `DELETE FROM categories WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, shopID int64) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, listCategoriesQuery, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Name, &c.Position, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create relies on the unique (shop_id, lower(name)) index to reject
// duplicate names.
func (r *PostgresRepository) Create(ctx context.Context, c Category) (Category, error) {
	err := r.db.QueryRowContext(ctx, insertCategoryQuery, c.ShopID, c.Name, c.Position).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, ErrDuplicateName
		}
		return Category{}, err
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, deleteCategoryQuery, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
