package address

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository stores addresses in the addresses table. Every query is
// scoped by user_id so one shopper can never read another's address.
type PostgresRepository struct {
	db *sql.DB
}

const (
	addressColumns = `id, user_id, label, name, line1, line2, city, region, postal_code, country, phone, created_at, updated_at`

	listAddressesQuery = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY id`
	getAddressQuery    = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND id = $2`
	insertAddressQuery = `
		INSERT INTO addresses (user_id, label, name, line1, line2, city, region, postal_code, country, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING ` + addressColumns
	updateAddressQuery = `
		UPDATE addresses
		SET label = $3, name = $4, line1 = $5, line2 = $6, city = $7, region = $8,
			postal_code = $9, country = $10, phone = $11, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM addresses WHERE user_id = $1 AND id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, userID string, id int64) (Address, error) {
	return notFound(scanAddress(r.db.QueryRowContext(ctx, getAddressQuery, userID, id)))
}

func (r *PostgresRepository) Create(ctx context.Context, a Address) (Address, error) {
	p := a.Postal
	return scanAddress(r.db.QueryRowContext(ctx, insertAddressQuery,
		a.UserID, a.Label, p.Name, p.Line1, p.Line2, p.City, p.Region, p.PostalCode, p.Country, p.Phone))
}

func (r *PostgresRepository) Update(ctx context.Context, a Address) (Address, error) {
	p := a.Postal
	return notFound(scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		a.UserID, a.ID, a.Label, p.Name, p.Line1, p.Line2, p.City, p.Region, p.PostalCode, p.Country, p.Phone)))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string, id int64) error {
	result, err := r.db.ExecContext(ctx, deleteAddressQuery, userID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(a Address, err error) (Address, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(s rowScanner) (Address, error) {
	var a Address
	p := &a.Postal
	if err := s.Scan(&a.ID, &a.UserID, &a.Label, &p.Name, &p.Line1, &p.Line2, &p.City, &p.Region,
		&p.PostalCode, &p.Country, &p.Phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Address{}, err
	}
	return a, nil
}
