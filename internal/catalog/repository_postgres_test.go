package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productCols = []string{"id", "shop_id", "category_ids", "name", "price", "discount_percent", "stock_quantity", "status", "created_at", "updated_at"}
var variantCols = []string{"id", "product_id", "position", "attributes", "price", "discount_percent", "stock_quantity", "is_default"}

func TestPostgres_GetProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("FROM products WHERE id = \\$1").WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(1, 10, "{3,4}", "Shirt", "20.00", "0", 0, "active", now, now))
	mock.ExpectQuery("FROM product_variants").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(variantCols).
			AddRow("v-red-s", 1, 0, []byte(`{"color":"red","size":"S"}`), "20.00", "0", 4, true).
			AddRow("v-red-m", 1, 1, []byte(`{"color":"red","size":"M"}`), "22.00", "10", 2, false))

	p, err := repo.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Name)
	assert.Equal(t, []int64{3, 4}, p.CategoryIDs)
	assert.True(t, p.Price.Equal(dec("20")))
	require.Len(t, p.Variants, 2)
	assert.Equal(t, "M", p.Variants[1].Attributes["size"])
	assert.True(t, p.Variants[1].DiscountPercent.Equal(dec("10")))
	assert.True(t, p.Variants[0].IsDefault)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProduct_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM products WHERE id = \\$1").WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))

	_, err = repo.GetProduct(context.Background(), 9)
	assert.ErrorIs(t, err, ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetProducts_EmptyIDsSkipsQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	got, err := NewPostgresRepository(db).GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReserveStock_RollsBackWhenShort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE product_variants SET stock_quantity").
		WithArgs(1, "v-red-m", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs(5, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.ReserveStock(context.Background(), []StockRequest{
		{ProductID: 2, Quantity: 5},
		{ProductID: 1, VariantID: "v-red-m", Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReserveStock_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products SET stock_quantity").
		WithArgs(3, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReserveStock(context.Background(), []StockRequest{
		{ProductID: 2, Quantity: 1},
		{ProductID: 2, Quantity: 2},
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err = repo.Update(context.Background(), 42, Product{Name: "x", Status: StatusActive})
	assert.ErrorIs(t, err, ErrProductNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
