package address

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addressCols = []string{
	"id", "user_id", "label", "name", "line1", "line2", "city", "region", "postal_code", "country", "phone",
	"created_at", "updated_at",
}

func TestPostgres_Get_ScopedByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM addresses WHERE user_id = \\$1 AND id = \\$2").WithArgs("42", int64(3)).
		WillReturnRows(sqlmock.NewRows(addressCols).
			AddRow(3, "42", "home", "Alice", "1 Main St", "", "Bangkok", "", "10110", "TH", "", now, now))
	mock.ExpectQuery("FROM addresses WHERE user_id = \\$1 AND id = \\$2").WithArgs("7", int64(3)).
		WillReturnError(sql.ErrNoRows)

	a, err := repo.Get(context.Background(), "42", 3)
	require.NoError(t, err)
	assert.Equal(t, "Bangkok", a.Postal.City)
	assert.Equal(t, "home", a.Label)

	_, err = repo.Get(context.Background(), "7", 3)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM addresses").WithArgs("42", int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "42", 9), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
