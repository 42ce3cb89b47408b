package student

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nadmax/medrank/internal/apperr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	d := NewMemoryDirectory([]Student{
		{ID: "s2", Name: "Rahul Verma", Email: "rahul@example.com"},
		{ID: "s1", Name: "Asha Rao", Email: "asha@example.com"},
	})
	ctx := context.Background()

	s, err := d.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", s.Name)

	_, err = d.Get(ctx, "missing")
	assert.Equal(t, apperr.ENOTFOUND, apperr.ErrorCode(err))

	list, err := d.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s1", list[0].ID)
	assert.Equal(t, "s2", list[1].ID)
}

func setupMockDirectory(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDirectory) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPostgresDirectory(db, zerolog.Nop())
}

func TestPostgresDirectory_Get(t *testing.T) {
	db, mock, d := setupMockDirectory(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email FROM students WHERE id").
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow("s1", "Asha Rao", "asha@example.com"))

		s, err := d.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", s.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email FROM students WHERE id").
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := d.Get(ctx, "nope")
		assert.Equal(t, apperr.ENOTFOUND, apperr.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresDirectory_List(t *testing.T) {
	db, mock, d := setupMockDirectory(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT id, name, email FROM students ORDER BY").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("s1", "Asha Rao", "asha@example.com").
			AddRow("s2", "Rahul Verma", "rahul@example.com"))

	list, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
