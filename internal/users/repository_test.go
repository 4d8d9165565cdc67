package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryInsertDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	u := &User{ID: uuid.New(), Email: "ada@example.com", FullName: "Ada", Role: "user", PasswordHash: "x"}

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(u.ID, u.Email, u.FullName, u.Phone, u.Role, u.PasswordHash).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = repo.Insert(context.Background(), u)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, email, full_name").
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "email", "full_name", "phone", "role", "password_hash", "created_at",
		}).AddRow(id, "ada@example.com", "Ada", "", "user", "hash", time.Now()))

	u, err := repo.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryProviderLookupMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newRepositoryWithDB(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT id FROM providers").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, err := repo.ProviderIDForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
