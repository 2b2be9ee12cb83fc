package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	store, err := newPostgresStore(gdb, zap.NewNop(), nil)
	require.NoError(t, err)
	return store, mock
}

func TestPostgres_FindOne(t *testing.T) {
	store, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE data->>\$1 = \$2`).
		WithArgs("email", "a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("3f1c0d1e-8a55-4d8e-9a55-0d1e8a554d8e", []byte(`{"email":"a@b.com","name":"A"}`), now, now))

	doc, err := store.Collection("users").FindOne(context.Background(), "email", "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, Document{
		IDField: "3f1c0d1e-8a55-4d8e-9a55-0d1e8a554d8e",
		"email": "a@b.com",
		"name":  "A",
	}, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindOneNotFound(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}))

	doc, err := store.Collection("users").FindOne(context.Background(), "email", "nobody@b.com")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestPostgres_All(t *testing.T) {
	store, mock := newMockPostgres(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "products" ORDER BY created_at asc`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("p1", []byte(`{"name":"mug"}`), now, now).
			AddRow("p2", []byte(`{"name":"cup"}`), now, now))

	docs, err := store.Collection("products").All(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0].ID())
	assert.Equal(t, "cup", docs[1]["name"])
}

func TestPostgres_AllError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnError(errors.New("connection reset"))

	_, err := store.Collection("products").All(context.Background())
	assert.Error(t, err)
}

func TestPostgres_ByIDInvalid(t *testing.T) {
	store, mock := newMockPostgres(t)

	_, err := store.Collection("products").ByID(context.Background(), "5f2b")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "users_email_unique" (SQLSTATE 23505)`)))
	assert.False(t, isUniqueViolation(errors.New("ERROR: relation does not exist (SQLSTATE 42P01)")))
}
