package product

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mononest/backend/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenStore struct {
	db.Store
}

func (brokenStore) Collection(name string) db.Collection {
	return brokenCollection{}
}

type brokenCollection struct {
	db.Collection
}

func (brokenCollection) All(ctx context.Context) ([]db.Document, error) {
	return nil, errors.New("connection refused")
}

func (brokenCollection) ByID(ctx context.Context, id string) (db.Document, error) {
	return nil, errors.New("connection refused")
}

func newTestRouter(t *testing.T, store db.Store) http.Handler {
	t.Helper()
	manager, err := NewManager(zap.NewNop(), store)
	require.NoError(t, err)
	svc, err := NewService(Options{ProductManager: manager, Logger: zap.NewNop()})
	require.NoError(t, err)
	return svc.Router()
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListProducts(t *testing.T) {
	store := db.NewMemory()
	h := newTestRouter(t, store)

	rec := do(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	store.Seed(CollectionName, db.Document{"name": "mug"}, db.Document{"name": "cup"})
	rec = do(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var products []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "mug", products[0]["name"])
	assert.NotEmpty(t, products[0][db.IDField])
}

func TestGetProduct(t *testing.T) {
	store := db.NewMemory()
	const id = "6b1f8f5e-3c1a-4a57-9a2b-2f3d7c8e9a10"
	store.Seed(CollectionName, db.Document{db.IDField: id, "name": "mug"})
	h := newTestRouter(t, store)

	rec := do(t, h, "/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"_id":"`+id+`","name":"mug"}`, rec.Body.String())

	rec = do(t, h, "/0b1f8f5e-3c1a-4a57-9a2b-2f3d7c8e9a10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `null`, rec.Body.String())

	rec = do(t, h, "/not-an-id")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_StoreFailure(t *testing.T) {
	h := newTestRouter(t, brokenStore{})

	rec := do(t, h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = do(t, h, "/6b1f8f5e-3c1a-4a57-9a2b-2f3d7c8e9a10")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
