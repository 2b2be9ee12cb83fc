package product

import (
	"context"
	"fmt"

	"github.com/mononest/backend/db"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// CollectionName is where the catalog lives. Products are written by other
// systems; this API only reads them.
const CollectionName = "products"

// Manager handles the database operations relating to Products
type Manager struct {
	collection db.Collection
	logger     *zap.Logger
}

// NewManager returns a new Manager for products
func NewManager(logger *zap.Logger, store db.Store) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	return &Manager{
		collection: store.Collection(CollectionName),
		logger:     logger,
	}, nil
}

// List returns every product in the catalog
func (m *Manager) List(ctx context.Context) ([]db.Document, error) {
	docs, err := m.collection.All(ctx)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot list products")
	}
	return docs, nil
}

// Get returns the product with id, or nil if there is none.
// db.ErrInvalidID is returned unwrapped for malformed ids.
func (m *Manager) Get(ctx context.Context, id string) (db.Document, error) {
	doc, err := m.collection.ByID(ctx, id)
	if err == db.ErrInvalidID {
		return nil, err
	}
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get product by id")
	}
	return doc, nil
}
