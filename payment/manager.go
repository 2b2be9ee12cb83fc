package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/mononest/backend/db"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// CollectionName holds the append-only payment records
const CollectionName = "payments"

// Record is a payment the client reports as completed. It is stored as-is;
// nothing checks it against the processor.
type Record struct {
	PaymentIntentID string        `json:"paymentIntentId" validate:"required"`
	CustomerEmail   string        `json:"customerEmail" validate:"required,email"`
	Items           []interface{} `json:"items" validate:"required,min=1"`
	TotalAmount     *float64      `json:"totalAmount" validate:"required,gt=0"`
	CustomerNumber  string        `json:"customerNumber,omitempty"`
	CustomerAddress string        `json:"customerAddress,omitempty"`
}

func (r *Record) document(createdAt time.Time) db.Document {
	doc := db.Document{
		"paymentIntentId": r.PaymentIntentID,
		"customerEmail":   r.CustomerEmail,
		"items":           r.Items,
		"totalAmount":     *r.TotalAmount,
		"createdAt":       createdAt,
	}
	if r.CustomerNumber != "" {
		doc["customerNumber"] = r.CustomerNumber
	}
	if r.CustomerAddress != "" {
		doc["customerAddress"] = r.CustomerAddress
	}
	return doc
}

// Manager handles the database operations relating to payment records
type Manager struct {
	collection db.Collection
	logger     *zap.Logger
	clock      func() time.Time
}

// NewManager returns a new Manager for payment records
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
		clock:      time.Now,
	}, nil
}

// List returns every payment record
func (m *Manager) List(ctx context.Context) ([]db.Document, error) {
	docs, err := m.collection.All(ctx)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot list payments")
	}
	return docs, nil
}

// Create stores rec with a server-assigned createdAt. rec must already be validated.
func (m *Manager) Create(ctx context.Context, rec *Record) (*db.InsertResult, error) {
	result, err := m.collection.Insert(ctx, rec.document(m.clock().UTC()))
	if err != nil {
		m.logger.Error("Unable to create payment record in database",
			zap.Error(err),
		)
		return nil, extErrors.Wrap(err, "Cannot create payment record")
	}
	return result, nil
}
