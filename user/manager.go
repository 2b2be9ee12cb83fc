package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/mononest/backend/db"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// CollectionName holds one document per user
const CollectionName = "users"

// EmailField is the natural key of a user
const EmailField = "email"

// NormalizeEmail is applied to every email before it reaches the store
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Manager handles the database operations relating to Users
type Manager struct {
	collection db.Collection
	logger     *zap.Logger
}

// NewManager returns a new Manager for users and makes email unique in the store
func NewManager(ctx context.Context, logger *zap.Logger, store db.Store) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if err := store.EnsureUnique(ctx, CollectionName, EmailField); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize user.Manager")
	}
	return &Manager{
		collection: store.Collection(CollectionName),
		logger:     logger,
	}, nil
}

// List returns every user
func (m *Manager) List(ctx context.Context) ([]db.Document, error) {
	docs, err := m.collection.All(ctx)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot list users")
	}
	return docs, nil
}

// GetByEmail will try to return the user in the database by email address
func (m *Manager) GetByEmail(ctx context.Context, email string) (db.Document, error) {
	doc, err := m.collection.FindOne(ctx, EmailField, NormalizeEmail(email))
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot get user by email")
	}
	return doc, nil
}

// Register inserts profile unless a user with the same email exists.
// created reports whether a new document was written.
func (m *Manager) Register(ctx context.Context, profile db.Document) (created bool, err error) {
	email, _ := profile[EmailField].(string)
	email = NormalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("profile has no email")
	}

	existing, err := m.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	doc := profile.WithoutID()
	doc[EmailField] = email

	_, err = m.collection.Insert(ctx, doc)
	if err == db.ErrDuplicate {
		// lost the race against a concurrent registration
		return false, nil
	}
	if err != nil {
		m.logger.Error("Database returned error",
			zap.Error(err),
		)
		return false, extErrors.Wrap(err, "Cannot create a new User")
	}
	return true, nil
}

// Update merges patch into the existing user with email. It never creates a user.
func (m *Manager) Update(ctx context.Context, email string, patch db.Document) (*db.MergeResult, error) {
	result, err := m.collection.Merge(ctx, EmailField, NormalizeEmail(email), patch)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot update user")
	}
	return result, nil
}
