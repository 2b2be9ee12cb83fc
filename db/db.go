// Package db provides the document store used by the resource managers.
//
// A Store hands out named Collections of schema-less Documents. Three
// backends exist: MongoDB, PostgreSQL (documents kept in a JSONB column) and
// an in-process memory store.
package db

import (
	"context"
	"errors"
	"fmt"
)

// IDField is the key under which every Document exposes its identifier
const IDField = "_id"

var (
	// ErrInvalidID is returned when an identifier is not in the backend's format
	ErrInvalidID = errors.New("invalid document id")
	// ErrDuplicate is returned when an insert violates a unique field
	ErrDuplicate = errors.New("duplicate document")
)

// MergeResult summarizes a Merge call
type MergeResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// InsertResult acknowledges an Insert call
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// Collection is a flat set of Documents.
// Lookups that find nothing return a nil Document and a nil error.
type Collection interface {
	All(ctx context.Context) ([]Document, error)
	ByID(ctx context.Context, id string) (Document, error)
	FindOne(ctx context.Context, field string, value interface{}) (Document, error)
	Insert(ctx context.Context, doc Document) (*InsertResult, error)
	// Merge sets the fields of patch on the first Document whose field equals
	// value. It never creates a Document.
	Merge(ctx context.Context, field string, value interface{}, patch Document) (*MergeResult, error)
}

// Store is a connected backend
type Store interface {
	Collection(name string) Collection
	// EnsureUnique makes field unique across the named collection
	EnsureUnique(ctx context.Context, collection, field string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Driver names a Store backend
type Driver string

// define constants
const (
	DriverMongo    Driver = "mongo"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// ParseDriver validates a driver name
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(s); d {
	case DriverMongo, DriverPostgres, DriverMemory:
		return d, nil
	}
	return "", fmt.Errorf("unknown store driver %q", s)
}
