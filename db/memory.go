package db

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps collections in process memory. Documents are lost on
// restart; it serves local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

var _ Store = &MemoryStore{}

// NewMemory returns an empty MemoryStore
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// Seed inserts docs verbatim into the named collection, assigning ids where missing
func (m *MemoryStore) Seed(name string, docs ...Document) {
	c := m.collection(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docs {
		doc = doc.Clone()
		if doc.ID() == "" {
			doc[IDField] = uuid.New().String()
		}
		c.docs = append(c.docs, doc)
	}
}

func (m *MemoryStore) collection(name string) *memoryCollection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{unique: make(map[string]struct{})}
		m.collections[name] = c
	}
	return c
}

func (m *MemoryStore) Collection(name string) Collection {
	return m.collection(name)
}

func (m *MemoryStore) EnsureUnique(ctx context.Context, collection, field string) error {
	c := m.collection(collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unique[field] = struct{}{}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

type memoryCollection struct {
	mu     sync.RWMutex
	docs   []Document
	unique map[string]struct{}
}

func (c *memoryCollection) All(ctx context.Context) ([]Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results := make([]Document, 0, len(c.docs))
	for _, doc := range c.docs {
		results = append(results, doc.Clone())
	}
	return results, nil
}

func (c *memoryCollection) ByID(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	return c.FindOne(ctx, IDField, id)
}

func (c *memoryCollection) FindOne(ctx context.Context, field string, value interface{}) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(field, value); i >= 0 {
		return c.docs[i].Clone(), nil
	}
	return nil, nil
}

func (c *memoryCollection) indexOf(field string, value interface{}) int {
	for i, doc := range c.docs {
		if v, ok := doc[field]; ok && v == value {
			return i
		}
	}
	return -1
}

func (c *memoryCollection) Insert(ctx context.Context, doc Document) (*InsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for field := range c.unique {
		if v, ok := doc[field]; ok && c.indexOf(field, v) >= 0 {
			return nil, ErrDuplicate
		}
	}
	stored := doc.WithoutID()
	id := uuid.New().String()
	stored[IDField] = id
	c.docs = append(c.docs, stored)
	return &InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *memoryCollection) Merge(ctx context.Context, field string, value interface{}, patch Document) (*MergeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(field, value)
	if i < 0 {
		return &MergeResult{}, nil
	}
	merged, changed := c.docs[i].apply(patch.WithoutID())
	result := &MergeResult{MatchedCount: 1}
	if changed {
		c.docs[i] = merged
		result.ModifiedCount = 1
	}
	return result, nil
}
