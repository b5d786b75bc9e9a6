package entity

import (
	"context"
	"sync"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/pkg/platform/sentinel"
)

type entityKey struct {
	entityType models.EntityType
	entityID   string
}

// InMemory holds documents of every entity type for local runs and tests.
// Fetched documents are shared, not copied; the engine clones before writing.
type InMemory struct {
	mu   sync.RWMutex
	docs map[entityKey]document.Value
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[entityKey]document.Value)}
}

// Put stores a private copy of doc.
func (s *InMemory) Put(_ context.Context, entityType models.EntityType, entityID string, doc document.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[entityKey{entityType, entityID}] = doc.Clone()
	return nil
}

func (s *InMemory) Get(_ context.Context, entityType models.EntityType, entityID string) (document.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[entityKey{entityType, entityID}]
	if !ok {
		return document.Value{}, sentinel.ErrNotFound
	}
	return doc, nil
}

// For returns a repository view restricted to entityType.
func (s *InMemory) For(entityType models.EntityType) ports.EntityRepository {
	return memoryRepository{store: s, entityType: entityType}
}

type memoryRepository struct {
	store      *InMemory
	entityType models.EntityType
}

func (r memoryRepository) Fetch(ctx context.Context, entityID string) (document.Value, error) {
	return r.store.Get(ctx, r.entityType, entityID)
}
