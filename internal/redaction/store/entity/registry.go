// Package entity provides the repositories the engine fetches documents from:
// an in-memory store, a postgres JSONB store and a redis read-through cache,
// dispatched per entity type by Registry.
package entity

import (
	"context"
	"fmt"
	"sync"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/pkg/platform/sentinel"
)

// Source hands out a repository bound to one entity type.
type Source interface {
	For(entityType models.EntityType) ports.EntityRepository
}

// Registry maps each entity type to its repository.
type Registry struct {
	mu    sync.RWMutex
	repos map[models.EntityType]ports.EntityRepository
}

func NewRegistry() *Registry {
	return &Registry{repos: make(map[models.EntityType]ports.EntityRepository)}
}

// NewRegistryFrom registers src for every supported entity type, passing each
// repository through the optional decorators in order.
func NewRegistryFrom(src Source, decorate ...func(models.EntityType, ports.EntityRepository) ports.EntityRepository) *Registry {
	r := NewRegistry()
	for _, t := range models.EntityTypes {
		repo := src.For(t)
		for _, d := range decorate {
			repo = d(t, repo)
		}
		r.Register(t, repo)
	}
	return r
}

// Register binds repo to entityType, replacing any earlier binding.
func (r *Registry) Register(entityType models.EntityType, repo ports.EntityRepository) {
	if repo == nil {
		panic("entity.Registry: repository is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repos[entityType] = repo
}

// Fetch resolves entityID through the repository registered for entityType.
// Unregistered types return sentinel.ErrInvalidInput.
func (r *Registry) Fetch(ctx context.Context, entityType models.EntityType, entityID string) (document.Value, error) {
	r.mu.RLock()
	repo, ok := r.repos[entityType]
	r.mu.RUnlock()
	if !ok {
		return document.Value{}, fmt.Errorf("entity type %q: %w", entityType, sentinel.ErrInvalidInput)
	}
	return repo.Fetch(ctx, entityID)
}

var _ ports.EntitySource = (*Registry)(nil)
