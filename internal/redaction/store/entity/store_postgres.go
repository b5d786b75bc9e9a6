package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
	"veil/internal/redaction/ports"
	"veil/pkg/platform/sentinel"
)

// PostgresStore reads documents from the entity_documents JSONB table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Put upserts doc. doc must be a JSON object.
func (s *PostgresStore) Put(ctx context.Context, entityType models.EntityType, entityID string, doc document.Value) error {
	if !doc.IsObject() {
		return fmt.Errorf("entity %s/%s must be an object: %w", entityType, entityID, sentinel.ErrInvalidInput)
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode entity document: %w", err)
	}
	query := `
		INSERT INTO entity_documents (entity_type, entity_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, string(entityType), entityID, string(data), s.now()); err != nil {
		return fmt.Errorf("put entity document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, entityType models.EntityType, entityID string) (document.Value, error) {
	query := `
		SELECT data
		FROM entity_documents
		WHERE entity_type = $1 AND entity_id = $2
	`
	var data []byte
	if err := s.db.QueryRowContext(ctx, query, string(entityType), entityID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return document.Value{}, sentinel.ErrNotFound
		}
		return document.Value{}, fmt.Errorf("fetch entity document: %w", err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return document.Value{}, fmt.Errorf("decode entity %s/%s: %w", entityType, entityID, err)
	}
	return doc, nil
}

// For returns a repository view restricted to entityType.
func (s *PostgresStore) For(entityType models.EntityType) ports.EntityRepository {
	return postgresRepository{store: s, entityType: entityType}
}

type postgresRepository struct {
	store      *PostgresStore
	entityType models.EntityType
}

func (r postgresRepository) Fetch(ctx context.Context, entityID string) (document.Value, error) {
	return r.store.Get(ctx, r.entityType, entityID)
}
