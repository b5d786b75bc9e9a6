// Package seeder loads redaction rules and entity documents from YAML into the
// configured stores. Without a seed file the embedded demo data is used.
package seeder

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"veil/internal/redaction/document"
	"veil/internal/redaction/models"
)

//go:embed demo.yaml
var demoSeed []byte

// RuleStore defines methods for seeding rules
type RuleStore interface {
	Save(ctx context.Context, rule *models.Rule) error
}

// EntityStore defines methods for seeding entity documents
type EntityStore interface {
	Put(ctx context.Context, entityType models.EntityType, entityID string, doc document.Value) error
}

// File is the seed file layout.
type File struct {
	Rules    []models.Rule `yaml:"rules"`
	Entities []Entity      `yaml:"entities"`
}

// Entity is one seeded document.
type Entity struct {
	EntityType models.EntityType `yaml:"entity_type"`
	EntityID   string            `yaml:"entity_id"`
	Data       map[string]any    `yaml:"data"`
}

// Parse decodes a seed file. Unknown keys are rejected so typos in rule
// fields fail loudly instead of silently disabling a rule.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

// LoadFile reads and parses a seed file. An empty path returns the demo seed.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return Demo()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Demo returns the embedded demo seed.
func Demo() (*File, error) {
	return Parse(demoSeed)
}

// Seeder populates stores from a seed file
type Seeder struct {
	rules    RuleStore
	entities EntityStore
	logger   *slog.Logger
}

// New creates a new seeder
func New(rules RuleStore, entities EntityStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Seeder{
		rules:    rules,
		entities: entities,
		logger:   logger,
	}
}

// SeedAll stores every rule and entity in f. Rules keep their file order as
// creation order, so equal priorities evaluate top to bottom.
func (s *Seeder) SeedAll(ctx context.Context, f *File) error {
	s.logger.InfoContext(ctx, "seeding redaction data...")

	for i := range f.Rules {
		if err := s.rules.Save(ctx, &f.Rules[i]); err != nil {
			return fmt.Errorf("failed to seed rule %d (%s): %w", i, f.Rules[i].RuleName, err)
		}
	}

	for _, e := range f.Entities {
		if !e.EntityType.IsValid() {
			return fmt.Errorf("failed to seed entity %s: unsupported entity_type %q", e.EntityID, e.EntityType)
		}
		if e.EntityID == "" {
			return fmt.Errorf("failed to seed %s entity: entity_id is required", e.EntityType)
		}
		doc, err := document.FromAny(e.Data)
		if err != nil {
			return fmt.Errorf("failed to seed entity %s/%s: %w", e.EntityType, e.EntityID, err)
		}
		if err := s.entities.Put(ctx, e.EntityType, e.EntityID, doc); err != nil {
			return fmt.Errorf("failed to seed entity %s/%s: %w", e.EntityType, e.EntityID, err)
		}
	}

	s.logger.InfoContext(ctx, "redaction data seeded successfully",
		"rules", len(f.Rules),
		"entities", len(f.Entities),
	)
	return nil
}
