package handler

import (
	"strings"

	"veil/internal/redaction/models"
	"veil/pkg/platform/validation"
)

// RedactRequest is the POST /redact body.
type RedactRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=service_request profile message event"`
	EntityID   string `json:"entity_id" validate:"required,notblank,max=256"`
	ViewerRole string `json:"viewer_role" validate:"required,notblank,max=64"`
	ViewerID   string `json:"viewer_id,omitempty" validate:"max=256"`
	// Fields is an optional allow-list. Absent or null means no allow-list;
	// an empty array means no field is eligible.
	Fields []string `json:"fields,omitempty" validate:"omitempty,max=100,dive,notblank"`
}

// Normalize trims surrounding whitespace. A nil Fields stays nil.
func (r *RedactRequest) Normalize() {
	r.EntityType = strings.TrimSpace(r.EntityType)
	r.EntityID = strings.TrimSpace(r.EntityID)
	r.ViewerRole = strings.TrimSpace(r.ViewerRole)
	r.ViewerID = strings.TrimSpace(r.ViewerID)
	for i, f := range r.Fields {
		r.Fields[i] = strings.TrimSpace(f)
	}
}

func (r *RedactRequest) Validate() error {
	return validation.Validate(r)
}

// ToModel converts the DTO into the engine request.
func (r *RedactRequest) ToModel() models.Request {
	return models.Request{
		EntityType: models.EntityType(r.EntityType),
		EntityID:   r.EntityID,
		ViewerRole: r.ViewerRole,
		ViewerID:   r.ViewerID,
		Fields:     r.Fields,
	}
}
