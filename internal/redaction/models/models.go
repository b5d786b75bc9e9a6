package models

import (
	"slices"
	"time"
	"unicode/utf8"

	"veil/internal/redaction/document"
	strutil "veil/pkg/platform/strings"
	"veil/pkg/platform/validation"
)

// RedactionType selects the transformer applied to a field.
type RedactionType string

const (
	RedactionMask         RedactionType = "mask"
	RedactionHash         RedactionType = "hash"
	RedactionRemove       RedactionType = "remove"
	RedactionPseudonymize RedactionType = "pseudonymize"
	RedactionRegex        RedactionType = "regex"
)

func (t RedactionType) IsValid() bool {
	switch t {
	case RedactionMask, RedactionHash, RedactionRemove, RedactionPseudonymize, RedactionRegex:
		return true
	}
	return false
}

func (t RedactionType) String() string { return string(t) }

// EntityType selects the repository an entity is fetched from.
type EntityType string

const (
	EntityServiceRequest EntityType = "service_request"
	EntityProfile        EntityType = "profile"
	EntityMessage        EntityType = "message"
	EntityEvent          EntityType = "event"
)

// EntityTypes lists every supported entity type.
var EntityTypes = []EntityType{EntityServiceRequest, EntityProfile, EntityMessage, EntityEvent}

func (t EntityType) IsValid() bool {
	return slices.Contains(EntityTypes, t)
}

func (t EntityType) String() string { return string(t) }

// DefaultMaskCharacter is used when a rule leaves MaskCharacter empty.
const DefaultMaskCharacter = '*'

// Rule is an administrator-owned redaction rule. Rules are read-only here.
type Rule struct {
	ID             string        `json:"id" yaml:"id"`
	RuleName       string        `json:"rule_name" yaml:"rule_name" validate:"required,notblank"`
	FieldNames     []string      `json:"field_names" yaml:"field_names" validate:"required,min=1,dive,notblank"`
	PatternType    string        `json:"pattern_type,omitempty" yaml:"pattern_type"`
	RegexPattern   string        `json:"regex_pattern,omitempty" yaml:"regex_pattern" validate:"required_if=RedactionType regex"`
	RedactionType  RedactionType `json:"redaction_type" yaml:"redaction_type" validate:"required,oneof=mask hash remove pseudonymize regex"`
	MaskCharacter  string        `json:"mask_character,omitempty" yaml:"mask_character" validate:"max=1"`
	PreserveLength bool          `json:"preserve_length" yaml:"preserve_length"`
	ShowLastN      int           `json:"show_last_n" yaml:"show_last_n" validate:"min=0"`
	AppliesToRoles []string      `json:"applies_to_roles" yaml:"applies_to_roles" validate:"required,min=1,dive,notblank"`
	ExceptionRoles []string      `json:"exception_roles,omitempty" yaml:"exception_roles"`
	IsActive       bool          `json:"is_active" yaml:"is_active"`
	// Priority orders rules ascending; ties keep creation order.
	Priority  int       `json:"priority" yaml:"priority"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Normalize trims role lists and drops blank or repeated roles. Field names
// are left as written so a blank path still fails validation.
func (r *Rule) Normalize() {
	r.AppliesToRoles = strutil.DedupeAndTrim(r.AppliesToRoles)
	r.ExceptionRoles = strutil.DedupeAndTrim(r.ExceptionRoles)
}

// Validate checks the rule is well formed before it is stored.
func (r *Rule) Validate() error {
	return validation.Validate(r)
}

// AppliesTo reports whether the rule is evaluated for viewers with role.
func (r *Rule) AppliesTo(role string) bool {
	return r.IsActive &&
		slices.Contains(r.AppliesToRoles, role) &&
		!slices.Contains(r.ExceptionRoles, role)
}

// MaskRune returns the first rune of MaskCharacter, or '*' when unset.
func (r *Rule) MaskRune() rune {
	if r.MaskCharacter == "" {
		return DefaultMaskCharacter
	}
	ch, _ := utf8.DecodeRuneInString(r.MaskCharacter)
	if ch == utf8.RuneError {
		return DefaultMaskCharacter
	}
	return ch
}

// Request is one redaction call.
type Request struct {
	EntityType EntityType
	EntityID   string
	ViewerRole string
	ViewerID   string
	// Fields narrows rule scope when non-nil. An empty, non-nil list makes
	// every field ineligible.
	Fields []string
}

// AppliedRedaction records one transformation performed on the working copy.
type AppliedRedaction struct {
	Field         string        `json:"field"`
	RuleName      string        `json:"rule"`
	RedactionType RedactionType `json:"type"`
}

// Result is the redacted document plus every transformation applied, in
// evaluation order.
type Result struct {
	Data    document.Value
	Applied []AppliedRedaction
}

// NarrowFields intersects a rule's field list with a request allow-list,
// keeping the rule's order. A nil allow-list leaves the fields unchanged.
func NarrowFields(ruleFields, allowList []string) []string {
	if allowList == nil {
		return ruleFields
	}
	narrowed := make([]string, 0, len(ruleFields))
	for _, f := range ruleFields {
		if slices.Contains(allowList, f) {
			narrowed = append(narrowed, f)
		}
	}
	return narrowed
}
