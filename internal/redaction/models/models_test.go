package models

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "veil/pkg/domain-errors"
)

type RuleModelSuite struct {
	suite.Suite
}

func TestRuleModelSuite(t *testing.T) {
	suite.Run(t, new(RuleModelSuite))
}

func (s *RuleModelSuite) validRule() Rule {
	return Rule{
		ID:             "r1",
		RuleName:       "partner-email",
		FieldNames:     []string{"profile.email"},
		RedactionType:  RedactionMask,
		ShowLastN:      4,
		AppliesToRoles: []string{"partner"},
		ExceptionRoles: []string{"admin"},
		IsActive:       true,
	}
}

// TestAppliesTo covers the role gating predicate: active, listed, not exempt.
func (s *RuleModelSuite) TestAppliesTo() {
	s.Run("active rule listing the role applies", func() {
		r := s.validRule()
		s.True(r.AppliesTo("partner"))
	})

	s.Run("inactive rule never applies", func() {
		r := s.validRule()
		r.IsActive = false
		s.False(r.AppliesTo("partner"))
	})

	s.Run("unlisted role is not covered", func() {
		r := s.validRule()
		s.False(r.AppliesTo("guest"))
	})

	s.Run("exception role wins over applies list", func() {
		r := s.validRule()
		r.AppliesToRoles = []string{"partner", "admin"}
		s.False(r.AppliesTo("admin"))
		s.True(r.AppliesTo("partner"))
	})
}

func (s *RuleModelSuite) TestValidate() {
	s.Run("valid rule passes", func() {
		r := s.validRule()
		s.NoError(r.Validate())
	})

	cases := []struct {
		name    string
		mutate  func(r *Rule)
		message string
	}{
		{"missing name", func(r *Rule) { r.RuleName = "" }, "rule_name is required"},
		{"no fields", func(r *Rule) { r.FieldNames = nil }, "field_names is required"},
		{"empty fields", func(r *Rule) { r.FieldNames = []string{} }, "field_names must be at least 1"},
		{"blank field", func(r *Rule) { r.FieldNames = []string{" "} }, "field_names[0] must not be blank"},
		{"no roles", func(r *Rule) { r.AppliesToRoles = nil }, "applies_to_roles is required"},
		{"unknown type", func(r *Rule) { r.RedactionType = "shred" }, "redaction_type must be one of [mask hash remove pseudonymize regex]"},
		{"negative show last", func(r *Rule) { r.ShowLastN = -1 }, "show_last_n must be at least 0"},
		{"long mask character", func(r *Rule) { r.MaskCharacter = "##" }, "mask_character must be at most 1"},
		{"regex without pattern", func(r *Rule) { r.RedactionType = RedactionRegex }, "regex_pattern is required"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			r := s.validRule()
			tc.mutate(&r)
			err := r.Validate()
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Equal(tc.message, err.Error())
		})
	}

	s.Run("blank-only roles fail after normalize", func() {
		r := s.validRule()
		r.AppliesToRoles = []string{" ", ""}
		r.Normalize()
		s.Require().Error(r.Validate())
	})

	s.Run("regex with pattern passes", func() {
		r := s.validRule()
		r.RedactionType = RedactionRegex
		r.RegexPattern = `\d+`
		s.NoError(r.Validate())
	})

	s.Run("multibyte mask character counts as one", func() {
		r := s.validRule()
		r.MaskCharacter = "•"
		s.NoError(r.Validate())
	})
}

func (s *RuleModelSuite) TestMaskRune() {
	r := s.validRule()
	s.Equal('*', r.MaskRune())

	r.MaskCharacter = "#"
	s.Equal('#', r.MaskRune())

	r.MaskCharacter = "•x"
	s.Equal('•', r.MaskRune())
}

func (s *RuleModelSuite) TestNarrowFields() {
	fields := []string{"profile.email", "profile.phone", "address.city"}

	s.Run("nil allow-list keeps rule fields", func() {
		s.Equal(fields, NarrowFields(fields, nil))
	})

	s.Run("intersection keeps rule order", func() {
		got := NarrowFields(fields, []string{"address.city", "profile.email", "other"})
		s.Equal([]string{"profile.email", "address.city"}, got)
	})

	s.Run("empty allow-list excludes everything", func() {
		s.Empty(NarrowFields(fields, []string{}))
	})
}

func (s *RuleModelSuite) TestEntityType() {
	for _, t := range EntityTypes {
		s.True(t.IsValid(), t.String())
	}
	s.False(EntityType("invoice").IsValid())
}

func (s *RuleModelSuite) TestNormalizeRoles() {
	r := s.validRule()
	r.AppliesToRoles = []string{" partner", "agent", "partner ", ""}
	r.ExceptionRoles = []string{"admin", " admin"}
	r.FieldNames = []string{" email"}

	r.Normalize()

	s.Equal([]string{"partner", "agent"}, r.AppliesToRoles)
	s.Equal([]string{"admin"}, r.ExceptionRoles)
	s.Equal([]string{" email"}, r.FieldNames)
}
