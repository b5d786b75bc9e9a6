package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorText() {
	s.Equal("entity not found", New(CodeNotFound, "entity not found").Error())
	s.Equal("forbidden", (&Error{Code: CodeForbidden}).Error())
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	notFound := New(CodeNotFound, "entity not found")

	s.ErrorIs(notFound, &Error{Code: CodeNotFound})
	s.NotErrorIs(notFound, &Error{Code: CodeBadRequest})
	s.NotErrorIs(errors.New("entity not found"), &Error{Code: CodeNotFound})

	chained := fmt.Errorf("redact: %w", notFound)
	s.ErrorIs(chained, &Error{Code: CodeNotFound})
	s.True(HasCode(chained, CodeNotFound))
	s.False(HasCode(chained, CodeInternal))
	s.False(HasCode(nil, CodeInternal))
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the code of a wrapped domain error", func() {
		inner := New(CodeValidation, "field_names is required")
		err := Wrap(inner, CodeInternal, "invalid rule")

		s.True(HasCode(err, CodeValidation))
		s.Equal("invalid rule", err.Error())
		s.ErrorIs(err, inner)
	})

	s.Run("assigns the code to a plain error", func() {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "failed to load entity or rules")

		s.True(HasCode(err, CodeInternal))
		s.ErrorIs(err, cause)
	})
}
