// Package transform implements the redaction strategies. Every transformer is
// a pure function of the stringified field value and the rule; lengths are
// counted in runes.
package transform

import (
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"veil/internal/redaction/models"
)

// Removed replaces a value outright.
const Removed = "[REDACTED]"

const (
	maskFixedWidth = 4
	maskMaxWidth   = 8
	regexMaskWidth = 4
)

var (
	// ErrInvalidPattern reports a regex rule whose pattern does not compile.
	// The accompanying output already holds the mask fallback.
	ErrInvalidPattern = errors.New("invalid regex pattern")
	// ErrUnknownType reports a rule with an unrecognised redaction type. The
	// accompanying output is the Removed placeholder.
	ErrUnknownType = errors.New("unknown redaction type")
)

// Apply dispatches to the transformer selected by rule.RedactionType.
func Apply(value string, rule *models.Rule) (string, error) {
	switch rule.RedactionType {
	case models.RedactionMask:
		return Mask(value, rule), nil
	case models.RedactionHash:
		return Hash(value), nil
	case models.RedactionRemove:
		return Remove(value), nil
	case models.RedactionPseudonymize:
		return Pseudonymize(value), nil
	case models.RedactionRegex:
		return Regex(value, rule)
	default:
		return Removed, fmt.Errorf("%w: %q", ErrUnknownType, rule.RedactionType)
	}
}

// Mask hides value behind the rule's mask character.
//
// With ShowLastN set and a longer value, the tail is kept and prefixed by
// either four mask characters or, with PreserveLength, one per hidden rune.
// Otherwise the whole value is masked: rune for rune with PreserveLength,
// capped at eight characters without.
func Mask(value string, rule *models.Rule) string {
	ch := string(rule.MaskRune())
	runes := []rune(value)
	n := len(runes)

	if rule.ShowLastN > 0 && n > rule.ShowLastN {
		width := maskFixedWidth
		if rule.PreserveLength {
			width = n - rule.ShowLastN
		}
		return strings.Repeat(ch, width) + string(runes[n-rule.ShowLastN:])
	}
	if rule.PreserveLength {
		return strings.Repeat(ch, n)
	}
	return strings.Repeat(ch, min(maskMaxWidth, n))
}

// Hash returns a stable, non-cryptographic tag for value (32-bit FNV-1a).
// Equal inputs always produce equal tags.
func Hash(value string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return fmt.Sprintf("[REDACTED-%08x]", h.Sum32())
}

func Remove(string) string { return Removed }

// Pseudonymize reduces value to its initials: "Jane Q Doe" -> "J.Q.D.".
func Pseudonymize(value string) string {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		return Removed
	}
	var b strings.Builder
	for _, tok := range tokens {
		r, _ := utf8.DecodeRuneInString(tok)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteByte('.')
	}
	return b.String()
}

// Regex replaces every match of rule.RegexPattern with four mask characters.
// A missing or invalid pattern falls back to Mask; an invalid one is also
// reported through ErrInvalidPattern.
func Regex(value string, rule *models.Rule) (string, error) {
	if rule.RegexPattern == "" {
		return Mask(value, rule), nil
	}
	re, err := regexp.Compile(rule.RegexPattern)
	if err != nil {
		return Mask(value, rule), fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return re.ReplaceAllLiteralString(value, strings.Repeat(string(rule.MaskRune()), regexMaskWidth)), nil
}
