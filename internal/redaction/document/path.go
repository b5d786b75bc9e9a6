package document

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPath is returned by Set for a blank path.
	ErrEmptyPath = errors.New("empty path")
	// ErrNotObject is returned by Set when the root or an intermediate node
	// holds a scalar or array that would have to be overwritten.
	ErrNotObject = errors.New("path crosses a non-object value")
)

// Segments splits a dotted path. "profile.email" -> ["profile", "email"].
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get walks path segment by segment. It reports false when any segment is
// missing, when an intermediate node is null or not an object, and when the
// final value is null. Arrays are never traversed.
func Get(doc Value, path string) (Value, bool) {
	segments := Segments(path)
	if len(segments) == 0 {
		return Value{}, false
	}

	current := doc
	for _, seg := range segments {
		next, ok := current.Field(seg)
		if !ok {
			return Value{}, false
		}
		current = next
	}
	if current.IsNull() {
		return Value{}, false
	}
	return current, true
}

// Set assigns value at path inside doc, creating intermediate objects where a
// segment is missing or null. doc must be an object and is modified in place.
func Set(doc *Value, path string, value Value) error {
	segments := Segments(path)
	if len(segments) == 0 {
		return ErrEmptyPath
	}
	if doc.kind != KindObject {
		return fmt.Errorf("set %q: root is %s: %w", path, doc.kind, ErrNotObject)
	}

	current := doc.obj
	last := len(segments) - 1
	for i, seg := range segments[:last] {
		next, ok := current[seg]
		switch {
		case !ok || next.IsNull():
			next = Object(nil)
			current[seg] = next
		case next.kind != KindObject:
			return fmt.Errorf("set %q: %q is %s: %w", path, strings.Join(segments[:i+1], "."), next.kind, ErrNotObject)
		}
		current = next.obj
	}
	current[segments[last]] = value
	return nil
}
