// Package document models an entity as a tree of scalars, objects and arrays
// and resolves dotted paths against it.
//
// A Value is immutable from the outside except through Set, which writes into
// an object tree in place. Callers that share a Value (cached entities, for
// example) must Clone it before calling Set.
package document

import (
	"fmt"
	"maps"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one node of a document. The zero Value is null.
//
// Numbers keep their source literal so stringifying a number for redaction
// reproduces what the caller stored ("42", "1.5", "1e3").
type Value struct {
	kind Kind
	b    bool
	s    string // string content, or the number literal
	obj  map[string]Value
	arr  []Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// Number wraps a JSON number literal. The literal is not re-validated.
func Number(literal string) Value { return Value{kind: KindNumber, s: literal} }

func Int(n int64) Value { return Number(strconv.FormatInt(n, 10)) }

func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'f', -1, 64)) }

// Object wraps fields. A nil map yields an empty object.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsObject() bool { return v.kind == KindObject }

// Field returns the named member of an object. Non-objects have no fields.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Len reports the number of members of an object or items of an array.
func (v Value) Len() int {
	switch v.kind {
	case KindObject:
		return len(v.obj)
	case KindArray:
		return len(v.arr)
	}
	return 0
}

// Scalar returns the string form of a bool, number or string leaf.
// Null, objects and arrays are not scalars.
func (v Value) Scalar() (string, bool) {
	switch v.kind {
	case KindString, KindNumber:
		return v.s, true
	case KindBool:
		return strconv.FormatBool(v.b), true
	}
	return "", false
}

// Clone returns a deep copy; mutating the copy never affects v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindObject:
		out := make(map[string]Value, len(v.obj))
		for k, f := range v.obj {
			out[k] = f.Clone()
		}
		return Value{kind: KindObject, obj: out}
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: out}
	}
	return v
}

// Equal reports deep equality. Numbers compare by literal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber, KindString:
		return v.s == o.s
	case KindObject:
		return maps.EqualFunc(v.obj, o.obj, Value.Equal)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}
