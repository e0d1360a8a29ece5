// Package record models the metadata trees produced by media parsers: an
// insertion-ordered Record of keys to a closed set of Value variants.
package record

import (
	"regexp"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindPattern
	KindBinary
	KindRecord
	KindArray
	KindMap
	KindFunc
)

var kindNames = [...]string{
	KindNull:    "null",
	KindString:  "string",
	KindNumber:  "number",
	KindBool:    "bool",
	KindDate:    "date",
	KindPattern: "pattern",
	KindBinary:  "binary",
	KindRecord:  "record",
	KindArray:   "array",
	KindMap:     "map",
	KindFunc:    "func",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is one node of a metadata tree.
//
// The set of implementations is closed: Null, String, Number, Bool, Date,
// Pattern, Binary, *Record, Array, Map and Func.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the absent/empty scalar.
	Null struct{}
	// String is a text scalar.
	String string
	// Number is a numeric scalar. All numbers are float64, like the
	// parsers that produce these trees.
	Number float64
	// Bool is a boolean scalar.
	Bool bool
)

// Date is a date-like scalar.
type Date struct{ time.Time }

// Pattern is a regular-expression scalar.
type Pattern struct{ *regexp.Regexp }

// Binary is an opaque byte payload such as embedded artwork.
// Format is an optional MIME type hint ("image/jpeg").
type Binary struct {
	Data   []byte
	Format string
}

// Array is an ordered list of values. Elements may be of mixed kinds.
type Array []Value

// Entry is one key/value pair of a Map.
type Entry struct {
	Key   Value
	Value Value
}

// Map is a map-like value whose entries are handled as an Array of
// two-element [key, value] arrays.
type Map []Entry

// Func marks a callable member. It is ignored by every export path.
type Func struct{ Name string }

func (Null) Kind() Kind    { return KindNull }
func (String) Kind() Kind  { return KindString }
func (Number) Kind() Kind  { return KindNumber }
func (Bool) Kind() Kind    { return KindBool }
func (Date) Kind() Kind    { return KindDate }
func (Pattern) Kind() Kind { return KindPattern }
func (Binary) Kind() Kind  { return KindBinary }
func (*Record) Kind() Kind { return KindRecord }
func (Array) Kind() Kind   { return KindArray }
func (Map) Kind() Kind     { return KindMap }
func (Func) Kind() Kind    { return KindFunc }

func (Null) sealed()    {}
func (String) sealed()  {}
func (Number) sealed()  {}
func (Bool) sealed()    {}
func (Date) sealed()    {}
func (Pattern) sealed() {}
func (Binary) sealed()  {}
func (*Record) sealed() {}
func (Array) sealed()   {}
func (Map) sealed()     {}
func (Func) sealed()    {}

// Pairs returns the map entries as [key, value] arrays.
func (m Map) Pairs() Array {
	out := make(Array, len(m))
	for i, e := range m {
		out[i] = Array{orNull(e.Key), orNull(e.Value)}
	}
	return out
}

// ObjectLike reports whether v is a composite value: a record, an array,
// a map or a binary payload.
func ObjectLike(v Value) bool {
	switch v.(type) {
	case *Record, Array, Map, Binary:
		return true
	}
	return false
}

// IsScalar reports whether v is a scalar (not composite and not a Func).
func IsScalar(v Value) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case Null, String, Number, Bool, Date, Pattern:
		return true
	}
	return false
}

func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}
