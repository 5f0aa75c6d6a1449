// Package store defines the typed property store that media descriptors live
// in, and an in-memory implementation of it.
//
// Objects are identified by ObjectID and carry a class name. Properties are
// addressed by (object, tag) and hold one typed Value. Int64 array
// properties are addressed 1-based.
package store

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/format"
)

// ObjectID identifies an object in a store.
type ObjectID string

// Tag identifies a property.
type Tag uint32

// Type is the value type of a property.
type Type int

const (
	TypeInvalid Type = iota
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUInt32
	TypeString
	TypeRational
	TypeBool
	TypeBytes
	TypeObjectRef
	TypeInt64Array
)

var typeNames = map[Type]string{
	TypeInt16:      "int16",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeUInt32:     "uint32",
	TypeString:     "string",
	TypeRational:   "rational",
	TypeBool:       "bool",
	TypeBytes:      "bytes",
	TypeObjectRef:  "objectref",
	TypeInt64Array: "int64array",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func typeByName(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return TypeInvalid, false
}

// Value is a tagged property value. Only the field matching Type is used.
type Value struct {
	Type  Type
	Int   int64
	Rat   format.Rational
	Str   string
	Bool  bool
	Bytes []byte
	Ref   ObjectID
	Array []int64
}

// Def is a dynamic property definition. Codecs register the private
// properties they persist in descriptors.
type Def struct {
	Tag   Tag
	Name  string
	Type  Type
	Class string
}

// Store is the property layer consumed by codecs and the media session.
type Store interface {
	// ByteOrder is the native order of the file backing the store. Bytes
	// properties holding multi-byte data use it.
	ByteOrder() binary.ByteOrder

	NewObject(class string) ObjectID
	Class(id ObjectID) (string, error)
	Objects(class string) []ObjectID
	// DeleteObject removes an object and all of its properties.
	DeleteObject(id ObjectID) error

	// RegisterProperty adds a definition. Registering an identical
	// definition twice is not an error; a conflicting one is.
	RegisterProperty(d Def) error
	Property(tag Tag) (Def, bool)

	Get(id ObjectID, tag Tag) (Value, error)
	Set(id ObjectID, tag Tag, v Value) error
	Has(id ObjectID, tag Tag) bool
	Delete(id ObjectID, tag Tag) error

	// Array properties, 1-based.
	WriteInt64Array(id ObjectID, tag Tag, vals []int64) error
	AppendInt64(id ObjectID, tag Tag, v int64) (int64, error)
	Int64At(id ObjectID, tag Tag, i int64) (int64, error)
	ArrayLen(id ObjectID, tag Tag) (int64, error)
}
