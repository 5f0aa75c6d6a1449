package store

import (
	"errors"
	"fmt"

	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
)

func get(s Store, id ObjectID, tag Tag, want Type) (Value, error) {
	v, err := s.Get(id, tag)
	if err != nil {
		return Value{}, err
	}
	if v.Type != want {
		return Value{}, mediaerr.Errorf(mediaerr.KindFormat, "store.Get",
			"property %d of %s is %s, not %s", tag, id, v.Type, want)
	}
	return v, nil
}

func ReadInt16(s Store, id ObjectID, tag Tag) (int16, error) {
	v, err := get(s, id, tag, TypeInt16)
	return int16(v.Int), err
}

func WriteInt16(s Store, id ObjectID, tag Tag, x int16) error {
	return s.Set(id, tag, Value{Type: TypeInt16, Int: int64(x)})
}

func ReadInt32(s Store, id ObjectID, tag Tag) (int32, error) {
	v, err := get(s, id, tag, TypeInt32)
	return int32(v.Int), err
}

func WriteInt32(s Store, id ObjectID, tag Tag, x int32) error {
	return s.Set(id, tag, Value{Type: TypeInt32, Int: int64(x)})
}

func ReadInt64(s Store, id ObjectID, tag Tag) (int64, error) {
	v, err := get(s, id, tag, TypeInt64)
	return v.Int, err
}

func WriteInt64(s Store, id ObjectID, tag Tag, x int64) error {
	return s.Set(id, tag, Value{Type: TypeInt64, Int: x})
}

func ReadUInt32(s Store, id ObjectID, tag Tag) (uint32, error) {
	v, err := get(s, id, tag, TypeUInt32)
	return uint32(v.Int), err
}

func WriteUInt32(s Store, id ObjectID, tag Tag, x uint32) error {
	return s.Set(id, tag, Value{Type: TypeUInt32, Int: int64(x)})
}

func ReadString(s Store, id ObjectID, tag Tag) (string, error) {
	v, err := get(s, id, tag, TypeString)
	return v.Str, err
}

func WriteString(s Store, id ObjectID, tag Tag, x string) error {
	return s.Set(id, tag, Value{Type: TypeString, Str: x})
}

func ReadRational(s Store, id ObjectID, tag Tag) (format.Rational, error) {
	v, err := get(s, id, tag, TypeRational)
	return v.Rat, err
}

func WriteRational(s Store, id ObjectID, tag Tag, x format.Rational) error {
	return s.Set(id, tag, Value{Type: TypeRational, Rat: x})
}

func ReadBool(s Store, id ObjectID, tag Tag) (bool, error) {
	v, err := get(s, id, tag, TypeBool)
	return v.Bool, err
}

func WriteBool(s Store, id ObjectID, tag Tag, x bool) error {
	return s.Set(id, tag, Value{Type: TypeBool, Bool: x})
}

// ReadBytes returns a copy of a byte-array property.
func ReadBytes(s Store, id ObjectID, tag Tag) ([]byte, error) {
	v, err := get(s, id, tag, TypeBytes)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v.Bytes))
	copy(out, v.Bytes)
	return out, nil
}

func WriteBytes(s Store, id ObjectID, tag Tag, x []byte) error {
	cp := make([]byte, len(x))
	copy(cp, x)
	return s.Set(id, tag, Value{Type: TypeBytes, Bytes: cp})
}

func ReadRef(s Store, id ObjectID, tag Tag) (ObjectID, error) {
	v, err := get(s, id, tag, TypeObjectRef)
	return v.Ref, err
}

func WriteRef(s Store, id ObjectID, tag Tag, ref ObjectID) error {
	return s.Set(id, tag, Value{Type: TypeObjectRef, Ref: ref})
}

// ReadInt32Or returns a property or def when it is missing. Other errors are
// returned.
func ReadInt32Or(s Store, id ObjectID, tag Tag, def int32) (int32, error) {
	v, err := ReadInt32(s, id, tag)
	if IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// ReadStringOr returns a property or def when it is missing.
func ReadStringOr(s Store, id ObjectID, tag Tag, def string) (string, error) {
	v, err := ReadString(s, id, tag)
	if IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// IsNotFound reports whether err means the property is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, mediaerr.ErrPropertyNotFound)
}

func notFound(op string, id ObjectID, tag Tag) error {
	return mediaerr.E(mediaerr.KindConfiguration, op,
		fmt.Errorf("object %s tag %d: %w", id, tag, mediaerr.ErrPropertyNotFound))
}
