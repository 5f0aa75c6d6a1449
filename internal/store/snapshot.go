package store

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"mediakit/internal/format"
)

// Document is the serializable form of a store.
type Document struct {
	ByteOrder  string      `yaml:"byte_order"`
	Properties []DefDoc    `yaml:"properties,omitempty"`
	Objects    []ObjectDoc `yaml:"objects"`
}

type DefDoc struct {
	Tag   Tag    `yaml:"tag"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Class string `yaml:"class,omitempty"`
}

type ObjectDoc struct {
	ID    ObjectID   `yaml:"id"`
	Class string     `yaml:"class"`
	Props []ValueDoc `yaml:"props,omitempty"`
}

type ValueDoc struct {
	Tag   Tag     `yaml:"tag"`
	Type  string  `yaml:"type"`
	Int   int64   `yaml:"int,omitempty"`
	Num   int32   `yaml:"num,omitempty"`
	Den   int32   `yaml:"den,omitempty"`
	Str   string  `yaml:"str,omitempty"`
	Bool  bool    `yaml:"bool,omitempty"`
	Data  string  `yaml:"data,omitempty"`
	Ref   string  `yaml:"ref,omitempty"`
	Array []int64 `yaml:"array,omitempty,flow"`
}

// Snapshot captures the whole store.
func (m *Memory) Snapshot() Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := Document{ByteOrder: "little"}
	if m.order == binary.BigEndian {
		doc.ByteOrder = "big"
	}

	tags := make([]Tag, 0, len(m.defs))
	for t := range m.defs {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	for _, t := range tags {
		d := m.defs[t]
		doc.Properties = append(doc.Properties, DefDoc{Tag: d.Tag, Name: d.Name, Type: d.Type.String(), Class: d.Class})
	}

	for _, id := range m.created {
		o := m.objects[id]
		od := ObjectDoc{ID: id, Class: o.class}
		for _, t := range sortedTags(o.props) {
			v := o.props[t]
			vd := ValueDoc{Tag: t, Type: v.Type.String()}
			switch v.Type {
			case TypeInt16, TypeInt32, TypeInt64, TypeUInt32:
				vd.Int = v.Int
			case TypeRational:
				vd.Num, vd.Den = v.Rat.Num, v.Rat.Den
			case TypeString:
				vd.Str = v.Str
			case TypeBool:
				vd.Bool = v.Bool
			case TypeBytes:
				vd.Data = base64.StdEncoding.EncodeToString(v.Bytes)
			case TypeObjectRef:
				vd.Ref = string(v.Ref)
			case TypeInt64Array:
				vd.Array = append([]int64(nil), v.Array...)
			}
			od.Props = append(od.Props, vd)
		}
		doc.Objects = append(doc.Objects, od)
	}
	return doc
}

// Restore builds a store from a snapshot.
func Restore(doc Document, logger *slog.Logger) (*Memory, error) {
	var order binary.ByteOrder = binary.LittleEndian
	switch doc.ByteOrder {
	case "little", "":
	case "big":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("store: unknown byte order %q", doc.ByteOrder)
	}
	m := NewMemory(order, logger)

	for _, dd := range doc.Properties {
		t, ok := typeByName(dd.Type)
		if !ok {
			return nil, fmt.Errorf("store: property %q has unknown type %q", dd.Name, dd.Type)
		}
		if err := m.RegisterProperty(Def{Tag: dd.Tag, Name: dd.Name, Type: t, Class: dd.Class}); err != nil {
			return nil, err
		}
	}

	for _, od := range doc.Objects {
		m.addLocked(od.ID, od.Class)
		o := m.objects[od.ID]
		for _, vd := range od.Props {
			t, ok := typeByName(vd.Type)
			if !ok {
				return nil, fmt.Errorf("store: object %s tag %d has unknown type %q", od.ID, vd.Tag, vd.Type)
			}
			v := Value{Type: t}
			switch t {
			case TypeInt16, TypeInt32, TypeInt64, TypeUInt32:
				v.Int = vd.Int
			case TypeRational:
				v.Rat = format.Rational{Num: vd.Num, Den: vd.Den}
			case TypeString:
				v.Str = vd.Str
			case TypeBool:
				v.Bool = vd.Bool
			case TypeBytes:
				data, err := base64.StdEncoding.DecodeString(vd.Data)
				if err != nil {
					return nil, fmt.Errorf("store: object %s tag %d: %w", od.ID, vd.Tag, err)
				}
				v.Bytes = data
			case TypeObjectRef:
				v.Ref = ObjectID(vd.Ref)
			case TypeInt64Array:
				v.Array = append([]int64{}, vd.Array...)
			}
			o.props[vd.Tag] = v
		}
	}
	return m, nil
}

// Save writes a YAML snapshot of m to w.
func (m *Memory) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m.Snapshot()); err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	return enc.Close()
}

// Load reads a YAML snapshot written by Save.
func Load(r io.Reader, logger *slog.Logger) (*Memory, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return Restore(doc, logger)
}
