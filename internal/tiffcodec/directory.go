package tiffcodec

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/binio"
	"mediakit/internal/mediaerr"
)

const (
	// HeaderSize is the size of the fixed file header.
	HeaderSize = 8
	// Version is the header's fixed version constant.
	Version = 42
	// EntryLength is the size of one directory entry.
	EntryLength = 12

	intelOrder    = 0x4949 // "II"
	motorolaOrder = 0x4D4D // "MM"
)

// DataType is the type field of a directory entry.
type DataType uint16

const (
	TypeByte DataType = iota + 1
	TypeASCII
	TypeShort
	TypeLong
	TypeRational
	TypeSByte
	TypeUndefined
	TypeSShort
	TypeSLong
	TypeSRational
)

var typeSizes = map[DataType]uint32{
	TypeByte:      1,
	TypeASCII:     1,
	TypeShort:     2,
	TypeLong:      4,
	TypeRational:  8,
	TypeSByte:     1,
	TypeUndefined: 1,
	TypeSShort:    2,
	TypeSLong:     4,
	TypeSRational: 8,
}

// Entry is one directory entry. Data holds the encoded value bytes in the
// directory's byte order, whether they are stored inline or out of line.
type Entry struct {
	Tag   uint16
	Type  DataType
	Count uint32
	Data  []byte
}

// size is the byte length of the entry's values. It is computed in 64 bits
// so that a hostile count cannot wrap into an inline size.
func (e Entry) size() (uint64, bool) {
	sz, ok := typeSizes[e.Type]
	return uint64(sz) * uint64(e.Count), ok
}

// Uints decodes a Byte, Short or Long entry.
func (e Entry) Uints(order binary.ByteOrder) ([]uint32, error) {
	c := binio.NewCursor(e.Data, order)
	n := uint64(e.Count)
	if sz, ok := typeSizes[e.Type]; ok && uint64(len(e.Data))/uint64(sz) < n {
		return nil, malformed("tag %d: %d values in %d bytes", e.Tag, e.Count, len(e.Data))
	}
	out := make([]uint32, 0, n)
	for i := uint32(0); i < e.Count; i++ {
		var v uint32
		switch e.Type {
		case TypeByte, TypeUndefined:
			b, err := c.U8()
			if err != nil {
				return nil, err
			}
			v = uint32(b)
		case TypeShort:
			s, err := c.U16()
			if err != nil {
				return nil, err
			}
			v = uint32(s)
		case TypeLong:
			l, err := c.U32()
			if err != nil {
				return nil, err
			}
			v = l
		default:
			return nil, malformed("tag %d: type %d is not an integer", e.Tag, e.Type)
		}
		out = append(out, v)
	}
	return out, nil
}

// Uint decodes the first value of an integer entry.
func (e Entry) Uint(order binary.ByteOrder) (uint32, error) {
	vals, err := e.Uints(order)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, malformed("tag %d: empty", e.Tag)
	}
	return vals[0], nil
}

// Rational decodes the first value of a Rational entry.
func (e Entry) Rational(order binary.ByteOrder) (num, den uint32, err error) {
	if e.Type != TypeRational && e.Type != TypeSRational {
		return 0, 0, malformed("tag %d: type %d is not a rational", e.Tag, e.Type)
	}
	c := binio.NewCursor(e.Data, order)
	if num, err = c.U32(); err != nil {
		return 0, 0, err
	}
	den, err = c.U32()
	return num, den, err
}

func malformed(format string, args ...any) error {
	return mediaerr.E(mediaerr.KindFormat, "tiffcodec",
		fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), mediaerr.ErrMalformedDirectory))
}

// Entry constructors. order must match the directory the entry goes into.

func shortEntry(order binary.ByteOrder, tag uint16, vals ...uint16) Entry {
	b := binio.NewBuilder(order.(binary.AppendByteOrder), 2*len(vals))
	for _, v := range vals {
		b.U16(v)
	}
	return Entry{Tag: tag, Type: TypeShort, Count: uint32(len(vals)), Data: b.Bytes()}
}

func longEntry(order binary.ByteOrder, tag uint16, vals ...uint32) Entry {
	b := binio.NewBuilder(order.(binary.AppendByteOrder), 4*len(vals))
	for _, v := range vals {
		b.U32(v)
	}
	return Entry{Tag: tag, Type: TypeLong, Count: uint32(len(vals)), Data: b.Bytes()}
}

func rationalEntry(order binary.ByteOrder, tag uint16, num, den uint32) Entry {
	b := binio.NewBuilder(order.(binary.AppendByteOrder), 8).U32(num).U32(den)
	return Entry{Tag: tag, Type: TypeRational, Count: 1, Data: b.Bytes()}
}

func undefinedEntry(tag uint16, data []byte) Entry {
	return Entry{Tag: tag, Type: TypeUndefined, Count: uint32(len(data)), Data: append([]byte(nil), data...)}
}

// Directory is a single image file directory.
type Directory struct {
	Order   binary.ByteOrder
	Entries []Entry
}

// Get returns the entry for tag.
func (d *Directory) Get(tag uint16) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Set adds or replaces an entry, keeping entries sorted by tag.
func (d *Directory) Set(e Entry) {
	for i, cur := range d.Entries {
		if cur.Tag == e.Tag {
			d.Entries[i] = e
			return
		}
		if cur.Tag > e.Tag {
			d.Entries = append(d.Entries[:i], append([]Entry{e}, d.Entries[i:]...)...)
			return
		}
	}
	d.Entries = append(d.Entries, e)
}

// Encode lays the directory out at offset, which must be even. The entry
// table comes first and is followed by the out-of-line values, each placed
// at the next free word-aligned offset. The next-directory pointer is zero.
func (d *Directory) Encode(offset uint32) ([]byte, error) {
	if offset%2 != 0 {
		return nil, mediaerr.Errorf(mediaerr.KindEncode, "tiffcodec.Encode", "odd directory offset %d", offset)
	}
	order := d.Order.(binary.AppendByteOrder)
	tableLen := 2 + EntryLength*len(d.Entries) + 4
	table := binio.NewBuilder(order, tableLen)
	blob := binio.NewBuilder(order, 0)
	next := offset + uint32(tableLen)

	table.U16(uint16(len(d.Entries)))
	for _, e := range d.Entries {
		sz, ok := e.size()
		if !ok || sz != uint64(len(e.Data)) {
			return nil, mediaerr.Errorf(mediaerr.KindEncode, "tiffcodec.Encode",
				"tag %d: %d data bytes for %d values of type %d", e.Tag, len(e.Data), e.Count, e.Type)
		}
		table.U16(e.Tag).U16(uint16(e.Type)).U32(e.Count)
		if sz <= 4 {
			table.Raw(e.Data).Pad(4-int(sz), 0)
			continue
		}
		table.U32(next)
		blob.Raw(e.Data)
		next += uint32(sz)
		if next%2 != 0 {
			blob.U8(0)
			next++
		}
	}
	table.U32(0)
	return append(table.Bytes(), blob.Bytes()...), nil
}

// ReaderAt reads len(p) bytes at an absolute offset.
type ReaderAt interface {
	ReadAt(p []byte, off int64) error
}

// ParseDirectory reads the directory at offset. Out-of-line values are
// fetched from their recorded offsets. Entries of unknown type are skipped.
func ParseDirectory(r ReaderAt, order binary.ByteOrder, offset int64, limit int64) (*Directory, error) {
	head := make([]byte, 2)
	if err := r.ReadAt(head, offset); err != nil {
		return nil, fmt.Errorf("directory count: %w", err)
	}
	n := int(order.Uint16(head))
	raw := make([]byte, n*EntryLength)
	if err := r.ReadAt(raw, offset+2); err != nil {
		return nil, fmt.Errorf("directory entries: %w", err)
	}
	d := &Directory{Order: order}
	c := binio.NewCursor(raw, order)
	for i := 0; i < n; i++ {
		tag, _ := c.U16()
		typ, _ := c.U16()
		count, _ := c.U32()
		slot, err := c.Bytes(4)
		if err != nil {
			return nil, err
		}
		e := Entry{Tag: tag, Type: DataType(typ), Count: count}
		sz, ok := e.size()
		if !ok {
			continue
		}
		if sz <= 4 {
			e.Data = append([]byte(nil), slot[:sz]...)
		} else {
			at := int64(order.Uint32(slot))
			if sz > uint64(limit) || at+int64(sz) > limit {
				return nil, malformed("tag %d: %d bytes at %d past end %d", tag, sz, at, limit)
			}
			e.Data = make([]byte, sz)
			if err := r.ReadAt(e.Data, at); err != nil {
				return nil, fmt.Errorf("tag %d value: %w", tag, err)
			}
		}
		d.Entries = append(d.Entries, e)
	}
	return d, nil
}

// EncodeHeader returns the 8-byte file header.
func EncodeHeader(order binary.ByteOrder, dirOffset uint32) []byte {
	mark := uint16(intelOrder)
	if order == binary.BigEndian {
		mark = motorolaOrder
	}
	return binio.NewBuilder(order.(binary.AppendByteOrder), HeaderSize).
		U16(mark).U16(Version).U32(dirOffset).Bytes()
}

// Header is the decoded file header.
type Header struct {
	Order     binary.ByteOrder
	Version   uint16
	DirOffset uint32
}

// ParseHeader decodes the file header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, malformed("header is %d bytes", len(b))
	}
	var h Header
	// The order mark reads the same in either order.
	switch binary.LittleEndian.Uint16(b) {
	case intelOrder:
		h.Order = binary.LittleEndian
	case motorolaOrder:
		h.Order = binary.BigEndian
	default:
		return Header{}, malformed("unknown byte order mark 0x%X", binary.LittleEndian.Uint16(b))
	}
	h.Version = h.Order.Uint16(b[2:])
	if h.Version != Version {
		return Header{}, malformed("version %d", h.Version)
	}
	h.DirOffset = h.Order.Uint32(b[4:])
	return h, nil
}
