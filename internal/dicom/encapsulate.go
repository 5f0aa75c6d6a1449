package dicom

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/binio"
	"mediakit/internal/mediaerr"
)

// Encapsulated pixel data tags: items are (FFFE,E000), the sequence ends
// with (FFFE,E0DD).
const (
	itemGroup     uint16 = 0xFFFE
	itemElement   uint16 = 0xE000
	seqDelimElem  uint16 = 0xE0DD

	pixelDataGroup   uint16 = 0x7FE0
	pixelDataElement uint16 = 0x0010
	undefinedLength  uint32 = 0xFFFFFFFF
)

// itemLength is the padded length of a frame item's value.
func itemLength(frame []byte) uint32 {
	n := uint32(len(frame))
	if n%2 != 0 {
		n++
	}
	return n
}

// OffsetTable returns the Basic Offset Table for frames: the offset of each
// frame item measured from the first byte after the table item.
func OffsetTable(frames [][]byte) []uint32 {
	offsets := make([]uint32, len(frames))
	cur := uint32(0)
	for i, f := range frames {
		offsets[i] = cur
		cur += 8 + itemLength(f)
	}
	return offsets
}

// Encapsulate builds encapsulated pixel data: the Basic Offset Table item,
// one item per frame padded to even length, and the sequence delimiter.
// Everything is little endian.
func Encapsulate(frames [][]byte) []byte {
	size := 8 + 4*len(frames) + 8
	for _, f := range frames {
		size += 8 + int(itemLength(f))
	}
	b := binio.NewBuilder(binary.LittleEndian, size)

	offsets := OffsetTable(frames)
	b.U16(itemGroup)
	b.U16(itemElement)
	b.U32(uint32(4 * len(offsets)))
	for _, o := range offsets {
		b.U32(o)
	}
	for _, f := range frames {
		b.U16(itemGroup)
		b.U16(itemElement)
		b.U32(itemLength(f))
		b.Raw(f)
		if len(f)%2 != 0 {
			b.U8(0)
		}
	}
	b.U16(itemGroup)
	b.U16(seqDelimElem)
	b.U32(0)
	return b.Bytes()
}

// PixelDataElement wraps encapsulated pixel data in an explicit VR little
// endian (7FE0,0010) OB element of undefined length.
func PixelDataElement(encapsulated []byte) []byte {
	b := binio.NewBuilder(binary.LittleEndian, 12+len(encapsulated))
	b.U16(pixelDataGroup)
	b.U16(pixelDataElement)
	b.Raw([]byte("OB"))
	b.U16(0)
	b.U32(undefinedLength)
	b.Raw(encapsulated)
	return b.Bytes()
}

// Decapsulate splits encapsulated pixel data back into the offset table and
// the frame items. Frames keep any pad byte.
func Decapsulate(data []byte) (offsets []uint32, frames [][]byte, err error) {
	const op = "dicom.Decapsulate"
	c := binio.NewCursor(data, binary.LittleEndian)
	item := func() (uint16, []byte, error) {
		g, err := c.U16()
		if err != nil {
			return 0, nil, err
		}
		e, err := c.U16()
		if err != nil {
			return 0, nil, err
		}
		n, err := c.U32()
		if err != nil {
			return 0, nil, err
		}
		if g != itemGroup {
			return 0, nil, mediaerr.Errorf(mediaerr.KindFormat, op, "tag (%04X,%04X) in encapsulated data", g, e)
		}
		if e == seqDelimElem {
			return e, nil, nil
		}
		v, err := c.Bytes(int(n))
		if err != nil {
			return 0, nil, mediaerr.E(mediaerr.KindFormat, op, fmt.Errorf("item of %d bytes: %w", n, err))
		}
		return e, v, nil
	}

	e, bot, err := item()
	if err != nil {
		return nil, nil, err
	}
	if e != itemElement || len(bot)%4 != 0 {
		return nil, nil, mediaerr.Errorf(mediaerr.KindFormat, op, "missing basic offset table")
	}
	for i := 0; i < len(bot); i += 4 {
		offsets = append(offsets, binary.LittleEndian.Uint32(bot[i:]))
	}
	for {
		e, v, err := item()
		if err != nil {
			return offsets, frames, err
		}
		if e == seqDelimElem {
			return offsets, frames, nil
		}
		if e != itemElement {
			return offsets, frames, mediaerr.Errorf(mediaerr.KindFormat, op, "unexpected item (FFFE,%04X)", e)
		}
		frames = append(frames, v)
	}
}
