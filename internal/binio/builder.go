package binio

import "encoding/binary"

// Builder appends byte-order aware integers to a growing slice.
type Builder struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewBuilder creates a builder with the given order and initial capacity.
func NewBuilder(order binary.AppendByteOrder, capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity), order: order}
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	b.buf = b.order.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.buf = b.order.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Pad appends n copies of v.
func (b *Builder) Pad(n int, v byte) *Builder {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, v)
	}
	return b
}

// PutU32At overwrites a previously appended 32-bit value.
func (b *Builder) PutU32At(pos int, v uint32) {
	var tmp [4]byte
	b.order.AppendUint32(tmp[:0], v)
	copy(b.buf[pos:pos+4], tmp[:])
}

// Len returns the number of bytes built so far.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes returns the built slice.
func (b *Builder) Bytes() []byte { return b.buf }
