// Package binio provides bounds-checked, byte-order aware readers and
// builders over in-memory byte slices.
package binio

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/mediaerr"
)

// Cursor reads integers from a byte slice without ever running past its end.
type Cursor struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// NewCursor creates a cursor positioned at the start of buf.
func NewCursor(buf []byte, order binary.ByteOrder) *Cursor {
	if order == nil {
		order = binary.BigEndian
	}
	return &Cursor{buf: buf, order: order}
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return mediaerr.E(mediaerr.KindResource, "binio",
			fmt.Errorf("need %d bytes at %d of %d: %w", n, c.pos, len(c.buf), mediaerr.ErrBufferTooSmall))
	}
	return nil
}

// Order returns the byte order used for multi-byte reads.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// SetOrder changes the byte order for subsequent reads.
func (c *Cursor) SetOrder(order binary.ByteOrder) { c.order = order }

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total length of the underlying slice.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek moves to an absolute position inside the slice.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return mediaerr.E(mediaerr.KindResource, "binio",
			fmt.Errorf("seek to %d outside %d bytes: %w", pos, len(c.buf), mediaerr.ErrBufferTooSmall))
	}
	c.pos = pos
	return nil
}

// Skip advances n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// Bytes returns the next n bytes. The result aliases the underlying slice.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}
