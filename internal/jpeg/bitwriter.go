package jpeg

import "bytes"

// bitWriter provides bit-level writing into a byte buffer. Bits are written
// MSB-first; every 0xFF data byte is followed by a stuffed 0x00.
type bitWriter struct {
	buf      *bytes.Buffer
	base     int64  // absolute stream position of buf[0]
	bitBuf   uint32 // current bits being accumulated
	bitCount int    // number of bits in bitBuf (0-31)
}

func newBitWriter(buf *bytes.Buffer, base int64) *bitWriter {
	return &bitWriter{buf: buf, base: base}
}

// writeBits writes the low n bits of val (MSB first).
func (bw *bitWriter) writeBits(val uint32, n int) {
	if n <= 0 {
		return
	}
	bw.bitBuf = bw.bitBuf<<uint(n) | val&(1<<uint(n)-1)
	bw.bitCount += n
	for bw.bitCount >= 8 {
		bw.flushByte()
	}
}

// flushByte writes one complete byte from the bit buffer.
func (bw *bitWriter) flushByte() {
	shift := bw.bitCount - 8
	b := byte(bw.bitBuf >> uint(shift))
	bw.bitBuf &= 1<<uint(shift) - 1
	bw.bitCount = shift

	bw.buf.WriteByte(b)
	// Insert a 0x00 byte after each 0xFF to prevent marker confusion.
	if b == 0xFF {
		bw.buf.WriteByte(0x00)
	}
}

// byteAlign pads the current byte with 1 bits.
func (bw *bitWriter) byteAlign() {
	if bw.bitCount > 0 {
		bw.writeBits(1<<uint(8-bw.bitCount)-1, 8-bw.bitCount)
	}
}

// pos returns the absolute stream position of the next byte.
func (bw *bitWriter) pos() int64 {
	return bw.base + int64(bw.buf.Len())
}

// writeRestart byte-aligns, then pads with 0xFF fill bytes until
// (pos+2) mod 4 == 0 and writes the RSTn marker without stuffing. It returns
// the number of fill bytes written.
func (bw *bitWriter) writeRestart(n int) int {
	bw.byteAlign()
	pad := int((4 - (bw.pos()+2)%4) % 4)
	for i := 0; i < pad; i++ {
		bw.buf.WriteByte(0xFF)
	}
	bw.buf.Write([]byte{0xFF, MarkerRST0 + byte(n&7)})
	return pad
}

// flush pads the final byte with 1 bits.
func (bw *bitWriter) flush() {
	bw.byteAlign()
}
