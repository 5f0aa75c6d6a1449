package jpeg

// bitReader reads entropy-coded bits from a byte slice, removing stuffed
// zero bytes. When it reaches a marker it stops consuming input and supplies
// zero bits, leaving the marker for the caller.
type bitReader struct {
	data []byte
	pos  int
	acc  uint32
	n    int
	// marker is the code of the marker the reader stopped at, 0 if none.
	// markerPos is the offset of its 0xFF.
	marker    byte
	markerPos int
	// starved counts zero bytes supplied after reaching a marker.
	starved int
}

func newBitReader(data []byte, pos int) *bitReader {
	return &bitReader{data: data, pos: pos}
}

// fill loads bytes until at least 25 bits are buffered.
func (br *bitReader) fill() {
	for br.n <= 24 {
		br.acc = br.acc<<8 | uint32(br.nextByte())
		br.n += 8
	}
}

func (br *bitReader) nextByte() byte {
	if br.marker != 0 || br.pos >= len(br.data) {
		br.starved++
		return 0
	}
	b := br.data[br.pos]
	if b != 0xFF {
		br.pos++
		return b
	}
	// Skip fill bytes.
	p := br.pos + 1
	for p < len(br.data) && br.data[p] == 0xFF {
		p++
	}
	if p >= len(br.data) {
		br.pos = len(br.data)
		br.starved++
		return 0
	}
	if br.data[p] == 0x00 {
		br.pos = p + 1
		return 0xFF
	}
	br.marker = br.data[p]
	br.markerPos = p - 1
	br.starved++
	return 0
}

func (br *bitReader) bits(n int) uint32 {
	if n == 0 {
		return 0
	}
	if br.n < n {
		br.fill()
	}
	v := br.acc >> uint(br.n-n) & (1<<uint(n) - 1)
	br.n -= n
	return v
}

func (br *bitReader) bit() uint32 { return br.bits(1) }

// peek8 returns the next 8 bits without consuming them.
func (br *bitReader) peek8() uint32 {
	if br.n < 8 {
		br.fill()
	}
	return br.acc >> uint(br.n-8) & 0xFF
}

// exhausted reports whether every bit still buffered was made up after the
// reader reached a marker or the end of data.
func (br *bitReader) exhausted() bool {
	return br.starved > 0 && br.n <= 8*br.starved
}

// reset discards buffered bits, as at a restart boundary.
func (br *bitReader) reset() {
	br.acc, br.n, br.starved = 0, 0, 0
}

// decode reads one Huffman symbol. ok is false for a code that is not in
// the table.
func (br *bitReader) decode(h *huffDecoder) (byte, bool) {
	if e := h.lookup[br.peek8()]; e != 0 {
		br.bits(int(e >> 8))
		return byte(e), true
	}
	code := int32(br.bits(8))
	for l := 9; l <= 16; l++ {
		code = code<<1 | int32(br.bit())
		if code <= h.maxcode[l] {
			return h.values[h.valptr[l]+code-h.mincode[l]], true
		}
	}
	return 0, false
}

// receiveExtend reads an s-bit magnitude and sign-extends it (F.2.2.1).
func (br *bitReader) receiveExtend(s int) int32 {
	if s == 0 {
		return 0
	}
	v := int32(br.bits(s))
	if v < 1<<uint(s-1) {
		v += -1<<uint(s) + 1
	}
	return v
}
