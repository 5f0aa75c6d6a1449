package jpeg

import (
	"fmt"

	"mediakit/internal/mediaerr"
)

// Validate checks that the spec describes a complete prefix code.
func (s HuffmanSpec) Validate() error {
	total := 0
	code := 0
	for l := 0; l < 16; l++ {
		n := int(s.Counts[l])
		total += n
		code += n
		if code > 1<<(l+1) {
			return fmt.Errorf("too many codes of length %d", l+1)
		}
		code <<= 1
	}
	if total != len(s.Values) {
		return fmt.Errorf("%d codes for %d values", total, len(s.Values))
	}
	if total > 256 {
		return fmt.Errorf("%d values", total)
	}
	return nil
}

// huffEncoder maps a symbol to its code and code length (Annex C).
type huffEncoder struct {
	code [256]uint16
	size [256]uint8
}

func newHuffEncoder(s HuffmanSpec) (*huffEncoder, error) {
	if err := s.Validate(); err != nil {
		return nil, mediaerr.E(mediaerr.KindEncode, "jpeg.huffman", err)
	}
	e := &huffEncoder{}
	code := uint16(0)
	k := 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(s.Counts[l-1]); i++ {
			e.code[s.Values[k]] = code
			e.size[s.Values[k]] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
	return e, nil
}

// huffDecoder decodes canonical codes by length (Annex F.2.2.3).
type huffDecoder struct {
	maxcode [18]int32
	valptr  [17]int32
	mincode [17]int32
	values  []byte
	// lookup resolves codes of up to 8 bits in one step: the high byte is
	// the code length, the low byte the symbol. Zero means "longer code".
	lookup [256]uint16
}

func newHuffDecoder(s HuffmanSpec) (*huffDecoder, error) {
	if err := s.Validate(); err != nil {
		return nil, mediaerr.E(mediaerr.KindFormat, "jpeg.huffman", err)
	}
	d := &huffDecoder{values: append([]byte(nil), s.Values...)}
	code := int32(0)
	k := int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(s.Counts[l-1])
		if n == 0 {
			d.maxcode[l] = -1
		} else {
			d.valptr[l] = k
			d.mincode[l] = code
			for i := int32(0); i < n; i++ {
				if l <= 8 {
					// Every 8-bit prefix starting with this code.
					c := (code + i) << (8 - l)
					for j := int32(0); j < 1<<(8-l); j++ {
						d.lookup[c+j] = uint16(l)<<8 | uint16(s.Values[k+i])
					}
				}
			}
			code += n
			k += n
			d.maxcode[l] = code - 1
		}
		code <<= 1
	}
	d.maxcode[17] = 0x7FFFFFFF
	return d, nil
}
