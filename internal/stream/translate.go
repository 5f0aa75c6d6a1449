package stream

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
)

// Reorder converts interleaved pixels from one RGB component layout to
// another. Components may be 8 or 16 bits; 16-bit words use order. A
// component present in dst but missing from src ('A' or 'F') is filled with
// its maximum value. Bit depths are rescaled by replication (8 to 16) or
// truncation (16 to 8).
func Reorder(src []byte, from, to format.Layout, order binary.ByteOrder) ([]byte, error) {
	if from.Equal(to) {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}
	for _, c := range append(append(format.Layout{}, from...), to...) {
		if c.Bits != 8 && c.Bits != 16 {
			return nil, mediaerr.Errorf(mediaerr.KindUnsupported, "stream.Reorder",
				"component %q has %d bits: %w", c.Code, c.Bits, mediaerr.ErrUnsupportedFormat)
		}
	}
	inPix := from.BytesPerPixel()
	outPix := to.BytesPerPixel()
	if inPix == 0 || len(src)%inPix != 0 {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "stream.Reorder",
			"%d bytes is not a whole number of %d-byte pixels", len(src), inPix)
	}

	// Byte offset of each source component.
	srcOff := make(map[byte]int, len(from))
	srcBits := make(map[byte]uint8, len(from))
	off := 0
	for _, c := range from {
		srcOff[c.Code] = off
		srcBits[c.Code] = c.Bits
		off += int(c.Bits) / 8
	}

	pixels := len(src) / inPix
	out := make([]byte, pixels*outPix)
	for p := 0; p < pixels; p++ {
		in := src[p*inPix : (p+1)*inPix]
		dst := out[p*outPix : (p+1)*outPix]
		o := 0
		for _, c := range to {
			v16 := uint16(0xFFFF)
			if so, ok := srcOff[c.Code]; ok {
				if srcBits[c.Code] == 8 {
					v16 = uint16(in[so]) * 257
				} else {
					v16 = order.Uint16(in[so:])
				}
			}
			if c.Bits == 8 {
				dst[o] = byte(v16 >> 8)
				o++
			} else {
				order.PutUint16(dst[o:], v16)
				o += 2
			}
		}
	}
	return out, nil
}

// PadRows copies rows of rowBytes bytes into a buffer where each row is
// followed by pad zero bytes.
func PadRows(src []byte, rowBytes, pad int) ([]byte, error) {
	if pad == 0 {
		return src, nil
	}
	if rowBytes <= 0 || len(src)%rowBytes != 0 {
		return nil, fmt.Errorf("stream: %d bytes is not a whole number of %d-byte rows", len(src), rowBytes)
	}
	rows := len(src) / rowBytes
	out := make([]byte, rows*(rowBytes+pad))
	for r := 0; r < rows; r++ {
		copy(out[r*(rowBytes+pad):], src[r*rowBytes:(r+1)*rowBytes])
	}
	return out, nil
}

// UnpadRows is the inverse of PadRows.
func UnpadRows(src []byte, rowBytes, pad int) ([]byte, error) {
	if pad == 0 {
		return src, nil
	}
	stride := rowBytes + pad
	if rowBytes <= 0 || len(src)%stride != 0 {
		return nil, fmt.Errorf("stream: %d bytes is not a whole number of %d-byte padded rows", len(src), stride)
	}
	rows := len(src) / stride
	out := make([]byte, rows*rowBytes)
	for r := 0; r < rows; r++ {
		copy(out[r*rowBytes:], src[r*stride:r*stride+rowBytes])
	}
	return out, nil
}

// FileToMem applies the layout translation that turns one file-format sample
// into memory format: row padding is removed and components are reordered.
func FileToMem(sample []byte, file, mem format.List, width int) ([]byte, error) {
	fl, fok := file.Layout(format.OpRGBLayout)
	ml, mok := mem.Layout(format.OpRGBLayout)
	pad := int(file.IntOr(format.OpPadBytesPerRow, 0))
	if pad > 0 && fok {
		var err error
		sample, err = UnpadRows(sample, width*fl.BytesPerPixel(), pad)
		if err != nil {
			return nil, err
		}
	}
	if !fok || !mok || fl.Equal(ml) {
		return sample, nil
	}
	return Reorder(sample, fl, ml, orderOf(mem))
}

// MemToFile is the inverse of FileToMem.
func MemToFile(sample []byte, file, mem format.List, width int) ([]byte, error) {
	fl, fok := file.Layout(format.OpRGBLayout)
	ml, mok := mem.Layout(format.OpRGBLayout)
	if fok && mok && !fl.Equal(ml) {
		var err error
		sample, err = Reorder(sample, ml, fl, orderOf(mem))
		if err != nil {
			return nil, err
		}
	}
	pad := int(file.IntOr(format.OpPadBytesPerRow, 0))
	if pad > 0 && fok {
		return PadRows(sample, width*fl.BytesPerPixel(), pad)
	}
	return sample, nil
}

func orderOf(l format.List) binary.ByteOrder {
	return format.ByteOrder(l.IntOr(format.OpByteOrder, int64(format.LittleEndian))).Binary()
}
