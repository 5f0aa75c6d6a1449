package stream

import "mediakit/internal/format"

// Swab reverses the byte order of every width-byte word in p. Widths of 0 or
// 1 leave p untouched; a trailing partial word is left as is.
func Swab(p []byte, width int) {
	if width < 2 {
		return
	}
	for i := 0; i+width <= len(p); i += width {
		w := p[i : i+width]
		for a, b := 0, width-1; a < b; a, b = a+1, b-1 {
			w[a], w[b] = w[b], w[a]
		}
	}
}

// SwabWidth returns the word size in bytes that byte-order correction
// applies to for streams described by l, or 0 when samples are single bytes.
// Audio uses OpSampleSize (bits per sample); video uses OpComponentBits.
func SwabWidth(l format.List) int {
	if bits, ok := l.Int(format.OpSampleSize); ok && bits > 8 {
		return int((bits + 7) / 8)
	}
	if bits, ok := l.Int(format.OpComponentBits); ok && bits > 8 {
		return int((bits + 7) / 8)
	}
	return 0
}

// NeedsSwab decides whether bytes moving between a stream described by file
// and a caller described by mem must be swabbed. When both lists declare a
// byte order the answer is whether they differ; otherwise it is foreign,
// the flag recording that the stream was written on an opposite-endian host.
// The result does not depend on which list is passed first.
func NeedsSwab(file, mem format.List, foreign bool) bool {
	fo, fok := file.Int(format.OpByteOrder)
	mo, mok := mem.Int(format.OpByteOrder)
	if fok && mok {
		return fo != mo
	}
	return foreign
}
