package jpeg

import (
	"encoding/binary"
	"fmt"

	"mediakit/internal/mediaerr"
)

// Segment is one marker and its body as found by Segments.
type Segment struct {
	Marker byte
	// Offset is the position of the 0xFF that starts the marker.
	Offset int
	Body   []byte
}

// nextMarker finds the next marker at or after pos, skipping entropy-coded
// data, stuffed zeros and fill bytes. It returns the marker code and the
// offset of its 0xFF.
func nextMarker(data []byte, pos int) (byte, int, bool) {
	for pos+1 < len(data) {
		if data[pos] != 0xFF {
			pos++
			continue
		}
		q := pos + 1
		for q < len(data) && data[q] == 0xFF {
			q++
		}
		if q >= len(data) {
			return 0, 0, false
		}
		if data[q] == 0x00 {
			pos = q + 1
			continue
		}
		return data[q], q - 1, true
	}
	return 0, 0, false
}

// segmentBody returns the length-prefixed body of the marker at off.
func segmentBody(data []byte, off int) ([]byte, error) {
	if off+4 > len(data) {
		return nil, mediaerr.E(mediaerr.KindFormat, "jpeg.segment",
			fmt.Errorf("%s at %d truncated: %w", MarkerName(data[off+1]), off, mediaerr.ErrBufferTooSmall))
	}
	n := int(binary.BigEndian.Uint16(data[off+2:]))
	if n < 2 || off+2+n > len(data) {
		return nil, mediaerr.E(mediaerr.KindFormat, "jpeg.segment",
			fmt.Errorf("%s at %d has bad length %d: %w", MarkerName(data[off+1]), off, n, mediaerr.ErrBufferTooSmall))
	}
	return data[off+4 : off+2+n], nil
}

// Segments lists the markers of one image from SOI through EOI. Entropy
// coded data between SOS and the next marker is skipped.
func Segments(data []byte) ([]Segment, error) {
	m, off, ok := nextMarker(data, 0)
	if !ok || m != MarkerSOI {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.Segments", "missing SOI")
	}
	segs := []Segment{{Marker: MarkerSOI, Offset: off}}
	pos := off + 2
	for {
		m, off, ok = nextMarker(data, pos)
		if !ok {
			return segs, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.Segments", "missing EOI")
		}
		if Standalone(m) {
			segs = append(segs, Segment{Marker: m, Offset: off})
			pos = off + 2
			if m == MarkerEOI {
				return segs, nil
			}
			continue
		}
		body, err := segmentBody(data, off)
		if err != nil {
			return segs, err
		}
		segs = append(segs, Segment{Marker: m, Offset: off, Body: body})
		pos = off + 4 + len(body)
	}
}

// ScanImageEnd returns the offset just past the EOI that ends the image
// starting at start. Marker segments are stepped over by their length so
// that table data containing 0xFF cannot be mistaken for a marker.
func ScanImageEnd(data []byte, start int) (int, error) {
	m, off, ok := nextMarker(data, start)
	if !ok || m != MarkerSOI || off != start {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.ScanImageEnd", "no SOI at %d", start)
	}
	pos := off + 2
	for {
		m, off, ok = nextMarker(data, pos)
		if !ok {
			return 0, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.ScanImageEnd", "no EOI after %d", start)
		}
		if m == MarkerEOI {
			return off + 2, nil
		}
		if Standalone(m) {
			pos = off + 2
			continue
		}
		body, err := segmentBody(data, off)
		if err != nil {
			return 0, err
		}
		pos = off + 4 + len(body)
	}
}

// SplitImages splits a buffer holding consecutive images into one slice per
// image. Bytes between images (padding) are dropped.
func SplitImages(data []byte) ([][]byte, error) {
	var out [][]byte
	pos := 0
	for {
		m, off, ok := nextMarker(data, pos)
		if !ok {
			return out, nil
		}
		if m != MarkerSOI {
			pos = off + 2
			continue
		}
		end, err := ScanImageEnd(data, off)
		if err != nil {
			return out, err
		}
		out = append(out, data[off:end])
		pos = end
	}
}

// ImageOffsets returns the offset of every SOI in data that starts a
// complete image, plus a final entry holding len(data). It is used to
// rebuild a frame index from a stream of concatenated images.
func ImageOffsets(data []byte) ([]int64, error) {
	var offs []int64
	pos := 0
	for {
		m, off, ok := nextMarker(data, pos)
		if !ok {
			break
		}
		if m != MarkerSOI {
			pos = off + 2
			continue
		}
		end, err := ScanImageEnd(data, off)
		if err != nil {
			return nil, err
		}
		offs = append(offs, int64(off))
		pos = end
	}
	return append(offs, int64(len(data))), nil
}
