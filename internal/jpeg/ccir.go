package jpeg

import "math"

// Levels are the reference levels of a video-range signal: luma black and
// white, and the number of distinct chroma values centred on 128.
type Levels struct {
	Black int
	White int
	Range int
}

// FullRange is the codec's native 0..255 range.
var FullRange = Levels{Black: 0, White: 255, Range: 255}

// CCIR601 is the usual studio range: luma 16..235, chroma 16..240.
var CCIR601 = Levels{Black: 16, White: 235, Range: 225}

// IsFull reports whether l needs no remapping.
func (l Levels) IsFull() bool { return l == FullRange }

func (l Levels) valid() bool {
	return l.Black >= 0 && l.White <= 255 && l.Black < l.White && l.Range > 0 && l.Range <= 255
}

// LUTs holds the four remapping tables between a video range and full
// range.
type LUTs struct {
	// ToFullLuma and ToFullChroma expand video-range samples before
	// compression.
	ToFullLuma, ToFullChroma [256]byte
	// FromFullLuma and FromFullChroma compress decoded samples back into
	// video range.
	FromFullLuma, FromFullChroma [256]byte
}

// NewLUTs builds remapping tables for l. Invalid levels fall back to the
// identity mapping. Every table is non-decreasing.
func NewLUTs(l Levels) *LUTs {
	if !l.valid() {
		l = FullRange
	}
	t := &LUTs{}
	span := float64(l.White - l.Black)
	for i := 0; i < 256; i++ {
		v := float64(i)
		t.ToFullLuma[i] = clamp8(math.Round((v - float64(l.Black)) * 255 / span))
		t.FromFullLuma[i] = clamp8(math.Round(float64(l.Black) + v*span/255))
		t.ToFullChroma[i] = clamp8(math.Round(128 + (v-128)*255/float64(l.Range)))
		t.FromFullChroma[i] = clamp8(math.Round(128 + (v-128)*float64(l.Range)/255))
	}
	return t
}
