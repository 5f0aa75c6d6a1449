package jpeg

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	stdjpeg "image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/mediaerr"
)

// gradient returns a smooth interleaved RGB test frame.
func gradient(w, h int) []byte {
	rgb := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 3 * (y*w + x)
			rgb[o] = byte(x * 255 / w)
			rgb[o+1] = byte(y * 255 / h)
			rgb[o+2] = byte((x + y) * 127 / (w + h))
		}
	}
	return rgb
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func compareRGB(t *testing.T, want, got []byte, maxErr int, meanErr float64) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	worst, sum := 0, 0
	for i := range want {
		d := absDiff(want[i], got[i])
		sum += d
		if d > worst {
			worst = d
		}
	}
	mean := float64(sum) / float64(len(want))
	assert.LessOrEqual(t, worst, maxErr, "max error")
	assert.Less(t, mean, meanErr, "mean error")
}

func encode(t *testing.T, p *Planes, opts Options) []byte {
	t.Helper()
	enc, err := NewEncoder(nil, opts)
	require.NoError(t, err)
	data, err := enc.Encode(p)
	require.NoError(t, err)
	return data
}

func TestRoundTrip(t *testing.T) {
	const w, h = 61, 37
	rgb := gradient(w, h)

	for _, sub := range []Subsampling{S444, S422, S420} {
		t.Run(sub.String(), func(t *testing.T) {
			p, err := FromRGB(rgb, w, h, sub)
			require.NoError(t, err)
			data := encode(t, p, Options{Quality: 95})

			d := NewDecoder(nil)
			out, err := d.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, StateFrameComplete, d.State())
			assert.Equal(t, w, out.Width)
			assert.Equal(t, h, out.Height)
			got, ok := out.Subsampling()
			require.True(t, ok)
			assert.Equal(t, sub, got)

			compareRGB(t, rgb, out.RGB(), 40, 4)
		})
	}
}

func TestGrayRoundTrip(t *testing.T) {
	p := NewPlanes(20, 12, Gray)
	for i := range p.Comps[0].Pix {
		p.Comps[0].Pix[i] = byte(i * 3)
	}
	data := encode(t, p, Options{Quality: 100})
	out, err := NewDecoder(nil).Decode(data)
	require.NoError(t, err)
	require.Len(t, out.Comps, 1)
	for i, v := range p.Comps[0].Pix {
		assert.LessOrEqual(t, absDiff(v, out.Comps[0].Pix[i]), 8)
	}
}

func TestStandardLibraryDecodesOutput(t *testing.T) {
	const w, h = 64, 48
	rgb := gradient(w, h)
	p, err := FromRGB(rgb, w, h, S422)
	require.NoError(t, err)
	data := encode(t, p, Options{Quality: 90})

	img, err := stdjpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, w, h), img.Bounds())

	got := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			got = append(got, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	compareRGB(t, rgb, got, 40, 5)
}

func TestDecodesStandardLibraryOutput(t *testing.T) {
	const w, h = 50, 30
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	rgb := gradient(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 3 * (y*w + x)
			src.Set(x, y, color.RGBA{rgb[o], rgb[o+1], rgb[o+2], 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, stdjpeg.Encode(&buf, src, &stdjpeg.Options{Quality: 95}))

	out, err := NewDecoder(nil).Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, w, out.Width)
	compareRGB(t, rgb, out.RGB(), 48, 5)
}

func TestRestartIntervalDoesNotChangePixels(t *testing.T) {
	p, err := FromRGB(gradient(80, 40), 80, 40, S422)
	require.NoError(t, err)

	plain, err := NewDecoder(nil).Decode(encode(t, p, Options{Quality: 80}))
	require.NoError(t, err)

	for _, ri := range []int{1, 2, 7} {
		for base := int64(0); base < 4; base++ {
			data := encode(t, p, Options{Quality: 80, RestartInterval: ri, Base: base})
			d := NewDecoder(nil)
			got, err := d.Decode(data)
			require.NoError(t, err)
			assert.Zero(t, d.Resyncs)
			assert.Equal(t, plain.Comps, got.Comps, "ri=%d base=%d", ri, base)
		}
	}
}

func TestRestartMarkersAreAligned(t *testing.T) {
	p, err := FromRGB(gradient(64, 32), 64, 32, S444)
	require.NoError(t, err)

	for base := int64(0); base < 8; base++ {
		data := encode(t, p, Options{Quality: 75, RestartInterval: 1, Base: base})
		found := 0
		for i := 0; i+1 < len(data); i++ {
			if data[i] == 0xFF && IsRST(data[i+1]) {
				assert.Zero(t, (base+int64(i)+2)%4, "RST at %d with base %d", i, base)
				assert.Equal(t, byte(MarkerRST0+found%8), data[i+1])
				found++
			}
		}
		assert.Equal(t, 8*4-1, found)
	}
}

func TestRestartPadding(t *testing.T) {
	for p := int64(0); p < 8; p++ {
		var buf bytes.Buffer
		bw := newBitWriter(&buf, p)
		pad := bw.writeRestart(3)

		want := 0
		if (p+2)%4 != 0 {
			want = int(4 - (p+2)%4)
		}
		assert.Equal(t, want, pad, "position %d", p)
		out := buf.Bytes()
		require.Len(t, out, want+2)
		for i := 0; i < want; i++ {
			assert.Equal(t, byte(0xFF), out[i])
		}
		assert.Equal(t, []byte{0xFF, MarkerRST0 + 3}, out[want:])
	}
}

func TestBitWriterStuffing(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf, 0)
	bw.writeBits(0xFF, 8)
	bw.writeBits(0x5, 3)
	bw.flush()
	assert.Equal(t, []byte{0xFF, 0x00, 0xBF}, buf.Bytes())
}

func markerSequence(t *testing.T, data []byte) []byte {
	t.Helper()
	segs, err := Segments(data)
	require.NoError(t, err)
	var out []byte
	for _, s := range segs {
		out = append(out, s.Marker)
	}
	return out
}

func TestDialectMarkerOrder(t *testing.T) {
	p := NewPlanes(16, 8, S422)
	std := encode(t, p, Options{RestartInterval: 4})
	assert.Equal(t,
		[]byte{MarkerSOI, MarkerAPP0, MarkerDQT, MarkerSOF0, MarkerDHT, MarkerDRI, MarkerSOS, MarkerEOI},
		markerSequence(t, std))

	avid := encode(t, p, Options{RestartInterval: 4, Dialect: Avid, Polarity: 2})
	assert.Equal(t,
		[]byte{MarkerSOI, MarkerAPP0, MarkerDQT, MarkerDHT, MarkerDRI, MarkerSOF0, MarkerSOS, MarkerEOI},
		markerSequence(t, avid))

	d := NewDecoder(nil)
	_, err := d.Decode(avid)
	require.NoError(t, err)
	info, ok := d.AVI()
	require.True(t, ok)
	assert.EqualValues(t, 2, info.Polarity)
	assert.EqualValues(t, len(avid), info.FieldSize)
}

func TestMissingHuffmanTableIsFatal(t *testing.T) {
	p, err := FromRGB(gradient(16, 16), 16, 16, S444)
	require.NoError(t, err)
	enc, err := NewEncoder(nil, Options{Quality: 60, OmitTables: true})
	require.NoError(t, err)
	data, err := enc.Encode(p)
	require.NoError(t, err)

	d := NewDecoder(nil)
	_, err = d.Decode(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, mediaerr.ErrDecompression))
	assert.Equal(t, mediaerr.KindDecode, mediaerr.KindOf(err))
	assert.False(t, mediaerr.Recoverable(err))

	primed := NewDecoder(nil)
	require.NoError(t, primed.Prime(enc.Tables().WriteTablesOnly()))
	_, err = primed.Decode(data)
	require.NoError(t, err)

	bodies := NewDecoder(nil)
	require.NoError(t, bodies.SetTables(enc.Tables().QuantBytes(), enc.Tables().HuffmanBytes()))
	_, err = bodies.Decode(data)
	require.NoError(t, err)
}

func grayStripe(t *testing.T) []byte {
	t.Helper()
	p := NewPlanes(32, 8, Gray)
	for i := range p.Comps[0].Pix {
		p.Comps[0].Pix[i] = byte(40 + (i%32)*6)
	}
	return encode(t, p, Options{Quality: 90, RestartInterval: 1})
}

func replaceRST(data []byte, from, to byte) []byte {
	out := append([]byte(nil), data...)
	for i := 0; i+1 < len(out); i++ {
		if out[i] == 0xFF && out[i+1] == from {
			out[i+1] = to
			break
		}
	}
	return out
}

func TestResyncAcceptsDistantMarker(t *testing.T) {
	clean := grayStripe(t)
	want, err := NewDecoder(nil).Decode(clean)
	require.NoError(t, err)

	// RST1 replaced by RST5: too far from the expected number to be a
	// neighbour, so it is taken as the restart we wanted.
	d := NewDecoder(nil)
	got, err := d.Decode(replaceRST(clean, MarkerRST0+1, MarkerRST0+5))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Resyncs)
	assert.Equal(t, want.Comps, got.Comps)
}

func TestResyncEmitsEmptySegment(t *testing.T) {
	clean := grayStripe(t)

	// RST1 replaced by RST2: the next expected marker, so the segment at
	// MCU 2 is left empty and decoding resumes at the following boundary.
	d := NewDecoder(nil)
	got, err := d.Decode(replaceRST(clean, MarkerRST0+1, MarkerRST0+2))
	require.NoError(t, err)
	assert.Equal(t, StateFrameComplete, d.State())
	assert.GreaterOrEqual(t, d.Resyncs, 1)

	pl := got.Comps[0]
	for y := 0; y < 8; y++ {
		for x := 16; x < 24; x++ {
			assert.Equal(t, byte(128), pl.Pix[y*pl.Width+x], "MCU 2 at (%d,%d)", x, y)
		}
	}
}

func TestCCIRMonotonic(t *testing.T) {
	for _, l := range []Levels{CCIR601, {Black: 0, White: 255, Range: 255}, {Black: 64, White: 940 / 4, Range: 200}, {Black: 1, White: 2, Range: 1}} {
		luts := NewLUTs(l)
		for _, table := range []*[256]byte{&luts.ToFullLuma, &luts.ToFullChroma, &luts.FromFullLuma, &luts.FromFullChroma} {
			for i := 1; i < 256; i++ {
				require.GreaterOrEqual(t, table[i], table[i-1], "levels %+v at %d", l, i)
			}
		}
	}

	id := NewLUTs(FullRange)
	for i := 0; i < 256; i++ {
		assert.Equal(t, byte(i), id.ToFullLuma[i])
		assert.Equal(t, byte(i), id.FromFullChroma[i])
	}

	c := NewLUTs(CCIR601)
	assert.Equal(t, byte(0), c.ToFullLuma[16])
	assert.Equal(t, byte(255), c.ToFullLuma[235])
	assert.Equal(t, byte(16), c.FromFullLuma[0])
	assert.Equal(t, byte(235), c.FromFullLuma[255])
	assert.Equal(t, byte(128), c.ToFullChroma[128])
}

func TestImageBoundaries(t *testing.T) {
	p := NewPlanes(16, 16, S444)
	a := encode(t, p, Options{RestartInterval: 1})
	b := encode(t, p, Options{Dialect: Avid})

	stream := append(append(append([]byte{}, a...), 0xFF, 0xFF, 0, 0), b...)
	end, err := ScanImageEnd(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, len(a), end)

	images, err := SplitImages(stream)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, a, images[0])
	assert.Equal(t, b, images[1])

	offs, err := ImageOffsets(stream)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, int64(len(a) + 4), int64(len(stream))}, offs)

	_, err = ScanImageEnd(stream, 1)
	assert.Error(t, err)
}

func TestUYVYRoundTrip(t *testing.T) {
	uyvy := make([]byte, 8*2*2)
	for i := range uyvy {
		uyvy[i] = byte(16 + i*5)
	}
	p, err := FromUYVY(uyvy, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, uyvy, p.UYVY())

	_, err = FromUYVY(uyvy, 7, 2)
	assert.Error(t, err)
}

func TestScaleQuality(t *testing.T) {
	assert.Equal(t, baseLuma, LumaTable(50))
	q100 := LumaTable(100)
	for _, v := range q100 {
		assert.EqualValues(t, 1, v)
	}
	q1 := ChromaTable(1)
	for _, v := range q1 {
		assert.LessOrEqual(t, v, uint16(255))
	}
}

func TestMarkerName(t *testing.T) {
	tests := map[byte]string{
		MarkerSOI:      "SOI",
		MarkerRST0 + 3: "RST3",
		MarkerAPP0 + 1: "APP1",
		MarkerDHT:      "DHT",
		0xC5:           "SOF5",
		0x02:           "0x02",
	}
	for m, want := range tests {
		assert.Equal(t, want, MarkerName(m))
	}
}

func TestFieldsSplitAndJoin(t *testing.T) {
	p, err := FromRGB(gradient(16, 9), 16, 9, S422)
	require.NoError(t, err)
	even, odd := p.SplitFields()
	assert.Equal(t, 5, even.Height)
	assert.Equal(t, 4, odd.Height)
	assert.Equal(t, p.Comps[0].Pix[2*16:3*16], even.Comps[0].Pix[16:32])
	assert.Equal(t, p.Comps[0].Pix[3*16:4*16], odd.Comps[0].Pix[16:32])

	joined, err := JoinFields(even, odd)
	require.NoError(t, err)
	assert.Equal(t, p, joined)
}
