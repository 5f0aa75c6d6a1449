package jpegcodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/codec"
	"mediakit/internal/format"
	jp "mediakit/internal/jpeg"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

type fixture struct {
	s    *store.Memory
	d    codec.Descriptor
	data *stream.Buffer
}

func newFixture(t *testing.T, c *Codec, g codec.Geometry) *fixture {
	t.Helper()
	s := store.NewMemory(binary.LittleEndian, nil)
	d := codec.Descriptor{Store: s, ID: s.NewObject(codec.ClassCDCI)}
	require.NoError(t, c.InitializeDescriptor(d))
	require.NoError(t, codec.WriteGeometry(d, g))
	return &fixture{s: s, d: d, data: stream.NewBuffer(nil)}
}

func (f *fixture) handle(t *testing.T, c *Codec) *codec.Handle {
	t.Helper()
	_, err := f.data.Seek(0, 0)
	require.NoError(t, err)
	h := codec.NewHandle(f.d, stream.NewAdapter(f.data, format.New(), false, nil), nil)
	st, err := c.InitState()
	require.NoError(t, err)
	h.Persistent = st
	return h
}

func gradient(w, h, seed int) []byte {
	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 3 * (y*w + x)
			out[o] = byte((x*2 + seed) & 0xFF)
			out[o+1] = byte((y*3 + seed) & 0xFF)
			out[o+2] = byte(((x+y)/2 + seed) & 0xFF)
		}
	}
	return out
}

func meanAbsDiff(a, b []byte) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1e9
	}
	sum := 0
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a))
}

func writeFrames(t *testing.T, c *Codec, f *fixture, frames [][]byte) {
	t.Helper()
	h := f.handle(t, c)
	require.NoError(t, c.Create(h))
	for _, fr := range frames {
		n, err := c.WriteSamples(h, 1, fr)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	require.NoError(t, c.Close(h))
}

func TestRoundTrip(t *testing.T) {
	c := New(Config{Quality: 90})
	g := codec.Geometry{Width: 64, Height: 48}
	f := newFixture(t, c, g)
	frames := [][]byte{gradient(64, 48, 0), gradient(64, 48, 40), gradient(64, 48, 90)}
	writeFrames(t, c, f, frames)

	n, err := store.ReadInt64(f.s, f.d.ID, codec.PropLength)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	h := f.handle(t, c)
	require.NoError(t, c.Open(h))
	assert.Equal(t, int64(3), h.SampleCount())
	assert.Equal(t, int64(4), h.Index.Len())

	for i, want := range frames {
		got, err := c.ReadSamples(h, 1)
		require.NoError(t, err, "frame %d", i+1)
		assert.Less(t, meanAbsDiff(want, got), 6.0, "frame %d", i+1)
	}
	_, err = c.ReadSamples(h, 1)
	assert.ErrorIs(t, err, mediaerr.ErrBadFrameOffset)

	require.NoError(t, c.SetFrameNumber(h, 2))
	got, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(frames[1], got), 6.0)
	require.NoError(t, c.Close(h))
}

func TestFrameOffsets(t *testing.T) {
	c := New(Config{})
	f := newFixture(t, c, codec.Geometry{Width: 32, Height: 16})
	writeFrames(t, c, f, [][]byte{gradient(32, 16, 1), gradient(32, 16, 2)})

	h := f.handle(t, c)
	require.NoError(t, c.Open(h))
	off1, err := c.FrameOffset(h, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off1)
	off2, err := c.FrameOffset(h, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, jp.MarkerSOI}, f.data.Bytes()[off2:off2+2])

	for _, n := range []int64{0, -1, 3} {
		_, err := c.FrameOffset(h, n)
		assert.ErrorIs(t, err, mediaerr.ErrBadFrameOffset, "n=%d", n)
	}
	assert.ErrorIs(t, c.SetFrameNumber(h, 3), mediaerr.ErrBadFrameOffset)
}

func TestStdlibDecodesSamples(t *testing.T) {
	c := New(Config{Quality: 85})
	f := newFixture(t, c, codec.Geometry{Width: 40, Height: 24})
	writeFrames(t, c, f, [][]byte{gradient(40, 24, 7)})

	h := f.handle(t, c)
	require.NoError(t, c.Open(h))
	require.NoError(t, c.PutInfo(h, codec.InfoCompressionEnabled, false))
	raw, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestPassThroughCopy(t *testing.T) {
	c := New(Config{})
	g := codec.Geometry{Width: 32, Height: 32}
	src := newFixture(t, c, g)
	writeFrames(t, c, src, [][]byte{gradient(32, 32, 3), gradient(32, 32, 9)})

	rh := src.handle(t, c)
	require.NoError(t, c.Open(rh))
	require.NoError(t, c.PutInfo(rh, codec.InfoCompressionEnabled, false))
	compressed, err := c.ReadSamples(rh, 2)
	require.NoError(t, err)

	dst := newFixture(t, c, g)
	wh := dst.handle(t, c)
	require.NoError(t, c.Create(wh))
	require.NoError(t, c.PutInfo(wh, codec.InfoCompressionEnabled, false))
	n, err := c.WriteSamples(wh, 2, compressed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, c.Close(wh))

	assert.Equal(t, src.data.Bytes(), dst.data.Bytes())

	_, err = c.WriteSamples(dst.handle(t, c), 1, compressed)
	require.Error(t, err)
}

func TestPassThroughRejectsWrongImageCount(t *testing.T) {
	c := New(Config{})
	g := codec.Geometry{Width: 16, Height: 16}
	f := newFixture(t, c, g)
	writeFrames(t, c, f, [][]byte{gradient(16, 16, 0)})
	one := append([]byte(nil), f.data.Bytes()...)

	dst := newFixture(t, c, g)
	h := dst.handle(t, c)
	require.NoError(t, c.Create(h))
	require.NoError(t, c.PutInfo(h, codec.InfoCompressionEnabled, false))
	_, err := c.WriteSamples(h, 2, one)
	assert.Equal(t, mediaerr.KindFormat, mediaerr.KindOf(err))
}

func TestIndexRebuiltFromStream(t *testing.T) {
	c := New(Config{RestartInterval: 2})
	f := newFixture(t, c, codec.Geometry{Width: 48, Height: 32})
	frames := [][]byte{gradient(48, 32, 0), gradient(48, 32, 11), gradient(48, 32, 22)}
	writeFrames(t, c, f, frames)

	stored, err := store.Int64Array(f.s, f.d.ID, codec.PropFrameIndex)
	require.NoError(t, err)
	require.NoError(t, f.s.Delete(f.d.ID, codec.PropFrameIndex))

	h := f.handle(t, c)
	require.NoError(t, c.Open(h))
	assert.Equal(t, stored, h.Index.Offsets())
	require.NoError(t, c.SetFrameNumber(h, 3))
	got, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(frames[2], got), 6.0)
}

func TestSeparateFields(t *testing.T) {
	for _, dominance := range []int{1, 2} {
		c := NewAvid(Config{Quality: 90})
		g := codec.Geometry{Width: 64, Height: 32, Layout: format.SeparateFields, FieldDominance: dominance}
		f := newFixture(t, c, g)
		frame := gradient(64, 32, 5)
		writeFrames(t, c, f, [][]byte{frame})

		images, err := jp.SplitImages(f.data.Bytes())
		require.NoError(t, err)
		require.Len(t, images, 2, "dominance %d", dominance)

		dec := jp.NewDecoder(nil)
		for i, img := range images {
			p, err := dec.Decode(img)
			require.NoError(t, err)
			assert.Equal(t, 16, p.Height)
			info, ok := dec.AVI()
			require.True(t, ok)
			assert.Equal(t, byte(i+1), info.Polarity)
		}

		h := f.handle(t, c)
		require.NoError(t, c.Open(h))
		got, err := c.ReadSamples(h, 1)
		require.NoError(t, err)
		assert.Less(t, meanAbsDiff(frame, got), 6.0, "dominance %d", dominance)
	}
}

func TestUYVYMemoryFormat(t *testing.T) {
	c := New(Config{Quality: 95})
	g := codec.Geometry{Width: 32, Height: 16, HorizSubsampling: 2, PixelFormat: format.PixelYUV}
	f := newFixture(t, c, g)

	uyvy := make([]byte, 32*16*2)
	for i := range uyvy {
		if i%2 == 0 {
			uyvy[i] = 128
		} else {
			uyvy[i] = byte(40 + (i/2)%32*4)
		}
	}
	yuv := format.New(format.Int(format.OpPixelFormat, int64(format.PixelYUV)))

	h := f.handle(t, c)
	require.NoError(t, c.Create(h))
	require.NoError(t, c.PutInfo(h, codec.InfoMemFormat, yuv))
	size, err := c.GetInfo(h, codec.InfoMaxSampleSize)
	require.NoError(t, err)
	assert.Equal(t, int64(len(uyvy)), size)
	_, err = c.WriteSamples(h, 1, uyvy)
	require.NoError(t, err)
	require.NoError(t, c.Close(h))

	h = f.handle(t, c)
	require.NoError(t, c.Open(h))
	require.NoError(t, c.PutInfo(h, codec.InfoMemFormat, yuv))
	got, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(uyvy, got), 3.0)
}

func TestCCIRLevels(t *testing.T) {
	c := New(Config{Quality: 95})
	g := codec.Geometry{Width: 16, Height: 16, Black: 16, White: 235, ColorRange: 225}
	f := newFixture(t, c, g)
	frame := bytes.Repeat([]byte{120}, 16*16*3)
	writeFrames(t, c, f, [][]byte{frame})

	h := f.handle(t, c)
	require.NoError(t, c.Open(h))
	got, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(frame, got), 3.0)

	// The stored image is expanded to full range.
	require.NoError(t, c.SetFrameNumber(h, 1))
	require.NoError(t, c.PutInfo(h, codec.InfoCompressionEnabled, false))
	raw, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	p, err := jp.NewDecoder(nil).Decode(raw)
	require.NoError(t, err)
	luma := p.Comps[0].Pix[0]
	assert.InDelta(t, 121, int(luma), 3)
}

func TestBGRALayout(t *testing.T) {
	c := New(Config{Quality: 90})
	g := codec.Geometry{Width: 16, Height: 8}
	f := newFixture(t, c, g)
	rgb := gradient(16, 8, 4)
	bgra := make([]byte, 16*8*4)
	for i := 0; i < 16*8; i++ {
		bgra[4*i], bgra[4*i+1], bgra[4*i+2], bgra[4*i+3] = rgb[3*i+2], rgb[3*i+1], rgb[3*i], 0xFF
	}
	mem := format.New(format.WithLayout(format.OpRGBLayout, format.LayoutOf("BGRA", 8)))

	h := f.handle(t, c)
	require.NoError(t, c.Create(h))
	require.NoError(t, c.PutInfo(h, codec.InfoMemFormat, mem))
	_, err := c.WriteSamples(h, 1, bgra)
	require.NoError(t, err)
	require.NoError(t, c.Close(h))

	h = f.handle(t, c)
	require.NoError(t, c.Open(h))
	got, err := c.ReadSamples(h, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(rgb, got), 6.0)
}

func TestApplicability(t *testing.T) {
	std, avid := New(Config{}), NewAvid(Config{})
	s := store.NewMemory(binary.LittleEndian, nil)

	d := codec.Descriptor{Store: s, ID: s.NewObject(codec.ClassCDCI)}
	require.NoError(t, avid.InitializeDescriptor(d))
	require.NoError(t, codec.WriteGeometry(d, codec.Geometry{Width: 720, Height: 486}))

	a := avid.Applicability(d)
	assert.True(t, a.WillHandle)
	assert.True(t, a.HardwareAssisted)
	assert.Positive(t, a.AvgBitrate)
	assert.False(t, std.Applicability(d).WillHandle)

	tiff := codec.Descriptor{Store: s, ID: s.NewObject(codec.ClassTIFF)}
	assert.False(t, std.Applicability(tiff).WillHandle)

	r := codec.NewRegistry(nil)
	require.NoError(t, r.Register(std))
	require.NoError(t, r.Register(avid))
	id, err := r.Select(d, codec.Fastest)
	require.NoError(t, err)
	assert.Equal(t, AvidID, id)
}

func TestInitializeDescriptorIsIdempotent(t *testing.T) {
	c := New(Config{Quality: 60, RestartInterval: 4})
	s := store.NewMemory(binary.LittleEndian, nil)
	d := codec.Descriptor{Store: s, ID: s.NewObject(codec.ClassCDCI)}
	require.NoError(t, c.InitializeDescriptor(d))
	require.NoError(t, store.WriteInt32(s, d.ID, codec.PropQuality, 80))
	require.NoError(t, c.InitializeDescriptor(d))

	q, err := store.ReadInt32(s, d.ID, codec.PropQuality)
	require.NoError(t, err)
	assert.Equal(t, int32(80), q)
	assert.Equal(t, codec.CompressionJPEG, d.Compression())
}

func TestPutInfo(t *testing.T) {
	c := New(Config{})
	f := newFixture(t, c, codec.Geometry{Width: 16, Height: 16})
	h := f.handle(t, c)
	require.NoError(t, c.Create(h))

	require.NoError(t, c.PutInfo(h, codec.InfoQuality, 50))
	q, err := c.GetInfo(h, codec.InfoQuality)
	require.NoError(t, err)
	assert.Equal(t, 50, q)

	err = c.PutInfo(h, codec.InfoQuality, "high")
	assert.Equal(t, mediaerr.KindConfiguration, mediaerr.KindOf(err))

	_, err = c.WriteSamples(h, 1, gradient(16, 16, 0))
	require.NoError(t, err)
	assert.Error(t, c.PutInfo(h, codec.InfoQuality, 70))

	_, err = c.GetInfo(h, codec.InfoSummary)
	assert.ErrorIs(t, err, mediaerr.ErrOperationNotSupported)

	_, err = c.WriteSamples(h, 2, gradient(16, 16, 0))
	assert.ErrorIs(t, err, mediaerr.ErrBufferTooSmall)
}

// limitedBuffer accepts budget more bytes of writes and then fails. A
// negative budget never fails.
type limitedBuffer struct {
	*stream.Buffer
	budget int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.budget < 0 || len(p) <= b.budget {
		if b.budget >= 0 {
			b.budget -= len(p)
		}
		return b.Buffer.Write(p)
	}
	n, _ := b.Buffer.Write(p[:b.budget])
	b.budget = 0
	return n, errors.New("device full")
}

func TestFailedWriteIsRolledBack(t *testing.T) {
	c := New(Config{})
	f := newFixture(t, c, codec.Geometry{Width: 32, Height: 16})
	lb := &limitedBuffer{Buffer: f.data, budget: -1}
	h := codec.NewHandle(f.d, stream.NewAdapter(lb, format.New(), false, nil), nil)
	shared, err := c.InitState()
	require.NoError(t, err)
	h.Persistent = shared
	require.NoError(t, c.Create(h))

	_, err = c.WriteSamples(h, 1, gradient(32, 16, 1))
	require.NoError(t, err)
	good := int64(len(f.data.Bytes()))

	lb.budget = 100
	n, err := c.WriteSamples(h, 1, gradient(32, 16, 50))
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(1), h.SampleCount())
	assert.Equal(t, int64(1), h.Index.Len())
	require.NoError(t, c.Close(h))

	rh := f.handle(t, c)
	require.NoError(t, c.Open(rh))
	assert.Equal(t, int64(1), rh.SampleCount())
	require.NoError(t, c.PutInfo(rh, codec.InfoCompressionEnabled, false))
	raw, err := c.ReadSamples(rh, 1)
	require.NoError(t, err)
	assert.Len(t, raw, int(good))
}

func TestWriteAfterFailureOverwritesPartialSample(t *testing.T) {
	c := New(Config{})
	f := newFixture(t, c, codec.Geometry{Width: 32, Height: 16})
	lb := &limitedBuffer{Buffer: f.data, budget: -1}
	h := codec.NewHandle(f.d, stream.NewAdapter(lb, format.New(), false, nil), nil)
	shared, err := c.InitState()
	require.NoError(t, err)
	h.Persistent = shared
	require.NoError(t, c.Create(h))

	_, err = c.WriteSamples(h, 1, gradient(32, 16, 1))
	require.NoError(t, err)
	good := int64(len(f.data.Bytes()))
	lb.budget = 100
	_, err = c.WriteSamples(h, 1, gradient(32, 16, 50))
	require.Error(t, err)
	lb.budget = -1
	second := gradient(32, 16, 90)
	_, err = c.WriteSamples(h, 1, second)
	require.NoError(t, err)
	require.NoError(t, c.Close(h))

	rh := f.handle(t, c)
	require.NoError(t, c.Open(rh))
	assert.Equal(t, int64(2), rh.SampleCount())
	off, err := c.FrameOffset(rh, 2)
	require.NoError(t, err)
	assert.Equal(t, good, off)
	require.NoError(t, c.SetFrameNumber(rh, 2))
	got, err := c.ReadSamples(rh, 1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(second, got), 6.0)
}

// brokenStore fails every read of one property.
type brokenStore struct {
	store.Store
	tag store.Tag
}

func (s brokenStore) Get(id store.ObjectID, tag store.Tag) (store.Value, error) {
	if tag == s.tag {
		return store.Value{}, errors.New("store unavailable")
	}
	return s.Store.Get(id, tag)
}

func TestOpenReportsStoreErrors(t *testing.T) {
	c := New(Config{})
	f := newFixture(t, c, codec.Geometry{Width: 16, Height: 16})
	writeFrames(t, c, f, [][]byte{gradient(16, 16, 0)})

	for _, tag := range []store.Tag{propQuantTables, propHuffmanTables} {
		h := f.handle(t, c)
		h.Descriptor = codec.Descriptor{Store: brokenStore{Store: f.s, tag: tag}, ID: f.d.ID}
		err := c.Open(h)
		require.Error(t, err, "tag %d", tag)
		assert.EqualError(t, err, "store unavailable")
	}
}
