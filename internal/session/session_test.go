package session

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/codec"
	"mediakit/internal/container"
	"mediakit/internal/format"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/tiffcodec"
)

func newRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	reg := codec.NewRegistry(nil)
	require.NoError(t, reg.Register(tiffcodec.New(tiffcodec.Config{})))
	require.NoError(t, reg.Register(jpegcodec.New(jpegcodec.DefaultConfig())))
	require.NoError(t, reg.Register(jpegcodec.NewAvid(jpegcodec.DefaultConfig())))
	return reg
}

func frame(w, h, seed int) []byte {
	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 3 * (y*w + x)
			out[o] = byte(x/4 + seed)
			out[o+1] = byte(y/3 + seed)
			out[o+2] = byte((x+y)/8 + seed)
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

func TestUncompressedTIFFEndToEnd(t *testing.T) {
	const w, h = 720, 486
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	m, err := s.Create(Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	assert.Equal(t, tiffcodec.ID, m.Codec())

	frames := [][]byte{frame(w, h, 0), frame(w, h, 40), frame(w, h, 80)}
	for _, f := range frames {
		n, err := m.WriteSamples(1, f)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	id := m.ID()
	require.NoError(t, m.Close())

	r, err := s.Open(id, OpenOptions{})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(3), r.SampleCount())

	frameSize := int64(w * h * 3)
	off, err := r.FrameOffset(2)
	require.NoError(t, err)
	assert.Equal(t, 8+frameSize, off)

	got, err := r.ReadSamples(3)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(bytes.Join(frames, nil), got))

	require.NoError(t, r.SetFrameNumber(2))
	second, err := r.ReadSamples(1)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(frames[1], second))

	n, err := r.ChannelCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJPEGSelectedByCompression(t *testing.T) {
	const w, h = 64, 48
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.BestFidelity)

	m, err := s.Create(Spec{
		Class:       codec.ClassCDCI,
		Compression: codec.CompressionJPEG,
		Geometry:    codec.Geometry{Width: w, Height: h},
		Quality:     95,
	})
	require.NoError(t, err)
	assert.Equal(t, jpegcodec.ID, m.Codec())

	src := frame(w, h, 10)
	_, err = m.WriteSamples(1, src)
	require.NoError(t, err)
	_, err = m.WriteSamples(1, src)
	require.NoError(t, err)
	id := m.ID()
	require.NoError(t, m.Close())

	info, err := s.Describe(id)
	require.NoError(t, err)
	assert.Equal(t, jpegcodec.ID, info.Codec)
	assert.Equal(t, int64(2), info.Samples)
	assert.Equal(t, w, info.Geometry.Width)
	assert.Equal(t, []store.ObjectID{id}, s.Descriptors())

	r, err := s.Open(id, OpenOptions{})
	require.NoError(t, err)
	defer r.Close()
	q, err := r.GetInfo(codec.InfoQuality)
	require.NoError(t, err)
	assert.Equal(t, 95, q)
	got, err := r.ReadSamples(1)
	require.NoError(t, err)
	assert.Less(t, meanAbsDiff(src, got), 6.0)
}

func TestExplicitCodecFillsClass(t *testing.T) {
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	m, err := s.Create(Spec{Codec: jpegcodec.AvidID, Geometry: codec.Geometry{Width: 32, Height: 16}})
	require.NoError(t, err)
	defer m.Close()
	class, err := c.Store().Class(m.ID())
	require.NoError(t, err)
	assert.Equal(t, codec.ClassCDCI, class)
	comp, err := store.ReadString(c.Store(), m.ID(), codec.PropCompression)
	require.NoError(t, err)
	assert.Equal(t, codec.CompressionAvid, comp)
}

func TestUnsupportedDescriptor(t *testing.T) {
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	_, err := s.Create(Spec{Class: codec.ClassRGBA, Geometry: codec.Geometry{Width: 8, Height: 8}})
	require.Error(t, err)
	assert.ErrorIs(t, err, mediaerr.ErrUnsupportedFormat)
	assert.Equal(t, mediaerr.KindUnsupported, mediaerr.KindOf(err))

	_, err = s.Create(Spec{Codec: "nope"})
	assert.ErrorIs(t, err, mediaerr.ErrCodecNotRegistered)

	_, err = s.Create(Spec{})
	assert.Equal(t, mediaerr.KindConfiguration, mediaerr.KindOf(err))
}

func TestFailedCreateLeavesNoDescriptor(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"negative width", Spec{Codec: jpegcodec.ID, Geometry: codec.Geometry{Width: -4, Height: 4}}},
		{"no codec claims it", Spec{Class: codec.ClassRGBA, Geometry: codec.Geometry{Width: 8, Height: 8}}},
		{"codec rejects geometry", Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: 8, Height: 8, ComponentBits: 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := container.NewMemory(binary.LittleEndian, nil)
			s := New(newRegistry(t), c, nil, codec.Fastest)
			_, err := s.Create(tt.spec)
			require.Error(t, err)
			assert.Empty(t, c.Store().Objects(""))
			assert.Empty(t, s.Descriptors())
		})
	}
}

func TestCloseReportsFirstError(t *testing.T) {
	const w, h = 16, 8
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	m, err := s.Create(Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	_, err = m.WriteSamples(1, frame(w, h, 1))
	require.NoError(t, err)
	_, err = m.WriteSamples(1, make([]byte, 10))
	require.ErrorIs(t, err, mediaerr.ErrBufferTooSmall)

	err = m.Close()
	assert.ErrorIs(t, err, mediaerr.ErrBufferTooSmall)
	assert.NoError(t, m.Close())
	_, err = m.WriteSamples(1, frame(w, h, 1))
	assert.Error(t, err)

	r, err := s.Open(m.ID(), OpenOptions{})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(1), r.SampleCount())
}

func TestPassThroughOpen(t *testing.T) {
	const w, h = 32, 16
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	m, err := s.Create(Spec{Codec: jpegcodec.ID, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	_, err = m.WriteSamples(1, frame(w, h, 3))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	r, err := s.Open(m.ID(), OpenOptions{Codec: jpegcodec.ID, PassThrough: true})
	require.NoError(t, err)
	defer r.Close()
	raw, err := r.ReadSamples(1)
	require.NoError(t, err)
	require.Greater(t, len(raw), 4)
	assert.Equal(t, []byte{0xFF, 0xD8}, raw[:2])
}

func TestMemoryFormatOnOpen(t *testing.T) {
	const w, h = 16, 8
	c := container.NewMemory(binary.LittleEndian, nil)
	s := New(newRegistry(t), c, nil, codec.Fastest)

	m, err := s.Create(Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	src := frame(w, h, 5)
	_, err = m.WriteSamples(1, src)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	bgr := format.LayoutOf("BGR", 8)
	r, err := s.Open(m.ID(), OpenOptions{MemFormat: format.New(format.WithLayout(format.OpRGBLayout, bgr))})
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadSamples(1)
	require.NoError(t, err)
	require.Len(t, got, len(src))
	assert.Equal(t, src[2], got[0])
	assert.Equal(t, src[0], got[2])
}

func TestDirContainerReopen(t *testing.T) {
	const w, h = 24, 16
	dir := t.TempDir()
	reg := newRegistry(t)

	c, err := container.OpenDir(dir, binary.BigEndian, nil)
	require.NoError(t, err)
	s := New(reg, c, nil, codec.Fastest)
	m, err := s.Create(Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	src := frame(w, h, 9)
	_, err = m.WriteSamples(1, src)
	require.NoError(t, err)
	id := m.ID()
	require.NoError(t, m.Close())
	require.NoError(t, c.Close())

	c2, err := container.OpenDir(dir, binary.LittleEndian, nil)
	require.NoError(t, err)
	defer c2.Close()
	s2 := New(reg, c2, nil, codec.Fastest)
	r, err := s2.Open(id, OpenOptions{})
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadSamples(1)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(src, got))
}
