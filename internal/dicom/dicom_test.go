package dicom

import (
	"bytes"
	"encoding/binary"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"

	"mediakit/internal/codec"
	"mediakit/internal/container"
	"mediakit/internal/format"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/mediaerr"
	"mediakit/internal/session"
	"mediakit/internal/tiffcodec"
)

func TestEncapsulateOffsets(t *testing.T) {
	frames := [][]byte{make([]byte, 5), make([]byte, 8), make([]byte, 1)}
	assert.Equal(t, []uint32{0, 14, 30}, OffsetTable(frames))

	data := Encapsulate(frames)
	assert.Equal(t, []byte{0xFE, 0xFF, 0x00, 0xE0}, data[:4])
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, []byte{0xFE, 0xFF, 0xDD, 0xE0, 0, 0, 0, 0}, data[len(data)-8:])

	offsets, got, err := Decapsulate(data)
	require.NoError(t, err)
	assert.Equal(t, OffsetTable(frames), offsets)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 6)
	assert.Len(t, got[1], 8)
	assert.Len(t, got[2], 2)
}

func TestDecapsulateRejectsGarbage(t *testing.T) {
	_, _, err := Decapsulate([]byte{1, 2, 3, 4, 0, 0, 0, 0})
	assert.Equal(t, mediaerr.KindFormat, mediaerr.KindOf(err))

	data := Encapsulate([][]byte{{1, 2}})
	_, _, err = Decapsulate(data[:len(data)-12])
	assert.Error(t, err)
}

func gradient(w, h int) []byte {
	out := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := 3 * (y*w + x)
			out[o] = byte(x * 2)
			out[o+1] = byte(y * 3)
			out[o+2] = byte((x + y) / 2)
		}
	}
	return out
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	reg := codec.NewRegistry(nil)
	require.NoError(t, reg.Register(jpegcodec.New(jpegcodec.DefaultConfig())))
	require.NoError(t, reg.Register(tiffcodec.New(tiffcodec.Config{})))
	return session.New(reg, container.NewMemory(binary.LittleEndian, nil), nil, codec.Fastest)
}

func TestExportJPEG(t *testing.T) {
	const w, h = 64, 32
	s := newSession(t)
	m, err := s.Create(session.Spec{Codec: jpegcodec.ID, Geometry: codec.Geometry{Width: w, Height: h, HorizSubsampling: 2}})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := m.WriteSamples(1, gradient(w, h))
		require.NoError(t, err)
	}
	require.NoError(t, m.Close())

	r, err := s.Open(m.ID(), session.OpenOptions{})
	require.NoError(t, err)
	defer r.Close()

	var out bytes.Buffer
	require.NoError(t, ExportJPEG(r, &out, Meta{PatientName: "Test^Pattern", SeriesDescription: "gradient"}))
	assert.Equal(t, "DICM", string(out.Bytes()[128:132]))

	// The channel is usable again afterwards.
	require.NoError(t, r.SetFrameNumber(1))
	decoded, err := r.ReadSamples(1)
	require.NoError(t, err)
	assert.Len(t, decoded, w*h*3)

	ds, err := Parse(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	assert.Equal(t, JPEGBaselineProcess1, ds.TransferSyntax())
	assert.Equal(t, h, ds.GetInt(tag.Rows))
	assert.Equal(t, w, ds.GetInt(tag.Columns))
	assert.Equal(t, "3", strings.TrimSpace(ds.GetString(tag.NumberOfFrames)))
	assert.Equal(t, "YBR_FULL_422", strings.TrimSpace(ds.GetString(tag.PhotometricInterpretation)))
	assert.True(t, strings.HasPrefix(ds.GetString(tag.SOPInstanceUID), "2.25."))

	frames, err := ReadEncapsulatedFrames(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	require.Len(t, frames, 3)

	require.NoError(t, r.PutInfo(codec.InfoCompressionEnabled, false))
	require.NoError(t, r.SetFrameNumber(1))
	stored, err := r.ReadSamples(1)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(frames[0], stored))
	assert.LessOrEqual(t, len(frames[0])-len(stored), 1)

	img, err := jpeg.Decode(bytes.NewReader(frames[0]))
	require.NoError(t, err)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}

func TestExportRejectsOtherChannels(t *testing.T) {
	s := newSession(t)
	m, err := s.Create(session.Spec{Class: codec.ClassTIFF, Geometry: codec.Geometry{Width: 8, Height: 8}})
	require.NoError(t, err)
	defer m.Close()
	err = ExportJPEG(m, &bytes.Buffer{}, Meta{})
	assert.ErrorIs(t, err, mediaerr.ErrOperationNotSupported)

	f, err := s.Create(session.Spec{Codec: jpegcodec.ID, Geometry: codec.Geometry{Width: 8, Height: 8, Layout: format.SeparateFields}})
	require.NoError(t, err)
	defer f.Close()
	err = ExportJPEG(f, &bytes.Buffer{}, Meta{})
	assert.Equal(t, mediaerr.KindUnsupported, mediaerr.KindOf(err))
}

func TestExportKeepsPassThrough(t *testing.T) {
	const w, h = 16, 16
	s := newSession(t)
	m, err := s.Create(session.Spec{Codec: jpegcodec.ID, Geometry: codec.Geometry{Width: w, Height: h}})
	require.NoError(t, err)
	_, err = m.WriteSamples(1, gradient(w, h))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	r, err := s.Open(m.ID(), session.OpenOptions{PassThrough: true})
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, ExportJPEG(r, &bytes.Buffer{}, Meta{}))

	v, err := r.GetInfo(codec.InfoCompressionEnabled)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}
