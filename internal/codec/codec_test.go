package codec

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
)

// fakeCodec implements only the required interface.
type fakeCodec struct {
	id          ID
	compression string
	app         Applicability
}

func (f *fakeCodec) Meta() Meta { return Meta{ID: f.id, Class: ClassCDCI} }

func (f *fakeCodec) Applicability(d Descriptor) Applicability {
	if d.Compression() != f.compression {
		return Applicability{}
	}
	a := f.app
	a.WillHandle = true
	return a
}

func (f *fakeCodec) Open(*Handle) error   { return nil }
func (f *fakeCodec) Create(*Handle) error { return nil }
func (f *fakeCodec) Close(*Handle) error  { return nil }

// statefulCodec adds persistent state and a sample reader.
type statefulCodec struct {
	fakeCodec
	inits int
}

func (s *statefulCodec) InitState() (any, error) {
	s.inits++
	return "tables", nil
}

func (s *statefulCodec) ReadSamples(h *Handle, n int) ([]byte, error) {
	return []byte(h.Persistent.(string)), nil
}

func descriptor(t *testing.T, compression string) Descriptor {
	t.Helper()
	st := store.NewMemory(nil, nil)
	id := st.NewObject(ClassCDCI)
	require.NoError(t, store.WriteString(st, id, PropCompression, compression))
	return Descriptor{Store: st, ID: id}
}

func TestSelect(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCodec{id: "soft", compression: "JPEG", app: Applicability{IsNative: true, RelativeLoss: 2, AvgBitrate: 50e6}}))
	require.NoError(t, r.Register(&fakeCodec{id: "hw", compression: "JPEG", app: Applicability{HardwareAssisted: true, RelativeLoss: 3, AvgBitrate: 80e6}}))
	require.NoError(t, r.Register(&fakeCodec{id: "small", compression: "JPEG", app: Applicability{RelativeLoss: 5, AvgBitrate: 10e6}}))
	require.NoError(t, r.Register(&fakeCodec{id: "raw", compression: "", app: Applicability{IsNative: true}}))

	d := descriptor(t, "JPEG")
	tests := []struct {
		criterion Criterion
		want      ID
	}{
		{Fastest, "hw"},
		{BestFidelity, "soft"},
		{Smallest, "small"},
	}
	for _, tt := range tests {
		t.Run(tt.criterion.String(), func(t *testing.T) {
			got, err := r.Select(d, tt.criterion)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	r.SetCustomScore(func(a Applicability) float64 { return float64(a.RelativeLoss) })
	got, err := r.Select(d, Custom)
	require.NoError(t, err)
	assert.Equal(t, ID("small"), got)

	got, err = r.Select(descriptor(t, ""), Fastest)
	require.NoError(t, err)
	assert.Equal(t, ID("raw"), got)
}

func TestSelectTieGoesToFirstRegistered(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCodec{id: "a", compression: "JPEG"}))
	require.NoError(t, r.Register(&fakeCodec{id: "b", compression: "JPEG"}))
	got, err := r.Select(descriptor(t, "JPEG"), BestFidelity)
	require.NoError(t, err)
	assert.Equal(t, ID("a"), got)
}

func TestSelectUnsupported(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCodec{id: "a", compression: "JPEG"}))
	_, err := r.Select(descriptor(t, "MPEG"), Fastest)
	assert.ErrorIs(t, err, mediaerr.ErrUnsupportedFormat)
	assert.True(t, mediaerr.Recoverable(err))
}

func TestRegister(t *testing.T) {
	r := NewRegistry(nil)
	s := &statefulCodec{fakeCodec: fakeCodec{id: "s"}}
	require.NoError(t, r.Register(s))
	assert.Equal(t, 1, s.inits)

	err := r.Register(s)
	assert.Equal(t, mediaerr.KindConfiguration, mediaerr.KindOf(err))
	assert.Equal(t, 1, s.inits, "state is created once per registration")

	_, _, err = r.Lookup("missing")
	assert.ErrorIs(t, err, mediaerr.ErrCodecNotRegistered)

	assert.Equal(t, []Meta{{ID: "s", Class: ClassCDCI}}, r.Codecs())
}

func TestDispatchOptionalOperations(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&statefulCodec{fakeCodec: fakeCodec{id: "s"}}))
	require.NoError(t, r.Register(&fakeCodec{id: "plain"}))

	h := NewHandle(descriptor(t, ""), nil, nil)
	c, err := r.Bind("s", h)
	require.NoError(t, err)
	got, err := ReadSamples(c, h, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("tables"), got)

	plain, err := r.Bind("plain", h)
	require.NoError(t, err)
	checks := map[string]error{}
	_, checks["read"] = ReadSamples(plain, h, 1)
	_, checks["write"] = WriteSamples(plain, h, 1, nil)
	_, checks["getinfo"] = GetInfo(plain, h, InfoSummary)
	checks["putinfo"] = PutInfo(plain, h, InfoQuality, 50)
	checks["init"] = InitializeDescriptor(plain, h.Descriptor)
	checks["setframe"] = SetFrameNumber(plain, h, 1)
	_, checks["offset"] = FrameOffset(plain, h, 1)
	for name, err := range checks {
		assert.True(t, errors.Is(err, mediaerr.ErrOperationNotSupported), name)
		assert.True(t, mediaerr.Recoverable(err), name)
	}

	n, err := ChannelCount(plain, h.Descriptor)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentSelect(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCodec{id: "a", compression: "JPEG"}))
	d := descriptor(t, "JPEG")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id, err := r.Select(d, Fastest)
				assert.NoError(t, err)
				assert.Equal(t, ID("a"), id)
			}
		}()
	}
	wg.Wait()
}

func TestParseCriterion(t *testing.T) {
	for in, want := range map[string]Criterion{"": Fastest, "smallest": Smallest, "Best-Fidelity": BestFidelity, "custom": Custom} {
		got, err := ParseCriterion(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCriterion("cheapest")
	assert.Error(t, err)
}

func TestGeometryRejectsEmptyPicture(t *testing.T) {
	tests := []struct {
		name string
		g    Geometry
	}{
		{"zero width", Geometry{Width: 0, Height: 4}},
		{"negative width", Geometry{Width: -4, Height: 4}},
		{"zero height", Geometry{Width: 4, Height: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptor(t, "")
			err := WriteGeometry(d, tt.g)
			require.Error(t, err)
			assert.Equal(t, mediaerr.KindConfiguration, mediaerr.KindOf(err))

			require.NoError(t, store.WriteInt32(d.Store, d.ID, PropStoredWidth, int32(tt.g.Width)))
			require.NoError(t, store.WriteInt32(d.Store, d.ID, PropStoredHeight, int32(tt.g.Height)))
			_, err = ReadGeometry(d)
			assert.Equal(t, mediaerr.KindConfiguration, mediaerr.KindOf(err))
		})
	}
}
