package codec

import (
	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
)

// Geometry is the picture description a video descriptor carries.
type Geometry struct {
	Width, Height int
	Layout        format.FrameLayout
	// FieldDominance is 1 when the first stored field is the upper one, 2
	// when it is the lower one, 0 when unspecified.
	FieldDominance int
	PixelFormat    format.PixelFormat
	ComponentBits  int
	// HorizSubsampling is 1 for 4:4:4 and 2 for 4:2:2.
	HorizSubsampling int
	Black, White     int
	ColorRange       int
	SampleRate       format.Rational
}

// WithDefaults fills unset fields with 8-bit full-range RGB defaults.
func (g Geometry) WithDefaults() Geometry {
	if g.PixelFormat == 0 {
		g.PixelFormat = format.PixelRGB
	}
	if g.ComponentBits == 0 {
		g.ComponentBits = 8
	}
	if g.HorizSubsampling == 0 {
		g.HorizSubsampling = 1
	}
	if g.White == 0 && g.Black == 0 {
		g.White = 255
	}
	if g.ColorRange == 0 {
		g.ColorRange = 255
	}
	if g.SampleRate.Den == 0 {
		g.SampleRate = format.Rational{Num: 30000, Den: 1001}
	}
	return g
}

// Validate rejects geometry with no picture area.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return mediaerr.Errorf(mediaerr.KindConfiguration, "codec.Geometry", "invalid dimensions %dx%d", g.Width, g.Height)
	}
	return nil
}

// FieldHeight returns the number of lines stored per field.
func (g Geometry) FieldHeight() int {
	return g.Height / g.Layout.FieldCount()
}

// ReadGeometry reads the geometry properties of d. Missing optional
// properties take their defaults; missing or non-positive width or height
// is an error.
func ReadGeometry(d Descriptor) (Geometry, error) {
	s, id := d.Store, d.ID
	var g Geometry
	w, err := store.ReadInt32(s, id, PropStoredWidth)
	if err != nil {
		return g, err
	}
	h, err := store.ReadInt32(s, id, PropStoredHeight)
	if err != nil {
		return g, err
	}
	g.Width, g.Height = int(w), int(h)
	if err := g.Validate(); err != nil {
		return g, err
	}

	opt := func(tag store.Tag) int {
		v, _ := store.ReadInt32Or(s, id, tag, 0)
		return int(v)
	}
	g.Layout = format.FrameLayout(opt(PropFrameLayout))
	g.FieldDominance = opt(PropFieldDominance)
	g.PixelFormat = format.PixelFormat(opt(PropPixelFormat))
	g.ComponentBits = opt(PropComponentBits)
	g.HorizSubsampling = opt(PropHorizSubsampling)
	g.Black = opt(PropBlackLevel)
	g.White = opt(PropWhiteLevel)
	g.ColorRange = opt(PropColorRange)
	if r, err := store.ReadRational(s, id, PropSampleRate); err == nil {
		g.SampleRate = r
	}
	return g.WithDefaults(), nil
}

// WriteGeometry stores g in d.
func WriteGeometry(d Descriptor, g Geometry) error {
	if err := g.Validate(); err != nil {
		return err
	}
	g = g.WithDefaults()
	s, id := d.Store, d.ID
	ints := []struct {
		tag store.Tag
		v   int
	}{
		{PropStoredWidth, g.Width},
		{PropStoredHeight, g.Height},
		{PropFrameLayout, int(g.Layout)},
		{PropFieldDominance, g.FieldDominance},
		{PropPixelFormat, int(g.PixelFormat)},
		{PropComponentBits, g.ComponentBits},
		{PropHorizSubsampling, g.HorizSubsampling},
		{PropBlackLevel, g.Black},
		{PropWhiteLevel, g.White},
		{PropColorRange, g.ColorRange},
	}
	for _, p := range ints {
		if err := store.WriteInt32(s, id, p.tag, int32(p.v)); err != nil {
			return err
		}
	}
	return store.WriteRational(s, id, PropSampleRate, g.SampleRate)
}

// FileFormat describes g as a format list.
func (g Geometry) FileFormat(compression string) format.List {
	return format.New(
		format.Int(format.OpMediaKind, format.MediaVideo),
		format.Str(format.OpCompression, compression),
		format.Int(format.OpFrameLayout, int64(g.Layout)),
		format.Int(format.OpStoredWidth, int64(g.Width)),
		format.Int(format.OpStoredHeight, int64(g.Height)),
		format.Int(format.OpPixelFormat, int64(g.PixelFormat)),
		format.Int(format.OpComponentBits, int64(g.ComponentBits)),
		format.Int(format.OpHorizSubsampling, int64(g.HorizSubsampling)),
		format.Int(format.OpFieldDominance, int64(g.FieldDominance)),
		format.Int(format.OpBlackLevel, int64(g.Black)),
		format.Int(format.OpWhiteLevel, int64(g.White)),
		format.Int(format.OpColorRange, int64(g.ColorRange)),
		format.Rat(format.OpSampleRate, g.SampleRate.Num, g.SampleRate.Den),
	)
}

// MemSampleSize returns the size in bytes of one frame in memory format m.
func MemSampleSize(m format.List, width, height int) int {
	switch format.PixelFormat(m.IntOr(format.OpPixelFormat, int64(format.PixelRGB))) {
	case format.PixelYUV:
		return width * height * 2
	default:
		l, ok := m.Layout(format.OpRGBLayout)
		if !ok {
			return width * height * 3
		}
		return width * height * l.BytesPerPixel()
	}
}
