// Package jpegcodec stores video frames as concatenated JPEG images in a
// data stream, addressed through a frame index persisted in the media
// descriptor. One codec value serves standard JFIF and another the Avid
// marker dialect.
package jpegcodec

import (
	"fmt"
	"sync"

	"mediakit/internal/codec"
	"mediakit/internal/jpeg"
	"mediakit/internal/store"
)

const (
	ID     codec.ID = "jpeg"
	AvidID codec.ID = "avid-jfif"
)

// Private descriptor properties.
const (
	propQuantTables store.Tag = 0x0201 + iota
	propHuffmanTables
)

var privateDefs = []store.Def{
	{Tag: propQuantTables, Name: "JPEGQuantizationTables", Type: store.TypeBytes, Class: codec.ClassCDCI},
	{Tag: propHuffmanTables, Name: "JPEGHuffmanTables", Type: store.TypeBytes, Class: codec.ClassCDCI},
}

// Config holds encoder defaults.
type Config struct {
	Quality         int
	RestartInterval int
	Subsampling     jpeg.Subsampling
}

// DefaultConfig matches common broadcast capture settings.
func DefaultConfig() Config {
	return Config{Quality: 75, RestartInterval: 0, Subsampling: jpeg.S422}
}

// Codec is the JPEG codec.
type Codec struct {
	id          codec.ID
	dialect     jpeg.Dialect
	compression string
	cfg         Config
}

// New returns the standard JFIF codec.
func New(cfg Config) *Codec {
	return &Codec{id: ID, dialect: jpeg.Standard, compression: codec.CompressionJPEG, cfg: cfg.withDefaults()}
}

// NewAvid returns the Avid JFIF codec.
func NewAvid(cfg Config) *Codec {
	return &Codec{id: AvidID, dialect: jpeg.Avid, compression: codec.CompressionAvid, cfg: cfg.withDefaults()}
}

func (c Config) withDefaults() Config {
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = 75
	}
	return c
}

func (c *Codec) Meta() codec.Meta {
	name := "JPEG (JFIF)"
	if c.dialect == jpeg.Avid {
		name = "JPEG (Avid JFIF)"
	}
	return codec.Meta{ID: c.id, Name: name, Class: codec.ClassCDCI, MinRevision: 1, MaxRevision: 2}
}

// Applicability claims CDCI descriptors with this codec's compression tag.
func (c *Codec) Applicability(d codec.Descriptor) codec.Applicability {
	if d.Class() != codec.ClassCDCI || d.Compression() != c.compression {
		return codec.Applicability{}
	}
	a := codec.Applicability{
		WillHandle:   true,
		IsNative:     true,
		RelativeLoss: (100 - c.cfg.Quality) / 10,
	}
	if g, err := codec.ReadGeometry(d); err == nil {
		// Roughly two bits per pixel at quality 75.
		bpp := 0.5 + float64(c.cfg.Quality)/50
		a.AvgBitrate = int64(float64(g.Width*g.Height) * bpp * g.SampleRate.Float())
	}
	if c.dialect == jpeg.Avid {
		// Capture hardware decodes this dialect directly.
		a.HardwareAssisted = true
	}
	return a
}

// shared is the process-wide state: Annex K tables per quality, built on
// first use and then read concurrently.
type shared struct {
	mu     sync.Mutex
	tables map[int]*jpeg.Tables
}

func (c *Codec) InitState() (any, error) {
	s := &shared{tables: make(map[int]*jpeg.Tables)}
	if _, err := s.tablesFor(c.cfg.Quality); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shared) tablesFor(quality int) (*jpeg.Tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[quality]; ok {
		return t, nil
	}
	t, err := jpeg.StandardTables(quality)
	if err != nil {
		return nil, err
	}
	s.tables[quality] = t
	return t, nil
}

func (c *Codec) sharedState(h *codec.Handle) *shared {
	if s, ok := h.Persistent.(*shared); ok {
		return s
	}
	s, _ := c.InitState()
	h.Persistent = s
	return s.(*shared)
}

// InitializeDescriptor registers the codec's properties and fills the
// compression tag and encoder settings when they are absent.
func (c *Codec) InitializeDescriptor(d codec.Descriptor) error {
	if err := codec.RegisterDefs(d.Store, codec.Defs()); err != nil {
		return err
	}
	if err := codec.RegisterDefs(d.Store, privateDefs); err != nil {
		return err
	}
	if !d.Store.Has(d.ID, codec.PropCompression) {
		if err := store.WriteString(d.Store, d.ID, codec.PropCompression, c.compression); err != nil {
			return err
		}
	}
	if !d.Store.Has(d.ID, codec.PropQuality) {
		if err := store.WriteInt32(d.Store, d.ID, codec.PropQuality, int32(c.cfg.Quality)); err != nil {
			return err
		}
	}
	if !d.Store.Has(d.ID, codec.PropRestartInterval) {
		if err := store.WriteInt32(d.Store, d.ID, codec.PropRestartInterval, int32(c.cfg.RestartInterval)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) ChannelCount(codec.Descriptor) (int, error) { return 1, nil }

func (c *Codec) String() string { return fmt.Sprintf("jpegcodec(%s)", c.id) }
