// Package tiffcodec stores video frames in a single-directory TIFF stream:
// an 8-byte header, the frame data, then one image file directory written
// on close. Frames are either uncompressed RGB or abbreviated JPEG images
// whose shared tables live in the directory.
package tiffcodec

import (
	"encoding/binary"
	"sync"

	"mediakit/internal/codec"
	"mediakit/internal/jpeg"
	"mediakit/internal/store"
)

const ID codec.ID = "tiff"

// Config holds writer defaults.
type Config struct {
	// ByteOrder of written files. Nil uses the store's order.
	ByteOrder       binary.ByteOrder
	Quality         int
	RestartInterval int
}

// Codec is the TIFF codec.
type Codec struct {
	cfg Config
}

func New(cfg Config) *Codec {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 75
	}
	return &Codec{cfg: cfg}
}

func (c *Codec) Meta() codec.Meta {
	return codec.Meta{ID: ID, Name: "TIFF", Class: codec.ClassTIFF, MinRevision: 1, MaxRevision: 2}
}

func (c *Codec) Applicability(d codec.Descriptor) codec.Applicability {
	if d.Class() != codec.ClassTIFF {
		return codec.Applicability{}
	}
	a := codec.Applicability{WillHandle: true}
	g, gerr := codec.ReadGeometry(d)
	switch d.Compression() {
	case codec.CompressionNone:
		a.IsNative = true
		if gerr == nil {
			a.AvgBitrate = int64(float64(g.Width*g.Height*3*g.ComponentBits) * g.SampleRate.Float())
		}
	case codec.CompressionJPEG:
		a.RelativeLoss = (100 - c.cfg.Quality) / 10
		if gerr == nil {
			bpp := 0.5 + float64(c.cfg.Quality)/50
			a.AvgBitrate = int64(float64(g.Width*g.Height) * bpp * g.SampleRate.Float())
		}
	default:
		return codec.Applicability{}
	}
	return a
}

type shared struct {
	mu     sync.Mutex
	tables map[int]*jpeg.Tables
}

func (c *Codec) InitState() (any, error) {
	return &shared{tables: make(map[int]*jpeg.Tables)}, nil
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

func (c *Codec) InitializeDescriptor(d codec.Descriptor) error {
	if err := codec.RegisterDefs(d.Store, codec.Defs()); err != nil {
		return err
	}
	if !d.Store.Has(d.ID, codec.PropCompression) {
		if err := store.WriteString(d.Store, d.ID, codec.PropCompression, codec.CompressionNone); err != nil {
			return err
		}
	}
	if d.Compression() == codec.CompressionJPEG && !d.Store.Has(d.ID, codec.PropQuality) {
		return store.WriteInt32(d.Store, d.ID, codec.PropQuality, int32(c.cfg.Quality))
	}
	return nil
}

func (c *Codec) ChannelCount(codec.Descriptor) (int, error) { return 1, nil }
