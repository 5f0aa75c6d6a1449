package jpegcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"mediakit/internal/codec"
	"mediakit/internal/format"
	"mediakit/internal/frameindex"
	"mediakit/internal/jpeg"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

// state is the per-handle private block.
type state struct {
	geom    codec.Geometry
	sub     jpeg.Subsampling
	tables  *jpeg.Tables
	enc     *jpeg.Encoder
	dec     *jpeg.Decoder
	luts    *jpeg.LUTs
	remap   bool
	restart int
	current int64 // 1-based number of the next sample to read
	maxSize int64
	// end is the stream offset just past the last complete sample.
	end     int64
}

func stateOf(h *codec.Handle) (*state, error) {
	st, ok := h.Private.(*state)
	if !ok {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "jpegcodec", "handle not opened by this codec")
	}
	return st, nil
}

// subsamplingFor maps the descriptor's horizontal subsampling to a JPEG
// sampling. Without an explicit value the configured default is used.
func (c *Codec) subsamplingFor(g codec.Geometry, explicit bool) jpeg.Subsampling {
	if !explicit {
		return c.cfg.Subsampling
	}
	if g.HorizSubsampling == 2 {
		return jpeg.S422
	}
	return jpeg.S444
}

func (c *Codec) newState(h *codec.Handle) (*state, error) {
	g, err := codec.ReadGeometry(h.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	if g.Layout.FieldCount() == 2 && g.Height%2 != 0 {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpegcodec", "odd height %d for separate fields", g.Height)
	}
	quality, err := store.ReadInt32Or(h.Store(), h.ID(), codec.PropQuality, int32(c.cfg.Quality))
	if err != nil {
		return nil, err
	}
	tables, err := c.sharedState(h).tablesFor(int(quality))
	if err != nil {
		return nil, err
	}
	levels := jpeg.Levels{Black: g.Black, White: g.White, Range: g.ColorRange}
	st := &state{
		geom:    g,
		sub:     c.subsamplingFor(g, h.Store().Has(h.ID(), codec.PropHorizSubsampling)),
		tables:  tables,
		luts:    jpeg.NewLUTs(levels),
		remap:   !levels.IsFull(),
		current: 1,
	}
	return st, nil
}

// memDefaults is the memory format a handle starts with: interleaved 8-bit
// RGB.
func memDefaults() format.List {
	return format.New(
		format.Int(format.OpPixelFormat, int64(format.PixelRGB)),
		format.WithLayout(format.OpRGBLayout, format.LayoutOf("RGB", 8)),
	)
}

// Create prepares a handle for appending samples.
func (c *Codec) Create(h *codec.Handle) error {
	st, err := c.newState(h)
	if err != nil {
		return err
	}
	restart, err := store.ReadInt32Or(h.Store(), h.ID(), codec.PropRestartInterval, int32(c.cfg.RestartInterval))
	if err != nil {
		return err
	}
	st.restart = int(restart)
	st.enc, err = jpeg.NewEncoder(st.tables, jpeg.Options{
		Quality:         st.tables.Quality(),
		RestartInterval: st.restart,
		Dialect:         c.dialect,
	})
	if err != nil {
		return err
	}
	if err := store.WriteBytes(h.Store(), h.ID(), propQuantTables, st.tables.QuantBytes()); err != nil {
		return err
	}
	if err := store.WriteBytes(h.Store(), h.ID(), propHuffmanTables, st.tables.HuffmanBytes()); err != nil {
		return err
	}

	if st.end, err = h.Stream.SeekEnd(); err != nil {
		return err
	}
	h.Stream.SetFileFormat(st.geom.FileFormat(c.compression))
	h.Stream.SetMemFormat(memDefaults())
	h.Index = frameindex.New()
	h.Private = st
	h.Writing = true
	h.SetSampleCount(0)
	h.Logger.Debug("jpeg channel created",
		"codec", c.id, "width", st.geom.Width, "height", st.geom.Height,
		"layout", st.geom.Layout, "quality", st.tables.Quality(), "restart", restart)
	return nil
}

// Open prepares a handle for reading. The frame index comes from the
// descriptor, or is rebuilt by walking the stream's markers.
func (c *Codec) Open(h *codec.Handle) error {
	st, err := c.newState(h)
	if err != nil {
		return err
	}
	st.dec = jpeg.NewDecoder(h.Logger)
	dqt, err := optionalBytes(h, propQuantTables)
	if err != nil {
		return err
	}
	dht, err := optionalBytes(h, propHuffmanTables)
	if err != nil {
		return err
	}
	if err := st.dec.SetTables(dqt, dht); err != nil {
		return fmt.Errorf("load stored tables: %w", err)
	}

	offsets, err := store.Int64Array(h.Store(), h.ID(), codec.PropFrameIndex)
	switch {
	case err == nil && len(offsets) > 0:
	case err == nil || store.IsNotFound(err):
		if offsets, err = c.rebuildIndex(h, st.geom.Layout.FieldCount()); err != nil {
			return err
		}
	default:
		return err
	}
	h.Index = frameindex.FromOffsets(offsets)
	for n := int64(1); n < h.Index.Len(); n++ {
		if l, err := h.Index.Length(n); err == nil && l > st.maxSize {
			st.maxSize = l
		}
	}

	h.Stream.SetFileFormat(st.geom.FileFormat(c.compression))
	h.Stream.SetMemFormat(memDefaults())
	h.Private = st
	h.SetSampleCount(h.Index.Len() - 1)
	if err := h.Stream.Seek(0); err != nil {
		return err
	}
	h.Logger.Debug("jpeg channel opened", "codec", c.id, "samples", h.SampleCount())
	return nil
}

// optionalBytes reads a byte property that may be absent.
func optionalBytes(h *codec.Handle, tag store.Tag) ([]byte, error) {
	b, err := store.ReadBytes(h.Store(), h.ID(), tag)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}
	return b, nil
}

func (c *Codec) rebuildIndex(h *codec.Handle, fields int) ([]int64, error) {
	size, err := h.Stream.Size()
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if err := h.Stream.ReadAt(data, 0); err != nil {
		return nil, err
	}
	images, err := jpeg.ImageOffsets(data)
	if err != nil {
		return nil, fmt.Errorf("rebuild frame index: %w", err)
	}
	// images ends with the stream size; keep the first image of every
	// sample plus that terminator.
	n := len(images) - 1
	if n%fields != 0 {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpegcodec.Open", "%d field images for %d fields per frame", n, fields)
	}
	offsets := make([]int64, 0, n/fields+1)
	for i := 0; i < n; i += fields {
		offsets = append(offsets, images[i])
	}
	offsets = append(offsets, images[n])
	h.Logger.Info("frame index rebuilt from stream", "samples", len(offsets)-1)
	return offsets, nil
}

// Close finishes a written channel: the end-of-data offset is appended and
// the index and sample count are stored in the descriptor.
func (c *Codec) Close(h *codec.Handle) error {
	st, err := stateOf(h)
	if err != nil {
		return err
	}
	defer func() { h.Private = nil }()
	if !h.Writing {
		return nil
	}
	h.Index.Append(st.end)
	if err := h.Store().WriteInt64Array(h.ID(), codec.PropFrameIndex, h.Index.Offsets()); err != nil {
		return err
	}
	return store.WriteInt64(h.Store(), h.ID(), codec.PropLength, h.SampleCount())
}

// WriteSamples appends n samples. With compression enabled data holds n
// memory-format frames; otherwise it holds the compressed images.
func (c *Codec) WriteSamples(h *codec.Handle, n int, data []byte) (int, error) {
	st, err := stateOf(h)
	if err != nil {
		return 0, err
	}
	if !h.Writing {
		return 0, mediaerr.Errorf(mediaerr.KindConfiguration, "jpegcodec.WriteSamples", "handle opened for reading")
	}
	if err := h.Stream.Seek(st.end); err != nil {
		return 0, err
	}
	if !h.Compress {
		return c.writeCompressed(h, st, n, data)
	}

	mem := h.Stream.MemFormat()
	size := codec.MemSampleSize(mem, st.geom.Width, st.geom.Height)
	if len(data) < n*size {
		return 0, mediaerr.E(mediaerr.KindResource, "jpegcodec.WriteSamples",
			fmt.Errorf("%d bytes for %d samples of %d: %w", len(data), n, size, mediaerr.ErrBufferTooSmall))
	}
	for i := 0; i < n; i++ {
		p, err := MemToPlanes(mem, data[i*size:(i+1)*size], st.geom.Width, st.geom.Height, st.sub)
		if err != nil {
			return i, err
		}
		if st.remap {
			p.Remap(&st.luts.ToFullLuma, &st.luts.ToFullChroma)
		}
		pos := h.Stream.Pos()
		st.enc.SetBase(pos)
		var img []byte
		if st.geom.Layout.FieldCount() == 2 {
			first, second := p.SplitFields()
			if st.geom.FieldDominance == 2 {
				first, second = second, first
			}
			img, err = st.enc.EncodeFields(first, second)
		} else {
			img, err = st.enc.Encode(p)
		}
		if err != nil {
			return i, err
		}
		if err := c.appendSample(h, st, pos, img); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (c *Codec) writeCompressed(h *codec.Handle, st *state, n int, data []byte) (int, error) {
	images, err := jpeg.SplitImages(data)
	if err != nil {
		return 0, err
	}
	fields := st.geom.Layout.FieldCount()
	if len(images) != n*fields {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "jpegcodec.WriteSamples",
			"%d images for %d samples of %d fields", len(images), n, fields)
	}
	for i := 0; i < n; i++ {
		var sample []byte
		for _, img := range images[i*fields : (i+1)*fields] {
			sample = append(sample, img...)
		}
		if err := c.appendSample(h, st, h.Stream.Pos(), sample); err != nil {
			return i, err
		}
	}
	return n, nil
}

// appendSample writes one sample and indexes it. A failed write is rolled
// back so the index only ever covers complete samples.
func (c *Codec) appendSample(h *codec.Handle, st *state, pos int64, img []byte) error {
	n := h.SampleCount()
	h.Index.Append(pos)
	if err := h.Stream.WriteRaw(img); err != nil {
		h.Index.Truncate(n)
		if serr := h.Stream.Seek(st.end); serr != nil {
			return errors.Join(err, serr)
		}
		return err
	}
	st.end = h.Stream.Pos()
	h.SetSampleCount(n + 1)
	if int64(len(img)) > st.maxSize {
		st.maxSize = int64(len(img))
	}
	return nil
}

// MemToPlanes converts one memory-format frame (interleaved RGB in any
// 8-bit component layout, or UYVY) into planes with sampling sub.
func MemToPlanes(mem format.List, sample []byte, width, height int, sub jpeg.Subsampling) (*jpeg.Planes, error) {
	if format.PixelFormat(mem.IntOr(format.OpPixelFormat, int64(format.PixelRGB))) == format.PixelYUV {
		return jpeg.FromUYVY(sample, width, height)
	}
	rgb := format.LayoutOf("RGB", 8)
	if l, ok := mem.Layout(format.OpRGBLayout); ok && !l.Equal(rgb) {
		var err error
		if sample, err = stream.Reorder(sample, l, rgb, binaryOrder(mem)); err != nil {
			return nil, err
		}
	}
	return jpeg.FromRGB(sample, width, height, sub)
}

// PlanesToMem converts decoded planes into memory format mem.
func PlanesToMem(p *jpeg.Planes, mem format.List) ([]byte, error) {
	if format.PixelFormat(mem.IntOr(format.OpPixelFormat, int64(format.PixelRGB))) == format.PixelYUV {
		return p.UYVY(), nil
	}
	out := p.RGB()
	rgb := format.LayoutOf("RGB", 8)
	if l, ok := mem.Layout(format.OpRGBLayout); ok && !l.Equal(rgb) {
		return stream.Reorder(out, rgb, l, binaryOrder(mem))
	}
	return out, nil
}

// ReadSamples reads n samples starting at the current frame.
func (c *Codec) ReadSamples(h *codec.Handle, n int) ([]byte, error) {
	st, err := stateOf(h)
	if err != nil {
		return nil, err
	}
	if st.current+int64(n) > h.Index.Len() {
		return nil, mediaerr.E(mediaerr.KindPosition, "jpegcodec.ReadSamples",
			fmt.Errorf("samples %d..%d of %d: %w", st.current, st.current+int64(n)-1, h.SampleCount(), mediaerr.ErrBadFrameOffset))
	}
	mem := h.Stream.MemFormat()
	var out []byte
	for i := 0; i < n; i++ {
		raw, err := c.readRaw(h, st.current)
		if err != nil {
			return out, err
		}
		st.current++
		if !h.Compress {
			out = append(out, raw...)
			continue
		}
		p, err := c.decodeSample(st, raw)
		if err != nil {
			return out, fmt.Errorf("sample %d: %w", st.current-1, err)
		}
		if st.remap {
			p.Remap(&st.luts.FromFullLuma, &st.luts.FromFullChroma)
		}
		b, err := PlanesToMem(p, mem)
		if err != nil {
			return out, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (c *Codec) readRaw(h *codec.Handle, n int64) ([]byte, error) {
	off, err := h.Index.Lookup(n)
	if err != nil {
		return nil, err
	}
	l, err := h.Index.Length(n)
	if err != nil {
		return nil, err
	}
	bp := stream.GetScratch(int(l))
	defer stream.PutScratch(bp)
	buf := (*bp)[:l]
	if err := h.Stream.Seek(off); err != nil {
		return nil, err
	}
	if err := h.Stream.ReadRaw(buf); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf...), nil
}

func (c *Codec) decodeSample(st *state, raw []byte) (*jpeg.Planes, error) {
	if st.geom.Layout.FieldCount() == 1 {
		return st.dec.Decode(raw)
	}
	images, err := jpeg.SplitImages(raw)
	if err != nil {
		return nil, err
	}
	if len(images) != 2 {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpegcodec.ReadSamples", "%d field images in sample", len(images))
	}
	first, err := st.dec.Decode(images[0])
	if err != nil {
		return nil, fmt.Errorf("first field: %w", err)
	}
	second, err := st.dec.Decode(images[1])
	if err != nil {
		return nil, fmt.Errorf("second field: %w", err)
	}
	if st.geom.FieldDominance == 2 {
		first, second = second, first
	}
	return jpeg.JoinFields(first, second)
}

// SetFrameNumber positions the handle so the next read returns sample n.
func (c *Codec) SetFrameNumber(h *codec.Handle, n int64) error {
	st, err := stateOf(h)
	if err != nil {
		return err
	}
	off, err := h.Index.Lookup(n)
	if err != nil {
		return err
	}
	st.current = n
	return h.Stream.Seek(off)
}

// FrameOffset returns the stream position of sample n.
func (c *Codec) FrameOffset(h *codec.Handle, n int64) (int64, error) {
	if h.Index == nil {
		return 0, mediaerr.E(mediaerr.KindPosition, "jpegcodec.FrameOffset", mediaerr.ErrNoFrameIndex)
	}
	return h.Index.Lookup(n)
}

func (c *Codec) GetInfo(h *codec.Handle, kind codec.InfoKind) (any, error) {
	st, err := stateOf(h)
	if err != nil {
		return nil, err
	}
	switch kind {
	case codec.InfoFileFormat:
		return h.Stream.FileFormat(), nil
	case codec.InfoMemFormat:
		return h.Stream.MemFormat(), nil
	case codec.InfoMaxSampleSize:
		if !h.Compress {
			return st.maxSize, nil
		}
		return int64(codec.MemSampleSize(h.Stream.MemFormat(), st.geom.Width, st.geom.Height)), nil
	case codec.InfoSampleSize:
		if !h.Compress {
			return h.Index.Length(st.current)
		}
		return int64(codec.MemSampleSize(h.Stream.MemFormat(), st.geom.Width, st.geom.Height)), nil
	case codec.InfoFrameLayout:
		return st.geom.Layout, nil
	case codec.InfoQuality:
		return st.tables.Quality(), nil
	case codec.InfoCompressionEnabled:
		return h.Compress, nil
	case codec.InfoSampleCount:
		return h.SampleCount(), nil
	}
	return nil, codec.UnknownInfo(c, kind)
}

func (c *Codec) PutInfo(h *codec.Handle, kind codec.InfoKind, value any) error {
	st, err := stateOf(h)
	if err != nil {
		return err
	}
	switch kind {
	case codec.InfoMemFormat:
		l, ok := value.(format.List)
		if !ok {
			return codec.BadInfoValue(kind, value)
		}
		if format.PixelFormat(l.IntOr(format.OpPixelFormat, int64(format.PixelRGB))) == format.PixelYUV && st.geom.Width%2 != 0 {
			return mediaerr.Errorf(mediaerr.KindUnsupported, "jpegcodec.PutInfo", "UYVY needs an even width, have %d", st.geom.Width)
		}
		h.Stream.SetMemFormat(l)
		return nil
	case codec.InfoCompressionEnabled:
		v, ok := value.(bool)
		if !ok {
			return codec.BadInfoValue(kind, value)
		}
		h.Compress = v
		return nil
	case codec.InfoQuality:
		q, ok := value.(int)
		if !ok || q < 1 || q > 100 {
			return codec.BadInfoValue(kind, value)
		}
		if !h.Writing || h.SampleCount() > 0 {
			return mediaerr.Errorf(mediaerr.KindConfiguration, "jpegcodec.PutInfo", "quality is fixed once samples are written")
		}
		tables, err := c.sharedState(h).tablesFor(q)
		if err != nil {
			return err
		}
		enc, err := jpeg.NewEncoder(tables, jpeg.Options{Quality: q, RestartInterval: st.restart, Dialect: c.dialect})
		if err != nil {
			return err
		}
		st.tables, st.enc = tables, enc
		if err := store.WriteInt32(h.Store(), h.ID(), codec.PropQuality, int32(q)); err != nil {
			return err
		}
		if err := store.WriteBytes(h.Store(), h.ID(), propQuantTables, tables.QuantBytes()); err != nil {
			return err
		}
		return store.WriteBytes(h.Store(), h.ID(), propHuffmanTables, tables.HuffmanBytes())
	}
	return codec.UnknownInfo(c, kind)
}

func binaryOrder(l format.List) binary.ByteOrder {
	return format.ByteOrder(l.IntOr(format.OpByteOrder, int64(format.LittleEndian))).Binary()
}
