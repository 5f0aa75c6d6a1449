package tiffcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"mediakit/internal/codec"
	"mediakit/internal/format"
	"mediakit/internal/frameindex"
	"mediakit/internal/jpeg"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

// Phase is the lifecycle position of a TIFF handle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	// PhaseDescriptorOnly: header written, no samples yet.
	PhaseDescriptorOnly
	PhaseWriting
	// PhaseClosed: directory written and header patched.
	PhaseClosed
	// PhaseOpened: directory parsed, nothing read yet.
	PhaseOpened
	PhaseReading
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "Uninitialized"
	case PhaseDescriptorOnly:
		return "DescriptorOnly"
	case PhaseWriting:
		return "Writing"
	case PhaseClosed:
		return "Closed"
	case PhaseOpened:
		return "Opened"
	case PhaseReading:
		return "Reading"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type state struct {
	phase      Phase
	geom       codec.Geometry
	order      binary.ByteOrder
	compressed bool
	// frameSize is the file-format size of one uncompressed frame.
	frameSize int64
	base      int64
	count     int64
	// end is the stream offset just past the last complete sample.
	end       int64
	current   int64
	summary   []byte

	quality int
	sub     jpeg.Subsampling
	tables  *jpeg.Tables
	enc     *jpeg.Encoder
	dec     *jpeg.Decoder
	maxSize int64
}

func stateOf(h *codec.Handle) (*state, error) {
	st, ok := h.Private.(*state)
	if !ok {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "tiffcodec", "handle not opened by this codec")
	}
	return st, nil
}

// PhaseOf reports the lifecycle phase of h.
func PhaseOf(h *codec.Handle) Phase {
	if st, ok := h.Private.(*state); ok {
		return st.phase
	}
	return PhaseUninitialized
}

func fileFormat(g codec.Geometry, order binary.ByteOrder, compressed bool) format.List {
	comp := codec.CompressionNone
	if compressed {
		comp = codec.CompressionJPEG
	}
	l := g.FileFormat(comp)
	l.Append(format.WithLayout(format.OpRGBLayout, format.LayoutOf("RGB", uint8(g.ComponentBits))), format.Overwrite)
	l.Append(format.Int(format.OpByteOrder, int64(format.OrderOf(order))), format.Overwrite)
	return l
}

// memFormat is the default memory format: the file's RGB layout in
// little-endian order.
func memFormat(g codec.Geometry) format.List {
	return format.New(
		format.Int(format.OpPixelFormat, int64(format.PixelRGB)),
		format.WithLayout(format.OpRGBLayout, format.LayoutOf("RGB", uint8(g.ComponentBits))),
		format.Int(format.OpByteOrder, int64(format.LittleEndian)),
	)
}

func subsamplingOf(g codec.Geometry) jpeg.Subsampling {
	if g.HorizSubsampling == 2 {
		return jpeg.S422
	}
	return jpeg.S444
}

// Create writes the file header and prepares the handle for appending.
func (c *Codec) Create(h *codec.Handle) error {
	g, err := codec.ReadGeometry(h.Descriptor)
	if err != nil {
		return fmt.Errorf("read geometry: %w", err)
	}
	st := &state{
		phase:      PhaseUninitialized,
		geom:       g,
		order:      c.cfg.ByteOrder,
		compressed: h.Descriptor.Compression() == codec.CompressionJPEG,
		base:       HeaderSize,
		end:        HeaderSize,
		current:    1,
	}
	if st.order == nil {
		st.order = h.Store().ByteOrder()
	}
	if g.ComponentBits != 8 && (st.compressed || g.ComponentBits != 16) {
		return mediaerr.Errorf(mediaerr.KindUnsupported, "tiffcodec.Create", "%d-bit components", g.ComponentBits)
	}
	st.frameSize = int64(g.Width) * int64(g.Height) * 3 * int64(g.ComponentBits/8)

	if st.compressed {
		q, err := store.ReadInt32Or(h.Store(), h.ID(), codec.PropQuality, int32(c.cfg.Quality))
		if err != nil {
			return err
		}
		if err := c.setQuality(h, st, int(q)); err != nil {
			return err
		}
		st.sub = subsamplingOf(g)
		h.Index = frameindex.New()
	}

	h.Stream.SetFileFormat(fileFormat(g, st.order, st.compressed))
	h.Stream.SetMemFormat(memFormat(g))
	if err := h.Stream.Seek(0); err != nil {
		return err
	}
	if err := h.Stream.WriteRaw(EncodeHeader(st.order, 0)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	st.phase = PhaseDescriptorOnly
	h.Private = st
	h.Writing = true
	h.SetSampleCount(0)
	h.Logger.Debug("tiff channel created", "width", g.Width, "height", g.Height,
		"compressed", st.compressed, "order", st.order)
	return nil
}

func (c *Codec) setQuality(h *codec.Handle, st *state, q int) error {
	tables, err := c.sharedState(h).tablesFor(q)
	if err != nil {
		return err
	}
	enc, err := jpeg.NewEncoder(tables, jpeg.Options{
		Quality:         q,
		RestartInterval: c.cfg.RestartInterval,
		OmitTables:      true,
	})
	if err != nil {
		return err
	}
	st.quality, st.tables, st.enc = q, tables, enc
	return nil
}

// ReadDirectory reads the header and directory of a TIFF stream of the
// given size.
func ReadDirectory(r ReaderAt, size int64) (Header, *Directory, error) {
	b := make([]byte, HeaderSize)
	if err := r.ReadAt(b, 0); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}
	hdr, err := ParseHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.DirOffset == 0 || int64(hdr.DirOffset) >= size {
		return hdr, nil, malformed("directory offset %d in %d-byte stream", hdr.DirOffset, size)
	}
	dir, err := ParseDirectory(r, hdr.Order, int64(hdr.DirOffset), size)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, dir, nil
}

func required(dir *Directory, tag uint16) (uint32, error) {
	e, ok := dir.Get(tag)
	if !ok {
		return 0, malformed("missing %s", TagName(tag))
	}
	return e.Uint(dir.Order)
}

func optional(dir *Directory, tag uint16, def uint32) (uint32, error) {
	e, ok := dir.Get(tag)
	if !ok {
		return def, nil
	}
	return e.Uint(dir.Order)
}

// bitsPerSample reads the component depth, which must be given for exactly
// three components of equal size.
func bitsPerSample(dir *Directory) (int, error) {
	e, ok := dir.Get(TagBitsPerSample)
	if !ok {
		return 0, malformed("missing %s", TagName(TagBitsPerSample))
	}
	if e.Count != 3 {
		return 0, malformed("%s has %d components, want 3", TagName(TagBitsPerSample), e.Count)
	}
	bits, err := e.Uints(dir.Order)
	if err != nil {
		return 0, err
	}
	if bits[0] != bits[1] || bits[1] != bits[2] || (bits[0] != 8 && bits[0] != 16) {
		return 0, malformed("%s %v", TagName(TagBitsPerSample), bits)
	}
	return int(bits[0]), nil
}

// Open parses the directory and prepares the handle for reading.
func (c *Codec) Open(h *codec.Handle) error {
	size, err := h.Stream.Size()
	if err != nil {
		return err
	}
	hdr, dir, err := ReadDirectory(h.Stream, size)
	if err != nil {
		return err
	}
	g, err := codec.ReadGeometry(h.Descriptor)
	if err != nil && !store.IsNotFound(err) {
		return err
	}
	st := &state{phase: PhaseUninitialized, order: hdr.Order, current: 1}

	w, err := required(dir, TagImageWidth)
	if err != nil {
		return err
	}
	ht, err := required(dir, TagImageLength)
	if err != nil {
		return err
	}
	if w == 0 || ht == 0 || w > math.MaxInt32 || ht > math.MaxInt32 {
		return malformed("image is %dx%d", w, ht)
	}
	bits, err := bitsPerSample(dir)
	if err != nil {
		return err
	}
	comp, err := optional(dir, TagCompression, compressionNone)
	if err != nil {
		return err
	}
	switch comp {
	case compressionNone:
	case compressionJPEG:
		st.compressed = true
	default:
		return mediaerr.Errorf(mediaerr.KindUnsupported, "tiffcodec.Open", "compression %d: %w", comp, mediaerr.ErrUnsupportedFormat)
	}
	layout, err := optional(dir, TagFrameLayout, uint32(format.FullFrame))
	if err != nil {
		return err
	}
	dominance, err := optional(dir, TagFieldDominance, 0)
	if err != nil {
		return err
	}
	base, err := optional(dir, TagDataOffset, HeaderSize)
	if err != nil {
		return err
	}
	g.Width, g.Height, g.ComponentBits = int(w), int(ht), bits
	g.Layout = format.FrameLayout(layout)
	g.FieldDominance = int(dominance)
	if e, ok := dir.Get(TagFrameRate); ok {
		num, den, err := e.Rational(dir.Order)
		if err != nil {
			return err
		}
		g.SampleRate = format.Rational{Num: int32(num), Den: int32(den)}
	}
	g = g.WithDefaults()
	st.geom = g
	st.base = int64(base)
	st.frameSize = int64(g.Width) * int64(g.Height) * 3 * int64(bits/8)

	count, err := optional(dir, TagSampleCount, math.MaxUint32)
	if err != nil {
		return err
	}
	if st.compressed {
		if err := c.openCompressed(h, st, dir); err != nil {
			return err
		}
		st.count = h.Index.Len() - 1
	} else if count == math.MaxUint32 {
		st.count = (int64(hdr.DirOffset) - st.base) / st.frameSize
	} else {
		st.count = int64(count)
	}
	if !st.compressed && st.base+st.count*st.frameSize > int64(hdr.DirOffset) {
		return malformed("%d frames of %d bytes overlap the directory at %d", st.count, st.frameSize, hdr.DirOffset)
	}

	st.summary = make([]byte, size-int64(hdr.DirOffset))
	if err := h.Stream.ReadAt(st.summary, int64(hdr.DirOffset)); err != nil {
		return err
	}
	h.Stream.SetFileFormat(fileFormat(g, st.order, st.compressed))
	h.Stream.SetMemFormat(memFormat(g))
	st.phase = PhaseOpened
	h.Private = st
	h.SetSampleCount(st.count)
	if err := h.Stream.Seek(st.base); err != nil {
		return err
	}
	h.Logger.Debug("tiff channel opened", "width", g.Width, "height", g.Height,
		"compressed", st.compressed, "samples", st.count, "entries", len(dir.Entries))
	return nil
}

func (c *Codec) openCompressed(h *codec.Handle, st *state, dir *Directory) error {
	e, ok := dir.Get(TagFrameOffsets)
	if !ok {
		return mediaerr.E(mediaerr.KindPosition, "tiffcodec.Open", mediaerr.ErrNoFrameIndex)
	}
	offs, err := e.Uints(dir.Order)
	if err != nil {
		return err
	}
	offsets := make([]int64, len(offs))
	for i, o := range offs {
		offsets[i] = int64(o)
	}
	h.Index = frameindex.FromOffsets(offsets)
	for n := int64(1); n < h.Index.Len(); n++ {
		l, err := h.Index.Length(n)
		if err != nil {
			return err
		}
		if l > st.maxSize {
			st.maxSize = l
		}
	}

	st.dec = jpeg.NewDecoder(h.Logger)
	var dqt, dht []byte
	if q, ok := dir.Get(TagJPEGQTables); ok {
		dqt = q.Data
	}
	if t, ok := dir.Get(TagJPEGHuffmanTables); ok {
		dht = t.Data
	}
	if err := st.dec.SetTables(dqt, dht); err != nil {
		return fmt.Errorf("directory tables: %w", err)
	}
	q, err := optional(dir, TagJPEGQuality, 0)
	if err != nil {
		return err
	}
	st.quality = int(q)
	return nil
}

// Close writes the directory after the data and patches the header. Handles
// opened for reading just release their state.
func (c *Codec) Close(h *codec.Handle) error {
	st, err := stateOf(h)
	if err != nil {
		return err
	}
	defer func() { h.Private = nil }()
	if !h.Writing || st.phase == PhaseClosed {
		return nil
	}

	end := st.end
	if err := h.Stream.Seek(end); err != nil {
		return err
	}
	if st.compressed {
		h.Index.Append(end)
	}
	dirOff := end
	if dirOff%2 != 0 {
		if err := h.Stream.WriteRaw([]byte{0}); err != nil {
			return err
		}
		dirOff++
	}
	if dirOff > math.MaxUint32 {
		return mediaerr.Errorf(mediaerr.KindEncode, "tiffcodec.Close", "directory offset %d exceeds 32 bits", dirOff)
	}
	dir, err := c.buildDirectory(h, st)
	if err != nil {
		return err
	}
	enc, err := dir.Encode(uint32(dirOff))
	if err != nil {
		return err
	}
	if err := h.Stream.WriteRaw(enc); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}
	if err := h.Stream.Seek(4); err != nil {
		return err
	}
	patch := make([]byte, 4)
	st.order.PutUint32(patch, uint32(dirOff))
	if err := h.Stream.WriteRaw(patch); err != nil {
		return fmt.Errorf("patch header: %w", err)
	}
	st.summary = enc
	st.phase = PhaseClosed

	if err := store.WriteBytes(h.Store(), h.ID(), codec.PropSummary, enc); err != nil {
		return err
	}
	if err := store.WriteInt64(h.Store(), h.ID(), codec.PropLength, st.count); err != nil {
		return err
	}
	h.Logger.Debug("tiff directory written", "offset", dirOff, "entries", len(dir.Entries), "samples", st.count)
	return nil
}

func (c *Codec) buildDirectory(h *codec.Handle, st *state) (*Directory, error) {
	o, g := st.order, st.geom
	bits := uint16(g.ComponentBits)
	d := &Directory{Order: o}
	d.Set(longEntry(o, TagImageWidth, uint32(g.Width)))
	d.Set(longEntry(o, TagImageLength, uint32(g.Height)))
	d.Set(shortEntry(o, TagBitsPerSample, bits, bits, bits))
	d.Set(shortEntry(o, TagSamplesPerPixel, 3))
	d.Set(shortEntry(o, TagPlanarConfiguration, 1))
	d.Set(shortEntry(o, TagFrameLayout, uint16(g.Layout)))
	d.Set(rationalEntry(o, TagFrameRate, uint32(g.SampleRate.Num), uint32(g.SampleRate.Den)))
	d.Set(shortEntry(o, TagFieldDominance, uint16(g.FieldDominance)))
	d.Set(longEntry(o, TagSampleCount, uint32(st.count)))
	d.Set(longEntry(o, TagDataOffset, uint32(st.base)))

	if !st.compressed {
		d.Set(shortEntry(o, TagCompression, compressionNone))
		d.Set(shortEntry(o, TagPhotometric, photometricRGB))
		if st.count > 0 {
			d.Set(longEntry(o, TagStripOffsets, uint32(st.base)))
			d.Set(longEntry(o, TagRowsPerStrip, uint32(g.Height)))
			d.Set(longEntry(o, TagStripByteCounts, uint32(st.frameSize)))
		}
		return d, nil
	}

	d.Set(shortEntry(o, TagCompression, compressionJPEG))
	d.Set(shortEntry(o, TagPhotometric, photometricYCbCr))
	h2 := uint16(1)
	if st.sub == jpeg.S422 {
		h2 = 2
	}
	d.Set(shortEntry(o, TagYCbCrSubSampling, h2, 1))
	d.Set(undefinedEntry(TagJPEGQTables, st.tables.QuantBytes()))
	d.Set(undefinedEntry(TagJPEGHuffmanTables, st.tables.HuffmanBytes()))
	d.Set(shortEntry(o, TagJPEGQuality, uint16(st.quality)))
	offs := h.Index.Offsets()
	vals := make([]uint32, len(offs))
	for i, off := range offs {
		if off > math.MaxUint32 {
			return nil, mediaerr.Errorf(mediaerr.KindEncode, "tiffcodec.Close", "frame offset %d exceeds 32 bits", off)
		}
		vals[i] = uint32(off)
	}
	d.Set(longEntry(o, TagFrameOffsets, vals...))
	return d, nil
}

// WriteSamples appends n samples.
func (c *Codec) WriteSamples(h *codec.Handle, n int, data []byte) (int, error) {
	st, err := stateOf(h)
	if err != nil {
		return 0, err
	}
	if st.phase != PhaseDescriptorOnly && st.phase != PhaseWriting {
		return 0, mediaerr.Errorf(mediaerr.KindConfiguration, "tiffcodec.WriteSamples", "handle is %s", st.phase)
	}
	if err := h.Stream.Seek(st.end); err != nil {
		return 0, err
	}
	st.phase = PhaseWriting
	switch {
	case st.compressed && !h.Compress:
		return c.writeImages(h, st, n, data)
	case st.compressed:
		return c.writeEncoded(h, st, n, data)
	default:
		return c.writeRaw(h, st, n, data)
	}
}

func (c *Codec) written(h *codec.Handle, st *state) {
	st.count++
	st.end = h.Stream.Pos()
	h.SetSampleCount(st.count)
}

// rollback drops a partially written sample: its index entry is removed and
// the stream is repositioned so the next sample or the directory overwrites
// it.
func (c *Codec) rollback(h *codec.Handle, st *state, err error) error {
	h.Index.Truncate(st.count)
	if serr := h.Stream.Seek(st.end); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}

func tooSmall(op string, have, n int, size int64) error {
	return mediaerr.E(mediaerr.KindResource, op,
		fmt.Errorf("%d bytes for %d samples of %d: %w", have, n, size, mediaerr.ErrBufferTooSmall))
}

func (c *Codec) writeRaw(h *codec.Handle, st *state, n int, data []byte) (int, error) {
	mem := h.Stream.MemFormat()
	size := st.frameSize
	if h.Compress {
		size = int64(codec.MemSampleSize(mem, st.geom.Width, st.geom.Height))
	}
	if int64(len(data)) < int64(n)*size {
		return 0, tooSmall("tiffcodec.WriteSamples", len(data), n, size)
	}
	file := h.Stream.FileFormat()
	for i := 0; i < n; i++ {
		sample := data[int64(i)*size : int64(i+1)*size]
		if !h.Compress {
			if err := h.Stream.WriteRaw(sample); err != nil {
				return i, c.rollback(h, st, err)
			}
			c.written(h, st)
			continue
		}
		out, err := stream.MemToFile(sample, file, mem, st.geom.Width)
		if err != nil {
			return i, err
		}
		if int64(len(out)) != st.frameSize {
			return i, mediaerr.Errorf(mediaerr.KindFormat, "tiffcodec.WriteSamples",
				"translated frame is %d bytes, want %d", len(out), st.frameSize)
		}
		if err := h.Stream.Write(out); err != nil {
			return i, c.rollback(h, st, err)
		}
		c.written(h, st)
	}
	return n, nil
}

func (c *Codec) writeEncoded(h *codec.Handle, st *state, n int, data []byte) (int, error) {
	mem := h.Stream.MemFormat()
	size := int64(codec.MemSampleSize(mem, st.geom.Width, st.geom.Height))
	if int64(len(data)) < int64(n)*size {
		return 0, tooSmall("tiffcodec.WriteSamples", len(data), n, size)
	}
	for i := 0; i < n; i++ {
		p, err := jpegcodec.MemToPlanes(mem, data[int64(i)*size:int64(i+1)*size], st.geom.Width, st.geom.Height, st.sub)
		if err != nil {
			return i, err
		}
		pos := h.Stream.Pos()
		st.enc.SetBase(pos)
		var img []byte
		if st.geom.Layout.FieldCount() == 2 {
			first, second := p.SplitFields()
			img, err = st.enc.EncodeFields(first, second)
		} else {
			img, err = st.enc.Encode(p)
		}
		if err != nil {
			return i, err
		}
		if err := c.appendImage(h, st, pos, img); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (c *Codec) writeImages(h *codec.Handle, st *state, n int, data []byte) (int, error) {
	images, err := jpeg.SplitImages(data)
	if err != nil {
		return 0, err
	}
	fields := st.geom.Layout.FieldCount()
	if len(images) != n*fields {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "tiffcodec.WriteSamples",
			"%d images for %d samples of %d fields", len(images), n, fields)
	}
	for i := 0; i < n; i++ {
		var sample []byte
		for _, img := range images[i*fields : (i+1)*fields] {
			sample = append(sample, img...)
		}
		if err := c.appendImage(h, st, h.Stream.Pos(), sample); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (c *Codec) appendImage(h *codec.Handle, st *state, pos int64, img []byte) error {
	h.Index.Append(pos)
	if err := h.Stream.WriteRaw(img); err != nil {
		return c.rollback(h, st, err)
	}
	if int64(len(img)) > st.maxSize {
		st.maxSize = int64(len(img))
	}
	c.written(h, st)
	return nil
}

// ReadSamples reads n samples starting at the current frame.
func (c *Codec) ReadSamples(h *codec.Handle, n int) ([]byte, error) {
	st, err := stateOf(h)
	if err != nil {
		return nil, err
	}
	if st.phase != PhaseOpened && st.phase != PhaseReading {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "tiffcodec.ReadSamples", "handle is %s", st.phase)
	}
	if n < 0 || st.current+int64(n)-1 > st.count {
		return nil, mediaerr.E(mediaerr.KindPosition, "tiffcodec.ReadSamples",
			fmt.Errorf("samples %d..%d of %d: %w", st.current, st.current+int64(n)-1, st.count, mediaerr.ErrBadFrameOffset))
	}
	st.phase = PhaseReading
	var out []byte
	for i := 0; i < n; i++ {
		b, err := c.readOne(h, st)
		if err != nil {
			return out, fmt.Errorf("sample %d: %w", st.current, err)
		}
		out = append(out, b...)
		st.current++
	}
	return out, nil
}

func (c *Codec) readOne(h *codec.Handle, st *state) ([]byte, error) {
	off, err := c.frameOffset(h, st, st.current)
	if err != nil {
		return nil, err
	}
	if err := h.Stream.Seek(off); err != nil {
		return nil, err
	}
	if !st.compressed {
		buf := make([]byte, st.frameSize)
		if !h.Compress {
			return buf, h.Stream.ReadRaw(buf)
		}
		if err := h.Stream.Read(buf); err != nil {
			return nil, err
		}
		return stream.FileToMem(buf, h.Stream.FileFormat(), h.Stream.MemFormat(), st.geom.Width)
	}

	l, err := h.Index.Length(st.current)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, l)
	if err := h.Stream.ReadRaw(raw); err != nil {
		return nil, err
	}
	if !h.Compress {
		return raw, nil
	}
	var p *jpeg.Planes
	if st.geom.Layout.FieldCount() == 2 {
		images, err := jpeg.SplitImages(raw)
		if err != nil {
			return nil, err
		}
		if len(images) != 2 {
			return nil, mediaerr.Errorf(mediaerr.KindFormat, "tiffcodec.ReadSamples", "%d field images in sample", len(images))
		}
		first, err := st.dec.Decode(images[0])
		if err != nil {
			return nil, err
		}
		second, err := st.dec.Decode(images[1])
		if err != nil {
			return nil, err
		}
		if p, err = jpeg.JoinFields(first, second); err != nil {
			return nil, err
		}
	} else if p, err = st.dec.Decode(raw); err != nil {
		return nil, err
	}
	return jpegcodec.PlanesToMem(p, h.Stream.MemFormat())
}

// frameOffset addresses uncompressed frames arithmetically and compressed
// ones through the frame index.
func (c *Codec) frameOffset(h *codec.Handle, st *state, n int64) (int64, error) {
	if st.compressed {
		return h.Index.Lookup(n)
	}
	if n < 1 || n > st.count {
		return 0, mediaerr.E(mediaerr.KindPosition, "tiffcodec.FrameOffset",
			fmt.Errorf("sample %d outside 1..%d: %w", n, st.count, mediaerr.ErrBadFrameOffset))
	}
	return st.base + (n-1)*st.frameSize, nil
}

func (c *Codec) FrameOffset(h *codec.Handle, n int64) (int64, error) {
	st, err := stateOf(h)
	if err != nil {
		return 0, err
	}
	return c.frameOffset(h, st, n)
}

func (c *Codec) SetFrameNumber(h *codec.Handle, n int64) error {
	st, err := stateOf(h)
	if err != nil {
		return err
	}
	off, err := c.frameOffset(h, st, n)
	if err != nil {
		return err
	}
	st.current = n
	return h.Stream.Seek(off)
}

func (c *Codec) GetInfo(h *codec.Handle, kind codec.InfoKind) (any, error) {
	st, err := stateOf(h)
	if err != nil {
		return nil, err
	}
	memSize := int64(codec.MemSampleSize(h.Stream.MemFormat(), st.geom.Width, st.geom.Height))
	switch kind {
	case codec.InfoFileFormat:
		return h.Stream.FileFormat(), nil
	case codec.InfoMemFormat:
		return h.Stream.MemFormat(), nil
	case codec.InfoMaxSampleSize:
		switch {
		case h.Compress:
			return memSize, nil
		case st.compressed:
			return st.maxSize, nil
		}
		return st.frameSize, nil
	case codec.InfoSampleSize:
		switch {
		case h.Compress:
			return memSize, nil
		case st.compressed:
			return h.Index.Length(st.current)
		}
		return st.frameSize, nil
	case codec.InfoFrameLayout:
		return st.geom.Layout, nil
	case codec.InfoQuality:
		if !st.compressed {
			return nil, codec.UnknownInfo(c, kind)
		}
		return st.quality, nil
	case codec.InfoSummary:
		return append([]byte(nil), st.summary...), nil
	case codec.InfoCompressionEnabled:
		return h.Compress, nil
	case codec.InfoSampleCount:
		return st.count, nil
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
		if !st.compressed || st.phase != PhaseDescriptorOnly {
			return mediaerr.Errorf(mediaerr.KindConfiguration, "tiffcodec.PutInfo", "quality cannot change in phase %s", st.phase)
		}
		if err := c.setQuality(h, st, q); err != nil {
			return err
		}
		return store.WriteInt32(h.Store(), h.ID(), codec.PropQuality, int32(q))
	}
	return codec.UnknownInfo(c, kind)
}
