package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"mediakit/internal/mediaerr"
)

// Options control the encoder.
type Options struct {
	Quality int
	// RestartInterval is the number of MCUs between restart markers; 0
	// disables restarts.
	RestartInterval int
	Dialect         Dialect
	// OmitTables writes an abbreviated image without DQT and DHT segments.
	// The decoder must be primed with the tables separately.
	OmitTables bool
	// Polarity is written in the Avid APP0 segment.
	Polarity byte
	// Base is the absolute stream position the image will be written at.
	// Restart markers are aligned relative to it.
	Base int64
}

// Tables are the quantization and Huffman tables an encoder uses. They are
// shared by every image a codec writes and may be stored out of band.
type Tables struct {
	Quant   [2]QuantTable
	DC, AC  [2]HuffmanSpec
	dcEnc   [2]*huffEncoder
	acEnc   [2]*huffEncoder
	quality int
}

// StandardTables builds Annex K tables scaled to quality.
func StandardTables(quality int) (*Tables, error) {
	t := &Tables{
		Quant:   [2]QuantTable{LumaTable(quality), ChromaTable(quality)},
		DC:      [2]HuffmanSpec{StdDCLuma, StdDCChroma},
		AC:      [2]HuffmanSpec{StdACLuma, StdACChroma},
		quality: quality,
	}
	for i := 0; i < 2; i++ {
		var err error
		if t.dcEnc[i], err = newHuffEncoder(t.DC[i]); err != nil {
			return nil, err
		}
		if t.acEnc[i], err = newHuffEncoder(t.AC[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Quality returns the quality the tables were built for.
func (t *Tables) Quality() int { return t.quality }

// WriteTablesOnly writes SOI DQT DHT EOI: an abbreviated table
// specification that Decoder.Prime accepts.
func (t *Tables) WriteTablesOnly() []byte {
	var buf bytes.Buffer
	writeSOI(&buf)
	t.writeDQT(&buf, 2)
	t.writeDHT(&buf, 2)
	writeEOI(&buf)
	return buf.Bytes()
}

// QuantBytes returns the quantization tables as a DQT segment body.
func (t *Tables) QuantBytes() []byte {
	var buf bytes.Buffer
	t.writeDQT(&buf, 2)
	return buf.Bytes()[4:]
}

// HuffmanBytes returns the Huffman tables as a DHT segment body.
func (t *Tables) HuffmanBytes() []byte {
	var buf bytes.Buffer
	t.writeDHT(&buf, 2)
	return buf.Bytes()[4:]
}

func (t *Tables) writeDQT(buf *bytes.Buffer, n int) {
	tables := []*QuantTable{&t.Quant[0], &t.Quant[1]}
	writeDQT(buf, tables[:n], []int{0, 1}[:n])
}

func (t *Tables) writeDHT(buf *bytes.Buffer, n int) {
	if n == 1 {
		writeDHT(buf, []HuffmanSpec{t.DC[0], t.AC[0]}, []int{0, 1}, []int{0, 0})
		return
	}
	writeDHT(buf,
		[]HuffmanSpec{t.DC[0], t.AC[0], t.DC[1], t.AC[1]},
		[]int{0, 1, 0, 1}, []int{0, 0, 1, 1})
}

// Encoder writes baseline sequential JPEG images.
type Encoder struct {
	tables *Tables
	opts   Options
}

// NewEncoder creates an encoder. A nil tables uses StandardTables for
// opts.Quality.
func NewEncoder(tables *Tables, opts Options) (*Encoder, error) {
	if opts.Quality == 0 {
		opts.Quality = 75
	}
	if tables == nil {
		var err error
		if tables, err = StandardTables(opts.Quality); err != nil {
			return nil, err
		}
	}
	if opts.RestartInterval < 0 || opts.RestartInterval > 0xFFFF {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "jpeg.NewEncoder", "restart interval %d", opts.RestartInterval)
	}
	return &Encoder{tables: tables, opts: opts}, nil
}

// Tables returns the encoder's tables.
func (e *Encoder) Tables() *Tables { return e.tables }

// SetBase sets the absolute stream position of the next image.
func (e *Encoder) SetBase(base int64) { e.opts.Base = base }

// Encode compresses p into a complete JPEG image.
func (e *Encoder) Encode(p *Planes) ([]byte, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Width > 0xFFFF || p.Height > 0xFFFF {
		return nil, mediaerr.Errorf(mediaerr.KindEncode, "jpeg.Encode", "bad dimensions %dx%d", p.Width, p.Height)
	}
	if len(p.Comps) != 1 && len(p.Comps) != 3 {
		return nil, mediaerr.Errorf(mediaerr.KindEncode, "jpeg.Encode", "%d components", len(p.Comps))
	}
	for i, c := range p.Comps {
		if c.H < 1 || c.H > 2 || c.V < 1 || c.V > 2 || len(c.Pix) < c.Width*c.Height {
			return nil, mediaerr.Errorf(mediaerr.KindEncode, "jpeg.Encode", "component %d: bad plane", i)
		}
	}
	ncomp := len(p.Comps)

	comps := make([]frameComponent, ncomp)
	scomps := make([]scanComponent, ncomp)
	for i, c := range p.Comps {
		t := 0
		if i > 0 {
			t = 1
		}
		comps[i] = frameComponent{ID: byte(i + 1), H: c.H, V: c.V, Quant: t}
		scomps[i] = scanComponent{ID: byte(i + 1), DC: t, AC: t}
	}
	ntables := 1
	if ncomp > 1 {
		ntables = 2
	}

	var buf bytes.Buffer
	writeSOI(&buf)
	aviAt := -1
	switch e.opts.Dialect {
	case Avid:
		aviAt = writeAVI1(&buf, AVIInfo{Polarity: e.opts.Polarity})
		if !e.opts.OmitTables {
			e.tables.writeDQT(&buf, ntables)
			e.tables.writeDHT(&buf, ntables)
		}
		if e.opts.RestartInterval > 0 {
			writeDRI(&buf, e.opts.RestartInterval)
		}
		writeSOF0(&buf, p.Width, p.Height, comps)
	default:
		writeJFIF(&buf)
		if !e.opts.OmitTables {
			e.tables.writeDQT(&buf, ntables)
		}
		writeSOF0(&buf, p.Width, p.Height, comps)
		if !e.opts.OmitTables {
			e.tables.writeDHT(&buf, ntables)
		}
		if e.opts.RestartInterval > 0 {
			writeDRI(&buf, e.opts.RestartInterval)
		}
	}
	writeSOS(&buf, scomps)

	if err := e.encodeScan(&buf, p); err != nil {
		return nil, err
	}
	writeEOI(&buf)

	out := buf.Bytes()
	if aviAt >= 0 {
		binary.BigEndian.PutUint32(out[aviAt+6:], uint32(len(out)))
		binary.BigEndian.PutUint32(out[aviAt+10:], uint32(len(out)))
	}
	return out, nil
}

func (e *Encoder) encodeScan(buf *bytes.Buffer, p *Planes) error {
	bw := newBitWriter(buf, e.opts.Base)
	hmax, vmax := p.maxFactors()
	ncomp := len(p.Comps)

	var mcux, mcuy int
	if ncomp == 1 {
		// A single-component scan is not interleaved: one block per MCU.
		mcux = (p.Comps[0].Width + 7) / 8
		mcuy = (p.Comps[0].Height + 7) / 8
		hmax, vmax = 1, 1
	} else {
		mcux = (p.Width + 8*hmax - 1) / (8 * hmax)
		mcuy = (p.Height + 8*vmax - 1) / (8 * vmax)
	}

	var (
		pred    [3]int32
		samples [64]float64
		coef    block
	)
	total := mcux * mcuy
	restarts := 0
	for m := 0; m < total; m++ {
		if e.opts.RestartInterval > 0 && m > 0 && m%e.opts.RestartInterval == 0 {
			bw.writeRestart(restarts)
			restarts++
			pred = [3]int32{}
		}
		mx, my := m%mcux, m/mcux
		for ci := 0; ci < ncomp; ci++ {
			c := &p.Comps[ci]
			h, v := c.H, c.V
			if ncomp == 1 {
				h, v = 1, 1
			}
			t := 0
			if ci > 0 {
				t = 1
			}
			for by := 0; by < v; by++ {
				for bx := 0; bx < h; bx++ {
					x0 := (mx*h + bx) * 8
					y0 := (my*v + by) * 8
					loadBlock(c, x0, y0, &samples)
					fdct(&samples, &e.tables.Quant[t], &coef)
					e.writeBlock(bw, &coef, &pred[ci], t)
				}
			}
		}
	}
	bw.flush()
	return nil
}

// loadBlock copies an 8x8 block of c starting at (x0, y0), replicating edge
// samples, and level-shifts it.
func loadBlock(c *Plane, x0, y0 int, out *[64]float64) {
	for y := 0; y < 8; y++ {
		sy := y0 + y
		if sy >= c.Height {
			sy = c.Height - 1
		}
		for x := 0; x < 8; x++ {
			sx := x0 + x
			if sx >= c.Width {
				sx = c.Width - 1
			}
			out[y*8+x] = float64(c.Pix[sy*c.Width+sx]) - 128
		}
	}
}

// bitLength returns the number of bits needed for |v| (the JPEG category).
func bitLength(v int32) int {
	if v < 0 {
		v = -v
	}
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

func emitValue(bw *bitWriter, v int32, n int) {
	if v < 0 {
		v--
	}
	bw.writeBits(uint32(v), n)
}

func (e *Encoder) writeBlock(bw *bitWriter, coef *block, pred *int32, t int) {
	dc, ac := e.tables.dcEnc[t], e.tables.acEnc[t]

	diff := coef[0] - *pred
	*pred = coef[0]
	n := bitLength(diff)
	bw.writeBits(uint32(dc.code[n]), int(dc.size[n]))
	emitValue(bw, diff, n)

	run := 0
	for k := 1; k < 64; k++ {
		v := coef[zigzag[k]]
		if v == 0 {
			run++
			continue
		}
		for run > 15 {
			bw.writeBits(uint32(ac.code[0xF0]), int(ac.size[0xF0]))
			run -= 16
		}
		n := bitLength(v)
		sym := byte(run<<4 | n)
		bw.writeBits(uint32(ac.code[sym]), int(ac.size[sym]))
		emitValue(bw, v, n)
		run = 0
	}
	if run > 0 {
		bw.writeBits(uint32(ac.code[0x00]), int(ac.size[0x00]))
	}
}

// EncodeFields compresses two field images, each a complete JPEG image, for
// separately stored interlaced frames. The Avid polarity is set per field.
func (e *Encoder) EncodeFields(first, second *Planes) ([]byte, error) {
	saved := e.opts
	defer func() { e.opts = saved }()

	e.opts.Polarity = 1
	a, err := e.Encode(first)
	if err != nil {
		return nil, fmt.Errorf("first field: %w", err)
	}
	e.opts.Base = saved.Base + int64(len(a))
	e.opts.Polarity = 2
	b, err := e.Encode(second)
	if err != nil {
		return nil, fmt.Errorf("second field: %w", err)
	}
	return append(a, b...), nil
}
