package jpeg

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"mediakit/internal/binio"
	"mediakit/internal/mediaerr"
)

// State is the decoder's position within an image.
type State int

const (
	StateUninitialized State = iota
	// StateFrameHeaderPending: SOI seen, no frame header yet.
	StateFrameHeaderPending
	// StateTableMarkersScanned: table or application segments read.
	StateTableMarkersScanned
	// StateScanInProgress: SOS read, entropy-coded data being decoded.
	StateScanInProgress
	// StateFrameComplete: EOI reached.
	StateFrameComplete
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFrameHeaderPending:
		return "frame-header-pending"
	case StateTableMarkersScanned:
		return "table-markers-scanned"
	case StateScanInProgress:
		return "scan-in-progress"
	case StateFrameComplete:
		return "frame-complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type component struct {
	id     byte
	h, v   int
	tq     int
	td, ta int
	// width and height are the component's true dimensions; stride and
	// rows are the padded block-aligned buffer dimensions.
	width, height int
	stride, rows  int
	pix           []byte
}

// Decoder decodes baseline sequential JPEG images. Quantization and Huffman
// tables persist across images, so abbreviated images can follow a primed
// table specification.
type Decoder struct {
	state           State
	quant           [4]*QuantTable
	dc, ac          [4]*huffDecoder
	restartInterval int

	width, height int
	comps         []component
	avi           *AVIInfo

	// Resyncs counts restart markers that did not match the expected
	// sequence in the last image.
	Resyncs int

	logger *slog.Logger
}

// NewDecoder creates a decoder with no tables defined.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("component", "jpeg-decoder")}
}

// State returns the decoder's state.
func (d *Decoder) State() State { return d.state }

// AVI returns the Avid APP0 information of the last image, if it had one.
func (d *Decoder) AVI() (AVIInfo, bool) {
	if d.avi == nil {
		return AVIInfo{}, false
	}
	return *d.avi, true
}

func decodeErr(format string, args ...any) error {
	return mediaerr.E(mediaerr.KindDecode, "jpeg.Decode",
		fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), mediaerr.ErrDecompression))
}

// Prime loads tables from an abbreviated table specification (SOI, DQT
// and DHT segments, EOI).
func (d *Decoder) Prime(data []byte) error {
	segs, err := Segments(data)
	if err != nil {
		return err
	}
	for _, s := range segs {
		switch s.Marker {
		case MarkerDQT:
			if err := d.parseDQT(s.Body); err != nil {
				return err
			}
		case MarkerDHT:
			if err := d.parseDHT(s.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetTables loads tables from DQT and DHT segment bodies.
func (d *Decoder) SetTables(dqt, dht []byte) error {
	if len(dqt) > 0 {
		if err := d.parseDQT(dqt); err != nil {
			return err
		}
	}
	if len(dht) > 0 {
		if err := d.parseDHT(dht); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) parseDQT(body []byte) error {
	c := binio.NewCursor(body, binary.BigEndian)
	for c.Remaining() > 0 {
		pq, err := c.U8()
		if err != nil {
			return err
		}
		id := int(pq & 0x0F)
		if id > 3 {
			return mediaerr.Errorf(mediaerr.KindFormat, "jpeg.DQT", "bad table id %d", id)
		}
		var q QuantTable
		for k := 0; k < 64; k++ {
			var v uint16
			if pq>>4 == 0 {
				b, err := c.U8()
				if err != nil {
					return err
				}
				v = uint16(b)
			} else {
				if v, err = c.U16(); err != nil {
					return err
				}
			}
			if v == 0 {
				return mediaerr.Errorf(mediaerr.KindFormat, "jpeg.DQT", "table %d has a zero entry", id)
			}
			q[zigzag[k]] = v
		}
		d.quant[id] = &q
	}
	return nil
}

func (d *Decoder) parseDHT(body []byte) error {
	c := binio.NewCursor(body, binary.BigEndian)
	for c.Remaining() > 0 {
		tc, err := c.U8()
		if err != nil {
			return err
		}
		class, id := tc>>4, int(tc&0x0F)
		if class > 1 || id > 3 {
			return mediaerr.Errorf(mediaerr.KindFormat, "jpeg.DHT", "bad table class %d id %d", class, id)
		}
		var spec HuffmanSpec
		counts, err := c.Bytes(16)
		if err != nil {
			return err
		}
		copy(spec.Counts[:], counts)
		total := 0
		for _, n := range spec.Counts {
			total += int(n)
		}
		vals, err := c.Bytes(total)
		if err != nil {
			return err
		}
		spec.Values = append([]byte(nil), vals...)
		h, err := newHuffDecoder(spec)
		if err != nil {
			return err
		}
		if class == 0 {
			d.dc[id] = h
		} else {
			d.ac[id] = h
		}
	}
	return nil
}

func (d *Decoder) parseSOF(body []byte) error {
	c := binio.NewCursor(body, binary.BigEndian)
	p, _ := c.U8()
	h, _ := c.U16()
	w, _ := c.U16()
	n, err := c.U8()
	if err != nil {
		return mediaerr.E(mediaerr.KindFormat, "jpeg.SOF", err)
	}
	if p != 8 {
		return mediaerr.Errorf(mediaerr.KindUnsupported, "jpeg.SOF", "%d-bit precision: %w", p, mediaerr.ErrUnsupportedFormat)
	}
	if n != 1 && n != 3 {
		return mediaerr.Errorf(mediaerr.KindUnsupported, "jpeg.SOF", "%d components: %w", n, mediaerr.ErrUnsupportedFormat)
	}
	if w == 0 || h == 0 {
		return mediaerr.Errorf(mediaerr.KindFormat, "jpeg.SOF", "bad dimensions %dx%d", w, h)
	}
	d.width, d.height = int(w), int(h)
	d.comps = make([]component, n)
	hmax, vmax := 1, 1
	for i := range d.comps {
		id, _ := c.U8()
		hv, _ := c.U8()
		tq, err := c.U8()
		if err != nil {
			return mediaerr.E(mediaerr.KindFormat, "jpeg.SOF", err)
		}
		cp := component{id: id, h: int(hv >> 4), v: int(hv & 0x0F), tq: int(tq)}
		if cp.h < 1 || cp.h > 2 || cp.v < 1 || cp.v > 2 || cp.tq > 3 {
			return mediaerr.Errorf(mediaerr.KindUnsupported, "jpeg.SOF",
				"component %d sampling %dx%d table %d: %w", id, cp.h, cp.v, cp.tq, mediaerr.ErrUnsupportedFormat)
		}
		if n == 1 {
			cp.h, cp.v = 1, 1
		}
		hmax = max(hmax, cp.h)
		vmax = max(vmax, cp.v)
		d.comps[i] = cp
	}
	mcux := (d.width + 8*hmax - 1) / (8 * hmax)
	mcuy := (d.height + 8*vmax - 1) / (8 * vmax)
	for i := range d.comps {
		cp := &d.comps[i]
		cp.width = (d.width*cp.h + hmax - 1) / hmax
		cp.height = (d.height*cp.v + vmax - 1) / vmax
		cp.stride = mcux * cp.h * 8
		cp.rows = mcuy * cp.v * 8
		cp.pix = make([]byte, cp.stride*cp.rows)
	}
	return nil
}

// Decode decodes one complete image. An undefined table referenced by the
// scan is fatal; corrupt entropy data is resynchronized at restart markers.
func (d *Decoder) Decode(data []byte) (*Planes, error) {
	d.state = StateUninitialized
	d.comps = nil
	d.avi = nil
	d.restartInterval = 0
	d.Resyncs = 0

	m, off, ok := nextMarker(data, 0)
	if !ok || m != MarkerSOI {
		return nil, decodeErr("missing SOI")
	}
	d.state = StateFrameHeaderPending
	pos := off + 2
	scanned := false

	for d.state != StateFrameComplete {
		m, off, ok = nextMarker(data, pos)
		if !ok {
			if scanned {
				d.logger.Warn("image ends without EOI")
				d.state = StateFrameComplete
				break
			}
			return nil, decodeErr("unexpected end of data")
		}
		if m == MarkerEOI {
			if !scanned {
				return nil, decodeErr("EOI before scan")
			}
			d.state = StateFrameComplete
			break
		}
		if Standalone(m) {
			// Stray restart marker outside a scan.
			pos = off + 2
			continue
		}
		body, err := segmentBody(data, off)
		if err != nil {
			return nil, err
		}
		pos = off + 4 + len(body)

		switch {
		case m == MarkerDQT:
			err = d.parseDQT(body)
			d.tablesSeen()
		case m == MarkerDHT:
			err = d.parseDHT(body)
			d.tablesSeen()
		case m == MarkerDRI:
			if len(body) < 2 {
				return nil, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.DRI", "short segment")
			}
			d.restartInterval = int(binary.BigEndian.Uint16(body))
			d.tablesSeen()
		case m == MarkerAPP0:
			if info, ok := parseAVI1(body); ok {
				d.avi = &info
			}
			d.tablesSeen()
		case m == MarkerSOF0 || m == MarkerSOF1:
			err = d.parseSOF(body)
		case m >= 0xC2 && m <= 0xCF && m != MarkerDHT && m != MarkerJPG && m != MarkerDAC:
			return nil, mediaerr.Errorf(mediaerr.KindUnsupported, "jpeg.Decode",
				"%s frames: %w", MarkerName(m), mediaerr.ErrUnsupportedFormat)
		case m == MarkerSOS:
			if d.comps == nil {
				return nil, decodeErr("scan before frame header")
			}
			d.state = StateScanInProgress
			pos, err = d.decodeScan(data, body, pos)
			scanned = true
		default:
			// APPn, COM and anything else carry nothing we need.
			d.tablesSeen()
		}
		if err != nil {
			return nil, err
		}
	}

	out := &Planes{Width: d.width, Height: d.height}
	for _, c := range d.comps {
		pix := make([]byte, c.width*c.height)
		for y := 0; y < c.height; y++ {
			copy(pix[y*c.width:(y+1)*c.width], c.pix[y*c.stride:])
		}
		out.Comps = append(out.Comps, Plane{Pix: pix, Width: c.width, Height: c.height, H: c.h, V: c.v})
	}
	return out, nil
}

func (d *Decoder) tablesSeen() {
	if d.state == StateFrameHeaderPending {
		d.state = StateTableMarkersScanned
	}
}

// decodeScan decodes the entropy-coded segment following an SOS header and
// returns the offset of the marker that ends it.
func (d *Decoder) decodeScan(data, header []byte, pos int) (int, error) {
	c := binio.NewCursor(header, binary.BigEndian)
	ns, err := c.U8()
	if err != nil || ns < 1 || int(ns) > len(d.comps) {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.SOS", "bad component count")
	}
	scan := make([]*component, ns)
	for i := range scan {
		id, _ := c.U8()
		tt, err := c.U8()
		if err != nil {
			return 0, mediaerr.E(mediaerr.KindFormat, "jpeg.SOS", err)
		}
		for j := range d.comps {
			if d.comps[j].id == id {
				scan[i] = &d.comps[j]
			}
		}
		if scan[i] == nil {
			return 0, mediaerr.Errorf(mediaerr.KindFormat, "jpeg.SOS", "unknown component %d", id)
		}
		scan[i].td, scan[i].ta = int(tt>>4), int(tt&0x0F)
	}

	for _, cp := range scan {
		if cp.td > 3 || cp.ta > 3 || d.dc[cp.td] == nil || d.ac[cp.ta] == nil {
			return 0, decodeErr("component %d references undefined Huffman table (DC %d, AC %d)", cp.id, cp.td, cp.ta)
		}
		if d.quant[cp.tq] == nil {
			return 0, decodeErr("component %d references undefined quantization table %d", cp.id, cp.tq)
		}
	}

	hmax, vmax := 1, 1
	for _, cp := range d.comps {
		hmax, vmax = max(hmax, cp.h), max(vmax, cp.v)
	}
	var mcux, mcuy int
	if ns == 1 {
		mcux = (scan[0].width + 7) / 8
		mcuy = (scan[0].height + 7) / 8
	} else {
		mcux = (d.width + 8*hmax - 1) / (8 * hmax)
		mcuy = (d.height + 8*vmax - 1) / (8 * vmax)
	}

	br := newBitReader(data, pos)
	var (
		pred     = make([]int32, ns)
		coef     block
		samples  [64]uint8
		expected = 0
		empty    = false
	)
	total := mcux * mcuy
	for m := 0; m < total; m++ {
		if d.restartInterval > 0 && m > 0 && m%d.restartInterval == 0 {
			empty = d.restart(data, br, &expected)
			for i := range pred {
				pred[i] = 0
			}
		}
		mx, my := m%mcux, m/mcux
		for si, cp := range scan {
			h, v := cp.h, cp.v
			if ns == 1 {
				h, v = 1, 1
			}
			for by := 0; by < v; by++ {
				for bx := 0; bx < h; bx++ {
					coef = block{}
					if !empty {
						if !d.decodeBlock(br, cp, &coef, &pred[si]) {
							d.logger.Warn("corrupt entropy data", "mcu", m)
							empty = true
							coef = block{}
						}
					}
					idct(&coef, d.quant[cp.tq], &samples)
					x0 := (mx*h + bx) * 8
					y0 := (my*v + by) * 8
					for y := 0; y < 8; y++ {
						copy(cp.pix[(y0+y)*cp.stride+x0:], samples[y*8:y*8+8])
					}
				}
			}
		}
		if !empty && br.exhausted() && m+1 < total &&
			(d.restartInterval == 0 || (m+1)%d.restartInterval != 0) {
			// Ran into a marker before the segment's data ended.
			empty = true
		}
	}

	if br.marker != 0 {
		return br.markerPos, nil
	}
	if _, off, ok := nextMarker(data, br.pos); ok {
		return off, nil
	}
	return len(data), nil
}

func (d *Decoder) decodeBlock(br *bitReader, cp *component, coef *block, pred *int32) bool {
	s, ok := br.decode(d.dc[cp.td])
	if !ok || s > 11 {
		return false
	}
	*pred += br.receiveExtend(int(s))
	coef[0] = *pred

	ac := d.ac[cp.ta]
	for k := 1; k < 64; {
		rs, ok := br.decode(ac)
		if !ok {
			return false
		}
		r, s := int(rs>>4), int(rs&0x0F)
		if s == 0 {
			if r != 15 {
				break
			}
			k += 16
			continue
		}
		k += r
		if k > 63 {
			return false
		}
		coef[zigzag[k]] = br.receiveExtend(s)
		k++
	}
	return true
}

// restart consumes the restart marker expected at a restart boundary and
// reports whether the following segment must be treated as empty. When the
// marker found is not the expected one, it resynchronizes: markers within
// two of the expected number decide whether to skip ahead or to leave the
// marker for a later boundary.
func (d *Decoder) restart(data []byte, br *bitReader, expected *int) bool {
	br.reset()
	if br.marker == 0 {
		m, off, ok := nextMarker(data, br.pos)
		if !ok {
			*expected++
			return true
		}
		br.marker, br.markerPos = m, off
	}
	defer func() { *expected++ }()

	rst := func(n int) byte { return MarkerRST0 + byte(n&7) }
	for {
		m := br.marker
		if m == rst(*expected) {
			d.consumeMarker(br)
			return false
		}
		d.Resyncs++
		d.logger.Warn("restart marker out of sequence", "want", MarkerName(rst(*expected)), "got", MarkerName(m))

		var action int
		switch {
		case m < MarkerSOF0:
			action = 2
		case !IsRST(m):
			action = 3
		case m == rst(*expected+1) || m == rst(*expected+2):
			action = 3
		case m == rst(*expected-1) || m == rst(*expected-2):
			action = 2
		default:
			action = 1
		}
		switch action {
		case 1:
			// Treat it as the restart we wanted.
			d.consumeMarker(br)
			return false
		case 2:
			// Discard it and look at the next marker.
			m, off, ok := nextMarker(data, br.markerPos+2)
			if !ok {
				br.marker = 0
				br.pos = len(data)
				return true
			}
			br.marker, br.markerPos = m, off
		default:
			// Leave it for a later boundary; this segment is empty.
			return true
		}
	}
}

func (d *Decoder) consumeMarker(br *bitReader) {
	br.pos = br.markerPos + 2
	br.marker = 0
	br.reset()
}
