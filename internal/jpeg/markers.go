package jpeg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Marker codes (the byte following 0xFF).
const (
	MarkerTEM  = 0x01
	MarkerSOF0 = 0xC0 // Baseline DCT
	MarkerSOF1 = 0xC1 // Extended sequential DCT
	MarkerSOF2 = 0xC2 // Progressive DCT
	MarkerSOF3 = 0xC3 // Lossless
	MarkerDHT  = 0xC4
	MarkerJPG  = 0xC8
	MarkerDAC  = 0xCC
	MarkerRST0 = 0xD0
	MarkerRST7 = 0xD7
	MarkerSOI  = 0xD8
	MarkerEOI  = 0xD9
	MarkerSOS  = 0xDA
	MarkerDQT  = 0xDB
	MarkerDNL  = 0xDC
	MarkerDRI  = 0xDD
	MarkerAPP0 = 0xE0
	MarkerAPPF = 0xEF
	MarkerCOM  = 0xFE
)

var markerNames = map[byte]string{
	MarkerTEM:  "TEM",
	MarkerSOF0: "SOF0",
	MarkerSOF1: "SOF1",
	MarkerSOF2: "SOF2",
	MarkerSOF3: "SOF3",
	MarkerDHT:  "DHT",
	MarkerJPG:  "JPG",
	MarkerDAC:  "DAC",
	MarkerSOI:  "SOI",
	MarkerEOI:  "EOI",
	MarkerSOS:  "SOS",
	MarkerDQT:  "DQT",
	MarkerDNL:  "DNL",
	MarkerDRI:  "DRI",
	MarkerCOM:  "COM",
}

// MarkerName returns a printable name for a marker code.
func MarkerName(m byte) string {
	if name, ok := markerNames[m]; ok {
		return name
	}
	switch {
	case IsRST(m):
		return fmt.Sprintf("RST%d", m-MarkerRST0)
	case m >= MarkerAPP0 && m <= MarkerAPPF:
		return fmt.Sprintf("APP%d", m-MarkerAPP0)
	case m >= 0xC0 && m <= 0xCF:
		return fmt.Sprintf("SOF%d", m-0xC0)
	}
	return fmt.Sprintf("0x%02X", m)
}

// IsRST reports whether m is one of RST0..RST7.
func IsRST(m byte) bool { return m >= MarkerRST0 && m <= MarkerRST7 }

// Standalone reports whether m has no length-prefixed body.
func Standalone(m byte) bool {
	return m == MarkerSOI || m == MarkerEOI || m == MarkerTEM || IsRST(m)
}

// Dialect selects the marker layout written by the encoder.
type Dialect int

const (
	// Standard JFIF: SOI APP0(JFIF) DQT SOF0 DHT DRI SOS.
	Standard Dialect = iota
	// Avid JFIF: SOI APP0(AVI1) DQT DHT DRI SOF0 SOS. The frame header is
	// written directly before the scan header because capture hardware
	// expects it there.
	Avid
)

func (d Dialect) String() string {
	if d == Avid {
		return "avid"
	}
	return "standard"
}

// ParseDialect maps a configuration string to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "", "standard", "jfif":
		return Standard, nil
	case "avid":
		return Avid, nil
	}
	return Standard, fmt.Errorf("unknown JPEG dialect %q", s)
}

// writeSegment writes 0xFF, the marker, a big-endian length and body.
func writeSegment(buf *bytes.Buffer, marker byte, body []byte) {
	buf.Write([]byte{0xFF, marker})
	binary.Write(buf, binary.BigEndian, uint16(len(body)+2))
	buf.Write(body)
}

// writeSOI writes the Start of Image marker.
func writeSOI(buf *bytes.Buffer) {
	buf.Write([]byte{0xFF, MarkerSOI})
}

// writeEOI writes the End of Image marker.
func writeEOI(buf *bytes.Buffer) {
	buf.Write([]byte{0xFF, MarkerEOI})
}

// writeJFIF writes an APP0 JFIF 1.02 segment with square pixels.
func writeJFIF(buf *bytes.Buffer) {
	writeSegment(buf, MarkerAPP0, []byte{
		'J', 'F', 'I', 'F', 0,
		1, 2, // version
		0,    // density units
		0, 1, // x density
		0, 1, // y density
		0, 0, // no thumbnail
	})
}

// AVIInfo is the body of the Avid APP0 segment.
type AVIInfo struct {
	// Polarity is 0 for a full frame, 1 for the first field, 2 for the
	// second.
	Polarity byte
	// FieldSize and FieldSizeLessPadding describe the compressed field.
	FieldSize            uint32
	FieldSizeLessPadding uint32
}

const aviBodyLen = 14

// writeAVI1 writes the Avid APP0 segment and returns the offset of its body
// in buf so that sizes can be patched later.
func writeAVI1(buf *bytes.Buffer, info AVIInfo) int {
	buf.Write([]byte{0xFF, MarkerAPP0})
	binary.Write(buf, binary.BigEndian, uint16(aviBodyLen+2))
	at := buf.Len()
	buf.Write([]byte{'A', 'V', 'I', '1', info.Polarity, 0})
	binary.Write(buf, binary.BigEndian, info.FieldSize)
	binary.Write(buf, binary.BigEndian, info.FieldSizeLessPadding)
	return at
}

func parseAVI1(body []byte) (AVIInfo, bool) {
	if len(body) < 5 || string(body[:4]) != "AVI1" {
		return AVIInfo{}, false
	}
	info := AVIInfo{Polarity: body[4]}
	if len(body) >= aviBodyLen {
		info.FieldSize = binary.BigEndian.Uint32(body[6:])
		info.FieldSizeLessPadding = binary.BigEndian.Uint32(body[10:])
	}
	return info, true
}

// writeDQT writes one DQT segment holding the given tables. Tables whose
// entries all fit in 8 bits use 8-bit precision.
func writeDQT(buf *bytes.Buffer, tables []*QuantTable, ids []int) {
	var body bytes.Buffer
	for i, q := range tables {
		wide := false
		for _, v := range q {
			if v > 255 {
				wide = true
			}
		}
		if wide {
			body.WriteByte(0x10 | byte(ids[i]))
			for _, z := range zigzag {
				binary.Write(&body, binary.BigEndian, q[z])
			}
		} else {
			body.WriteByte(byte(ids[i]))
			for _, z := range zigzag {
				body.WriteByte(byte(q[z]))
			}
		}
	}
	writeSegment(buf, MarkerDQT, body.Bytes())
}

// writeDHT writes one DHT segment. class is 0 for DC, 1 for AC.
func writeDHT(buf *bytes.Buffer, specs []HuffmanSpec, classes, ids []int) {
	var body bytes.Buffer
	for i, s := range specs {
		body.WriteByte(byte(classes[i]<<4 | ids[i]))
		body.Write(s.Counts[:])
		body.Write(s.Values)
	}
	writeSegment(buf, MarkerDHT, body.Bytes())
}

// writeDRI writes the restart interval.
func writeDRI(buf *bytes.Buffer, interval int) {
	writeSegment(buf, MarkerDRI, []byte{byte(interval >> 8), byte(interval)})
}

// frameComponent is one component of a frame header.
type frameComponent struct {
	ID    byte
	H, V  int
	Quant int
}

// writeSOF0 writes a baseline frame header.
func writeSOF0(buf *bytes.Buffer, width, height int, comps []frameComponent) {
	body := []byte{8, byte(height >> 8), byte(height), byte(width >> 8), byte(width), byte(len(comps))}
	for _, c := range comps {
		body = append(body, c.ID, byte(c.H<<4|c.V), byte(c.Quant))
	}
	writeSegment(buf, MarkerSOF0, body)
}

// scanComponent is one component selector of a scan header.
type scanComponent struct {
	ID     byte
	DC, AC int
}

// writeSOS writes a sequential scan header.
func writeSOS(buf *bytes.Buffer, comps []scanComponent) {
	body := []byte{byte(len(comps))}
	for _, c := range comps {
		body = append(body, c.ID, byte(c.DC<<4|c.AC))
	}
	body = append(body, 0, 63, 0)
	writeSegment(buf, MarkerSOS, body)
}
