// Package format implements format operation lists: ordered, opcode-tagged
// sets of negotiable sample parameters such as frame geometry, pixel layout,
// byte order and colour sub-sampling.
//
// A List describes either the on-disk ("file") format of a stream or the
// in-memory ("application") format a caller wants to exchange samples in.
// Lists are values: every mutation copies, so a List may be assigned and
// passed around without aliasing.
package format

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode identifies a format parameter. OpEnd terminates a list.
type Opcode int

const (
	OpEnd Opcode = iota
	OpMediaKind
	OpCompression
	OpFrameLayout
	OpStoredWidth
	OpStoredHeight
	OpPixelFormat
	OpRGBLayout
	OpComponentBits
	OpHorizSubsampling
	OpBlackLevel
	OpWhiteLevel
	OpColorRange
	OpFieldDominance
	OpSampleSize
	OpChannels
	OpSampleRate
	OpByteOrder
	OpPadBytesPerRow
	OpMaxSampleBytes
)

var opcodeNames = map[Opcode]string{
	OpEnd:              "End",
	OpMediaKind:        "MediaKind",
	OpCompression:      "Compression",
	OpFrameLayout:      "FrameLayout",
	OpStoredWidth:      "StoredWidth",
	OpStoredHeight:     "StoredHeight",
	OpPixelFormat:      "PixelFormat",
	OpRGBLayout:        "RGBLayout",
	OpComponentBits:    "ComponentBits",
	OpHorizSubsampling: "HorizSubsampling",
	OpBlackLevel:       "BlackLevel",
	OpWhiteLevel:       "WhiteLevel",
	OpColorRange:       "ColorRange",
	OpFieldDominance:   "FieldDominance",
	OpSampleSize:       "SampleSize",
	OpChannels:         "Channels",
	OpSampleRate:       "SampleRate",
	OpByteOrder:        "ByteOrder",
	OpPadBytesPerRow:   "PadBytesPerRow",
	OpMaxSampleBytes:   "MaxSampleBytes",
}

func (c Opcode) String() string {
	if name, ok := opcodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", int(c))
}

// MediaKind values for OpMediaKind.
const (
	MediaVideo int64 = iota + 1
	MediaAudio
)

// FrameLayout describes how interlaced video is stored.
type FrameLayout int64

const (
	FullFrame FrameLayout = iota
	SeparateFields
	OneField
	MixedFields
	SegmentedFrame
)

func (l FrameLayout) String() string {
	switch l {
	case FullFrame:
		return "FullFrame"
	case SeparateFields:
		return "SeparateFields"
	case OneField:
		return "OneField"
	case MixedFields:
		return "MixedFields"
	case SegmentedFrame:
		return "SegmentedFrame"
	}
	return fmt.Sprintf("FrameLayout(%d)", int64(l))
}

// FieldCount returns the number of separately stored fields per frame.
func (l FrameLayout) FieldCount() int {
	if l == SeparateFields {
		return 2
	}
	return 1
}

// PixelFormat values for OpPixelFormat.
type PixelFormat int64

const (
	PixelRGB PixelFormat = iota + 1
	// PixelYUV is interleaved 8-bit 4:2:2 in U Y V Y order.
	PixelYUV
)

// ByteOrder values for OpByteOrder.
type ByteOrder int64

const (
	LittleEndian ByteOrder = iota + 1
	BigEndian
)

// Binary returns the encoding/binary order for o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// OrderOf maps an encoding/binary order back to a ByteOrder.
func OrderOf(order binary.ByteOrder) ByteOrder {
	if order == binary.BigEndian {
		return BigEndian
	}
	return LittleEndian
}

// Rational is a num/den pair such as a sample rate.
type Rational struct {
	Num int32
	Den int32
}

func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Component is one entry of an RGB component layout.
type Component struct {
	// Code is 'R', 'G', 'B', 'A' or 'F' (fill).
	Code byte
	Bits uint8
}

// Layout is the in-order list of components making up one pixel.
type Layout []Component

// LayoutOf builds a layout from component codes that all share one size.
func LayoutOf(codes string, bits uint8) Layout {
	l := make(Layout, 0, len(codes))
	for i := 0; i < len(codes); i++ {
		l = append(l, Component{Code: codes[i], Bits: bits})
	}
	return l
}

// Codes returns the component codes as a string, e.g. "RGB".
func (l Layout) Codes() string {
	var sb strings.Builder
	for _, c := range l {
		sb.WriteByte(c.Code)
	}
	return sb.String()
}

// BytesPerPixel returns the packed size of one pixel.
func (l Layout) BytesPerPixel() int {
	bits := 0
	for _, c := range l {
		bits += int(c.Bits)
	}
	return (bits + 7) / 8
}

// Equal reports whether two layouts are identical.
func (l Layout) Equal(o Layout) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if l[i] != o[i] {
			return false
		}
	}
	return true
}

// Op is one tagged format parameter. Which operand field is meaningful
// depends on Code.
type Op struct {
	Code   Opcode
	Int    int64
	Rat    Rational
	Str    string
	Layout Layout
}

// Int builds an integer-valued operation.
func Int(code Opcode, v int64) Op { return Op{Code: code, Int: v} }

// Rat builds a rational-valued operation.
func Rat(code Opcode, num, den int32) Op {
	return Op{Code: code, Rat: Rational{Num: num, Den: den}}
}

// Str builds a string-valued operation.
func Str(code Opcode, s string) Op { return Op{Code: code, Str: s} }

// WithLayout builds a layout-valued operation.
func WithLayout(code Opcode, l Layout) Op {
	cp := make(Layout, len(l))
	copy(cp, l)
	return Op{Code: code, Layout: cp}
}

func (o Op) String() string {
	switch {
	case o.Layout != nil:
		return fmt.Sprintf("%s=%s", o.Code, o.Layout.Codes())
	case o.Str != "":
		return fmt.Sprintf("%s=%q", o.Code, o.Str)
	case o.Rat.Den != 0:
		return fmt.Sprintf("%s=%s", o.Code, o.Rat)
	}
	return fmt.Sprintf("%s=%d", o.Code, o.Int)
}
