package codec

import "mediakit/internal/store"

// Descriptor property tags shared by all codecs. Codec-private properties
// are registered by each codec in InitializeDescriptor.
const (
	PropCodec store.Tag = 0x0101 + iota
	PropCompression
	PropStoredWidth
	PropStoredHeight
	PropFrameLayout
	PropSampleRate
	PropLength
	PropComponentBits
	PropPixelFormat
	PropHorizSubsampling
	PropFieldDominance
	PropBlackLevel
	PropWhiteLevel
	PropColorRange
	PropByteOrder
	PropSummary
	PropMediaKind
	PropTrackID
	PropFrameIndex
	PropQuality
	PropRestartInterval
)

// Descriptor classes.
const (
	ClassTIFF = "TIFFDescriptor"
	ClassCDCI = "CDCIDescriptor"
	ClassRGBA = "RGBADescriptor"
)

// Compression tags stored under PropCompression.
const (
	CompressionNone = ""
	CompressionJPEG = "JPEG"
	CompressionAvid = "AvidJFIF"
)

// Defs returns the definitions of the shared descriptor properties.
func Defs() []store.Def {
	return []store.Def{
		{Tag: PropCodec, Name: "CodecID", Type: store.TypeString},
		{Tag: PropCompression, Name: "Compression", Type: store.TypeString},
		{Tag: PropStoredWidth, Name: "StoredWidth", Type: store.TypeInt32},
		{Tag: PropStoredHeight, Name: "StoredHeight", Type: store.TypeInt32},
		{Tag: PropFrameLayout, Name: "FrameLayout", Type: store.TypeInt32},
		{Tag: PropSampleRate, Name: "SampleRate", Type: store.TypeRational},
		{Tag: PropLength, Name: "Length", Type: store.TypeInt64},
		{Tag: PropComponentBits, Name: "ComponentWidth", Type: store.TypeInt32},
		{Tag: PropPixelFormat, Name: "PixelFormat", Type: store.TypeInt32},
		{Tag: PropHorizSubsampling, Name: "HorizontalSubsampling", Type: store.TypeInt32},
		{Tag: PropFieldDominance, Name: "FieldDominance", Type: store.TypeInt32},
		{Tag: PropBlackLevel, Name: "BlackReferenceLevel", Type: store.TypeInt32},
		{Tag: PropWhiteLevel, Name: "WhiteReferenceLevel", Type: store.TypeInt32},
		{Tag: PropColorRange, Name: "ColorRange", Type: store.TypeInt32},
		{Tag: PropByteOrder, Name: "ByteOrder", Type: store.TypeInt16},
		{Tag: PropSummary, Name: "Summary", Type: store.TypeBytes},
		{Tag: PropMediaKind, Name: "MediaKind", Type: store.TypeInt32},
		{Tag: PropTrackID, Name: "TrackID", Type: store.TypeInt32},
		{Tag: PropFrameIndex, Name: "FrameIndex", Type: store.TypeInt64Array},
		{Tag: PropQuality, Name: "Quality", Type: store.TypeInt32},
		{Tag: PropRestartInterval, Name: "RestartInterval", Type: store.TypeInt32},
	}
}

// RegisterDefs registers defs, ignoring ones that are already registered
// identically.
func RegisterDefs(s store.Store, defs []store.Def) error {
	for _, d := range defs {
		if err := s.RegisterProperty(d); err != nil {
			return err
		}
	}
	return nil
}
