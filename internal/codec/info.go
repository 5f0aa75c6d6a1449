package codec

import "fmt"

// InfoKind selects the value GetInfo returns or PutInfo sets.
type InfoKind int

const (
	// InfoFileFormat is the on-disk format list (format.List).
	InfoFileFormat InfoKind = iota + 1
	// InfoMemFormat is the caller-side format list (format.List). PutInfo
	// merges into it.
	InfoMemFormat
	// InfoMaxSampleSize is the largest sample size in bytes (int64).
	InfoMaxSampleSize
	// InfoSampleSize is the size of the current sample in bytes (int64).
	InfoSampleSize
	// InfoFrameLayout is the stored frame layout (format.FrameLayout).
	InfoFrameLayout
	// InfoQuality is the compression quality, 1..100 (int).
	InfoQuality
	// InfoSummary is the codec-specific summary block ([]byte).
	InfoSummary
	// InfoCompressionEnabled toggles decode-to-raw vs pass-through (bool).
	InfoCompressionEnabled
	// InfoSampleCount is the number of samples written (int64).
	InfoSampleCount
)

func (k InfoKind) String() string {
	switch k {
	case InfoFileFormat:
		return "FileFormat"
	case InfoMemFormat:
		return "MemFormat"
	case InfoMaxSampleSize:
		return "MaxSampleSize"
	case InfoSampleSize:
		return "SampleSize"
	case InfoFrameLayout:
		return "FrameLayout"
	case InfoQuality:
		return "Quality"
	case InfoSummary:
		return "Summary"
	case InfoCompressionEnabled:
		return "CompressionEnabled"
	case InfoSampleCount:
		return "SampleCount"
	}
	return fmt.Sprintf("InfoKind(%d)", int(k))
}
