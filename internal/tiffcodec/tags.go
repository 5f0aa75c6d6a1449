package tiffcodec

import "fmt"

// Baseline tags.
const (
	TagImageWidth          uint16 = 256
	TagImageLength         uint16 = 257
	TagBitsPerSample       uint16 = 258
	TagCompression         uint16 = 259
	TagPhotometric         uint16 = 262
	TagStripOffsets        uint16 = 273
	TagSamplesPerPixel     uint16 = 277
	TagRowsPerStrip        uint16 = 278
	TagStripByteCounts     uint16 = 279
	TagPlanarConfiguration uint16 = 284
	TagYCbCrSubSampling    uint16 = 530
)

// Private video tags.
const (
	TagFrameLayout uint16 = 34432 + iota
	TagFrameRate
	TagJPEGQTables
	TagJPEGHuffmanTables
	TagFrameOffsets
	TagJPEGQuality
	TagFieldDominance
	TagSampleCount
	TagDataOffset
)

// Compression values.
const (
	compressionNone = 1
	compressionJPEG = 7
)

// Photometric values.
const (
	photometricRGB   = 2
	photometricYCbCr = 6
)

var tagNames = map[uint16]string{
	TagImageWidth:          "ImageWidth",
	TagImageLength:         "ImageLength",
	TagBitsPerSample:       "BitsPerSample",
	TagCompression:         "Compression",
	TagPhotometric:         "PhotometricInterpretation",
	TagStripOffsets:        "StripOffsets",
	TagSamplesPerPixel:     "SamplesPerPixel",
	TagRowsPerStrip:        "RowsPerStrip",
	TagStripByteCounts:     "StripByteCounts",
	TagPlanarConfiguration: "PlanarConfiguration",
	TagYCbCrSubSampling:    "YCbCrSubSampling",
	TagFrameLayout:         "VideoFrameLayout",
	TagFrameRate:           "VideoFrameRate",
	TagJPEGQTables:         "JPEGQTables",
	TagJPEGHuffmanTables:   "JPEGHuffmanTables",
	TagFrameOffsets:        "FrameOffsets",
	TagJPEGQuality:         "JPEGQuality",
	TagFieldDominance:      "FieldDominance",
	TagSampleCount:         "SampleCount",
	TagDataOffset:          "DataOffset",
}

// TagName returns the name of a known tag.
func TagName(tag uint16) string {
	if n, ok := tagNames[tag]; ok {
		return n
	}
	return fmt.Sprintf("Tag(%d)", tag)
}
