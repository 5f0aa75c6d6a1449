package dicom

import (
	"fmt"
	"io"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"mediakit/internal/mediaerr"
)

// Dataset wraps a parsed DICOM dataset for easier access.
type Dataset struct {
	Data dicom.Dataset
}

// Parse reads a DICOM file of size bytes from r.
func Parse(r io.Reader, size int64) (*Dataset, error) {
	ds, err := dicom.Parse(r, size, nil)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}
	return &Dataset{Data: ds}, nil
}

// ReadFile parses the DICOM file at path.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}
	return Parse(f, info.Size())
}

// GetString returns a string value for a tag, or empty string if not found.
func (d *Dataset) GetString(t tag.Tag) string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetInt returns an integer value for a tag, or 0 if not found.
func (d *Dataset) GetInt(t tag.Tag) int {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case int:
		return v
	case []uint16:
		if len(v) > 0 {
			return int(v[0])
		}
	case uint16:
		return int(v)
	}
	return 0
}

// TransferSyntax returns the transfer syntax UID.
func (d *Dataset) TransferSyntax() string {
	return d.GetString(tag.TransferSyntaxUID)
}

// Frames returns the encapsulated frames of the pixel data. Odd-length
// frames keep their pad byte.
func (d *Dataset) Frames() ([][]byte, error) {
	const op = "dicom.Frames"
	elem, err := d.Data.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, mediaerr.E(mediaerr.KindFormat, op, fmt.Errorf("no pixel data found: %w", err))
	}
	switch v := elem.Value.GetValue().(type) {
	case dicom.PixelDataInfo:
		if !v.IsEncapsulated {
			return nil, mediaerr.Errorf(mediaerr.KindUnsupported, op, "pixel data is not encapsulated")
		}
		out := make([][]byte, 0, len(v.Frames))
		for _, f := range v.Frames {
			out = append(out, f.EncapsulatedData.Data)
		}
		return out, nil
	case []byte:
		_, frames, err := Decapsulate(v)
		return frames, err
	default:
		return nil, mediaerr.Errorf(mediaerr.KindUnsupported, op, "unsupported pixel data type: %T", v)
	}
}

// ReadEncapsulatedFrames parses a DICOM file and returns its frames.
func ReadEncapsulatedFrames(r io.Reader, size int64) ([][]byte, error) {
	d, err := Parse(r, size)
	if err != nil {
		return nil, err
	}
	return d.Frames()
}
