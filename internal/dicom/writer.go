// Package dicom exports JPEG channels as DICOM Part 10 files with
// encapsulated pixel data and reads the frames back.
package dicom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"mediakit/internal/codec"
	"mediakit/internal/jpegcodec"
	"mediakit/internal/mediaerr"
	"mediakit/internal/session"
)

// Transfer syntaxes and SOP classes used by the exporter.
const (
	ExplicitVRLittleEndian   = "1.2.840.10008.1.2.1"
	JPEGBaselineProcess1     = "1.2.840.10008.1.2.4.50"
	SecondaryCaptureImage    = "1.2.840.10008.5.1.4.1.1.7"
	MultiFrameTrueColorImage = "1.2.840.10008.5.1.4.1.1.7.4"
	implementationClassUID   = "2.25.302919403384613423571385410958233071091"
)

// Meta is the patient and study information written with the pixel data.
// Empty UIDs are generated.
type Meta struct {
	PatientName       string
	PatientID         string
	Modality          string
	SeriesDescription string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
}

// NewUID returns a UUID-derived UID under the 2.25 root.
func NewUID() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

func (m Meta) withDefaults() Meta {
	if m.Modality == "" {
		m.Modality = "OT"
	}
	if m.PatientID == "" {
		m.PatientID = "ANONYMOUS"
	}
	for _, uid := range []*string{&m.StudyInstanceUID, &m.SeriesInstanceUID, &m.SOPInstanceUID} {
		if *uid == "" {
			*uid = NewUID()
		}
	}
	return m
}

// collectFrames reads every sample of m as stored bytes. The channel is
// switched to pass-through for the duration and then restored to its
// previous setting.
func collectFrames(m *session.Media) (frames [][]byte, err error) {
	v, err := m.GetInfo(codec.InfoCompressionEnabled)
	if err != nil {
		return nil, err
	}
	prev, ok := v.(bool)
	if !ok {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "dicom.Export", "compression setting is %T", v)
	}
	if err := m.PutInfo(codec.InfoCompressionEnabled, false); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := m.PutInfo(codec.InfoCompressionEnabled, prev); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore compression: %w", rerr))
		}
	}()

	n := m.SampleCount()
	if n == 0 {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "dicom.Export", "channel %s has no samples", m.ID())
	}
	if err := m.SetFrameNumber(1); err != nil {
		return nil, err
	}
	frames = make([][]byte, 0, n)
	for i := int64(1); i <= n; i++ {
		b, err := m.ReadSamples(1)
		if err != nil {
			return nil, fmt.Errorf("read sample %d: %w", i, err)
		}
		frames = append(frames, b)
	}
	return frames, nil
}

func element(t tag.Tag, v any) (*dicom.Element, error) {
	e, err := dicom.NewElement(t, v)
	if err != nil {
		return nil, fmt.Errorf("could not create element %v: %w", t, err)
	}
	return e, nil
}

// ExportJPEG writes a JPEG channel as a DICOM file to w. Each sample
// becomes one frame of encapsulated pixel data.
func ExportJPEG(m *session.Media, w io.Writer, meta Meta) error {
	const op = "dicom.ExportJPEG"
	if id := m.Codec(); id != jpegcodec.ID && id != jpegcodec.AvidID {
		return mediaerr.E(mediaerr.KindUnsupported, op,
			fmt.Errorf("codec %s: %w", id, mediaerr.ErrOperationNotSupported))
	}
	g, err := m.Geometry()
	if err != nil {
		return err
	}
	if g.Layout.FieldCount() != 1 {
		return mediaerr.E(mediaerr.KindUnsupported, op,
			fmt.Errorf("layout %s: %w", g.Layout, mediaerr.ErrOperationNotSupported))
	}
	frames, err := collectFrames(m)
	if err != nil {
		return err
	}
	meta = meta.withDefaults()

	photometric := "YBR_FULL"
	if g.HorizSubsampling == 2 {
		photometric = "YBR_FULL_422"
	}
	sopClass := SecondaryCaptureImage
	if len(frames) > 1 {
		sopClass = MultiFrameTrueColorImage
	}

	values := []struct {
		t tag.Tag
		v any
	}{
		{tag.FileMetaInformationVersion, []byte{0, 1}},
		{tag.MediaStorageSOPClassUID, []string{sopClass}},
		{tag.MediaStorageSOPInstanceUID, []string{meta.SOPInstanceUID}},
		{tag.TransferSyntaxUID, []string{JPEGBaselineProcess1}},
		{tag.ImplementationClassUID, []string{implementationClassUID}},
		{tag.SOPClassUID, []string{sopClass}},
		{tag.SOPInstanceUID, []string{meta.SOPInstanceUID}},
		{tag.Modality, []string{meta.Modality}},
		{tag.SeriesDescription, []string{meta.SeriesDescription}},
		{tag.PatientName, []string{meta.PatientName}},
		{tag.PatientID, []string{meta.PatientID}},
		{tag.StudyInstanceUID, []string{meta.StudyInstanceUID}},
		{tag.SeriesInstanceUID, []string{meta.SeriesInstanceUID}},
		{tag.SamplesPerPixel, []int{3}},
		{tag.PhotometricInterpretation, []string{photometric}},
		{tag.PlanarConfiguration, []int{0}},
		{tag.NumberOfFrames, []string{strconv.Itoa(len(frames))}},
		{tag.Rows, []int{g.Height}},
		{tag.Columns, []int{g.Width}},
		{tag.BitsAllocated, []int{8}},
		{tag.BitsStored, []int{8}},
		{tag.HighBit, []int{7}},
		{tag.PixelRepresentation, []int{0}},
		{tag.LossyImageCompression, []string{"01"}},
	}
	ds := dicom.Dataset{}
	for _, v := range values {
		e, err := element(v.t, v.v)
		if err != nil {
			return err
		}
		ds.Elements = append(ds.Elements, e)
	}
	sort.SliceStable(ds.Elements, func(i, j int) bool {
		a, b := ds.Elements[i].Tag, ds.Elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var buf bytes.Buffer
	if err := dicom.Write(&buf, ds,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
	); err != nil {
		return fmt.Errorf("could not write DICOM: %w", err)
	}
	// Pixel data is the last element; the library cannot carry our offset
	// table, so it is appended directly.
	buf.Write(PixelDataElement(Encapsulate(frames)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("could not write DICOM: %w", err)
	}
	return nil
}
