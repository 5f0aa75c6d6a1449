package codec

import (
	"fmt"

	"mediakit/internal/mediaerr"
)

func unsupported(c Codec, op string) error {
	return mediaerr.E(mediaerr.KindUnsupported, "codec."+op,
		fmt.Errorf("%s: %w", c.Meta().ID, mediaerr.ErrOperationNotSupported))
}

// ReadSamples dispatches to c's SampleReader.
func ReadSamples(c Codec, h *Handle, n int) ([]byte, error) {
	sr, ok := c.(SampleReader)
	if !ok {
		return nil, unsupported(c, "ReadSamples")
	}
	return sr.ReadSamples(h, n)
}

// WriteSamples dispatches to c's SampleWriter.
func WriteSamples(c Codec, h *Handle, n int, data []byte) (int, error) {
	sw, ok := c.(SampleWriter)
	if !ok {
		return 0, unsupported(c, "WriteSamples")
	}
	return sw.WriteSamples(h, n, data)
}

// GetInfo dispatches to c's InfoGetter.
func GetInfo(c Codec, h *Handle, kind InfoKind) (any, error) {
	ig, ok := c.(InfoGetter)
	if !ok {
		return nil, unsupported(c, "GetInfo")
	}
	return ig.GetInfo(h, kind)
}

// PutInfo dispatches to c's InfoPutter.
func PutInfo(c Codec, h *Handle, kind InfoKind, value any) error {
	ip, ok := c.(InfoPutter)
	if !ok {
		return unsupported(c, "PutInfo")
	}
	return ip.PutInfo(h, kind, value)
}

// ChannelCount dispatches to c's ChannelCounter. Codecs that do not
// implement it carry one channel.
func ChannelCount(c Codec, d Descriptor) (int, error) {
	cc, ok := c.(ChannelCounter)
	if !ok {
		return 1, nil
	}
	return cc.ChannelCount(d)
}

// InitializeDescriptor dispatches to c's DescriptorInitializer.
func InitializeDescriptor(c Codec, d Descriptor) error {
	di, ok := c.(DescriptorInitializer)
	if !ok {
		return unsupported(c, "InitializeDescriptor")
	}
	return di.InitializeDescriptor(d)
}

// SetFrameNumber dispatches to c's FrameSeeker.
func SetFrameNumber(c Codec, h *Handle, n int64) error {
	fs, ok := c.(FrameSeeker)
	if !ok {
		return unsupported(c, "SetFrameNumber")
	}
	return fs.SetFrameNumber(h, n)
}

// FrameOffset dispatches to c's FrameSeeker.
func FrameOffset(c Codec, h *Handle, n int64) (int64, error) {
	fs, ok := c.(FrameSeeker)
	if !ok {
		return 0, unsupported(c, "FrameOffset")
	}
	return fs.FrameOffset(h, n)
}

// UnknownInfo is returned by codecs for an InfoKind they do not answer.
func UnknownInfo(c Codec, kind InfoKind) error {
	return mediaerr.E(mediaerr.KindUnsupported, "codec.Info",
		fmt.Errorf("%s does not handle %s: %w", c.Meta().ID, kind, mediaerr.ErrOperationNotSupported))
}

// BadInfoValue is returned by PutInfo for a value of the wrong type.
func BadInfoValue(kind InfoKind, value any) error {
	return mediaerr.Errorf(mediaerr.KindConfiguration, "codec.PutInfo", "%s: unexpected value type %T", kind, value)
}
