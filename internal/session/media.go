package session

import (
	"errors"
	"log/slog"

	"mediakit/internal/codec"
	"mediakit/internal/container"
	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
)

// Media is one open channel. It is not safe for concurrent use.
type Media struct {
	codec  codec.Codec
	id     codec.ID
	h      *codec.Handle
	raw    container.Stream
	logger *slog.Logger

	// err is the first fatal error seen; Close reports it.
	err    error
	closed bool
}

func (m *Media) record(err error) error {
	if err != nil && m.err == nil && !mediaerr.Recoverable(err) {
		m.err = err
		m.logger.Warn("channel error", "error", err)
	}
	return err
}

func (m *Media) checkOpen(op string) error {
	if m.closed {
		return mediaerr.Errorf(mediaerr.KindConfiguration, op, "channel is closed")
	}
	return nil
}

// ID returns the descriptor the channel belongs to.
func (m *Media) ID() store.ObjectID { return m.h.ID() }

// Codec returns the identity of the codec driving the channel.
func (m *Media) Codec() codec.ID { return m.id }

// WriteSamples appends n samples and returns how many were written.
func (m *Media) WriteSamples(n int, data []byte) (int, error) {
	if err := m.checkOpen("session.WriteSamples"); err != nil {
		return 0, err
	}
	written, err := codec.WriteSamples(m.codec, m.h, n, data)
	return written, m.record(err)
}

// ReadSamples reads the next n samples.
func (m *Media) ReadSamples(n int) ([]byte, error) {
	if err := m.checkOpen("session.ReadSamples"); err != nil {
		return nil, err
	}
	b, err := codec.ReadSamples(m.codec, m.h, n)
	return b, m.record(err)
}

// SetFrameNumber positions the channel on sample n (1-based).
func (m *Media) SetFrameNumber(n int64) error {
	if err := m.checkOpen("session.SetFrameNumber"); err != nil {
		return err
	}
	return codec.SetFrameNumber(m.codec, m.h, n)
}

// FrameOffset returns the stream position of sample n.
func (m *Media) FrameOffset(n int64) (int64, error) {
	if err := m.checkOpen("session.FrameOffset"); err != nil {
		return 0, err
	}
	return codec.FrameOffset(m.codec, m.h, n)
}

func (m *Media) GetInfo(kind codec.InfoKind) (any, error) {
	if err := m.checkOpen("session.GetInfo"); err != nil {
		return nil, err
	}
	return codec.GetInfo(m.codec, m.h, kind)
}

func (m *Media) PutInfo(kind codec.InfoKind, value any) error {
	if err := m.checkOpen("session.PutInfo"); err != nil {
		return err
	}
	return codec.PutInfo(m.codec, m.h, kind, value)
}

// SetMemoryFormat merges l into the format samples are exchanged in.
func (m *Media) SetMemoryFormat(l format.List) error {
	return m.PutInfo(codec.InfoMemFormat, l)
}

// SampleCount returns the number of samples in the channel.
func (m *Media) SampleCount() int64 { return m.h.SampleCount() }

// ChannelCount returns the number of channels the descriptor carries.
func (m *Media) ChannelCount() (int, error) {
	return codec.ChannelCount(m.codec, m.h.Descriptor)
}

// MaxSampleSize returns the largest sample ReadSamples can return.
func (m *Media) MaxSampleSize() (int64, error) {
	v, err := m.GetInfo(codec.InfoMaxSampleSize)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

// Close flushes the channel and releases its stream. The codec is closed
// even after an earlier failure; the first recorded error is returned
// together with any error from the flush.
func (m *Media) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	cerr := m.codec.Close(m.h)
	serr := m.raw.Close()
	if cerr != nil || serr != nil {
		m.logger.Warn("channel close failed", "codec_error", cerr, "stream_error", serr)
	}
	return errors.Join(m.err, cerr, serr)
}

// Geometry reads the picture geometry from the channel's descriptor.
func (m *Media) Geometry() (codec.Geometry, error) {
	return codec.ReadGeometry(m.h.Descriptor)
}
