package codec

import (
	"log/slog"

	"mediakit/internal/format"
	"mediakit/internal/frameindex"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

// Channel is one per-channel record of an open media handle.
type Channel struct {
	MediaKind   int64
	TrackID     int32
	OutputIndex int
	SampleRate  format.Rational
	SampleCount int64
	// DataOffset is the stream position of the next sample to transfer.
	DataOffset int64
}

// Handle is one open channel of sample data. It is owned by the caller that
// opened it; its Index and Private fields are owned by the codec.
type Handle struct {
	Descriptor Descriptor
	Stream     *stream.Adapter
	Channels   []Channel
	// Compress selects decode-to-raw (true) or pass-through of compressed
	// bytes (false).
	Compress bool
	// Writing is set for handles made by Create.
	Writing bool
	// Index addresses variable-length samples. Nil for streams addressed by
	// arithmetic.
	Index *frameindex.Index
	// Private is the codec's per-handle state.
	Private any
	// Persistent is the codec's process-wide state from InitState.
	Persistent any
	Logger     *slog.Logger
}

// NewHandle builds a handle for the descriptor over a data stream.
func NewHandle(d Descriptor, s *stream.Adapter, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{
		Descriptor: d,
		Stream:     s,
		Channels:   []Channel{{MediaKind: format.MediaVideo, SampleRate: format.Rational{Num: 30000, Den: 1001}}},
		Compress:   true,
		Logger:     logger,
	}
}

// Store is shorthand for h.Descriptor.Store.
func (h *Handle) Store() store.Store { return h.Descriptor.Store }

// ID is shorthand for h.Descriptor.ID.
func (h *Handle) ID() store.ObjectID { return h.Descriptor.ID }

// SampleCount returns the first channel's sample count.
func (h *Handle) SampleCount() int64 {
	if len(h.Channels) == 0 {
		return 0
	}
	return h.Channels[0].SampleCount
}

// SetSampleCount updates the first channel's sample count.
func (h *Handle) SetSampleCount(n int64) {
	if len(h.Channels) > 0 {
		h.Channels[0].SampleCount = n
	}
}
