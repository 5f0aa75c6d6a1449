// Package codec defines the contract every sample codec implements and the
// registry that selects and dispatches to them.
//
// Codec is the required part of the contract. Everything else a codec may
// support is an optional interface (SampleReader, SampleWriter, InfoGetter,
// ...). Dispatch helpers such as ReadSamples type-assert the optional
// interface and report ErrOperationNotSupported when it is missing, so a
// caller can probe capabilities without failing the handle.
package codec

import (
	"mediakit/internal/store"
)

// ID is a codec identity.
type ID string

// Meta describes a codec at registration time.
type Meta struct {
	ID   ID
	Name string
	// Class is the media descriptor class the codec claims.
	Class string
	// MinRevision and MaxRevision bound the file format revisions the codec
	// reads.
	MinRevision int
	MaxRevision int
}

// Codec is implemented by every registered codec.
type Codec interface {
	Meta() Meta
	// Applicability reports whether, and how well, the codec handles the
	// descriptor.
	Applicability(d Descriptor) Applicability
	Open(h *Handle) error
	Create(h *Handle) error
	Close(h *Handle) error
}

// SampleReader reads n samples in the handle's memory format.
type SampleReader interface {
	ReadSamples(h *Handle, n int) ([]byte, error)
}

// SampleWriter writes n samples held in data and returns how many were
// written.
type SampleWriter interface {
	WriteSamples(h *Handle, n int, data []byte) (int, error)
}

// InfoGetter answers GetInfo queries.
type InfoGetter interface {
	GetInfo(h *Handle, kind InfoKind) (any, error)
}

// InfoPutter accepts PutInfo updates.
type InfoPutter interface {
	PutInfo(h *Handle, kind InfoKind, value any) error
}

// ChannelCounter reports the number of channels a descriptor carries.
type ChannelCounter interface {
	ChannelCount(d Descriptor) (int, error)
}

// DescriptorInitializer fills a freshly created descriptor and registers the
// codec's private properties in the store. It must be idempotent.
type DescriptorInitializer interface {
	InitializeDescriptor(d Descriptor) error
}

// FrameSeeker gives random access to samples.
type FrameSeeker interface {
	SetFrameNumber(h *Handle, n int64) error
	FrameOffset(h *Handle, n int64) (int64, error)
}

// StateInitializer creates the codec's persistent state. The registry calls
// it once, at registration, and hands the result to every handle.
type StateInitializer interface {
	InitState() (any, error)
}

// Descriptor is a media descriptor object in a store.
type Descriptor struct {
	Store store.Store
	ID    store.ObjectID
}

// Class returns the descriptor's object class.
func (d Descriptor) Class() string {
	c, _ := d.Store.Class(d.ID)
	return c
}

// Compression returns the descriptor's compression tag, or "" when the
// samples are stored uncompressed.
func (d Descriptor) Compression() string {
	c, _ := store.ReadStringOr(d.Store, d.ID, PropCompression, "")
	return c
}
