// Package session is the application-facing API: it creates and opens
// channels of sample data in a container and drives the selected codec.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"mediakit/internal/codec"
	"mediakit/internal/container"
	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

// Session binds a codec registry to a container.
type Session struct {
	reg       *codec.Registry
	c         container.Container
	criterion codec.Criterion
	logger    *slog.Logger
}

// New creates a session. criterion decides between several willing codecs
// when a channel is opened.
func New(reg *codec.Registry, c container.Container, logger *slog.Logger, criterion codec.Criterion) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{reg: reg, c: c, criterion: criterion, logger: logger.With("component", "session")}
}

// Container returns the session's container.
func (s *Session) Container() container.Container { return s.c }

// Spec describes a channel to create.
type Spec struct {
	// Codec names the codec explicitly. When empty the codec is selected
	// from Class and Compression.
	Codec       codec.ID
	Class       string
	Compression string
	Geometry    codec.Geometry
	TrackID     int32
	// Quality and RestartInterval override the codec defaults when set.
	Quality         int
	RestartInterval int
	// MemFormat is merged into the handle's memory format.
	MemFormat format.List
}

// OpenOptions tune how an existing channel is opened.
type OpenOptions struct {
	// Codec bypasses selection.
	Codec codec.ID
	// PassThrough exchanges the stored (compressed) bytes instead of
	// decoded samples.
	PassThrough bool
	MemFormat   format.List
}

// Create makes a new descriptor, its data stream and a handle writing to it.
func (s *Session) Create(spec Spec) (*Media, error) {
	st := s.c.Store()
	class := spec.Class
	if spec.Codec != "" {
		c, _, err := s.reg.Lookup(spec.Codec)
		if err != nil {
			return nil, err
		}
		if class == "" {
			class = c.Meta().Class
		}
	}
	if class == "" {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "session.Create", "no descriptor class or codec given")
	}

	d := codec.Descriptor{Store: st, ID: st.NewObject(class)}
	m, err := s.create(d, spec)
	if err != nil {
		return nil, errors.Join(err, s.discard(d.ID))
	}
	m.logger.Info("channel created", "class", class, "width", spec.Geometry.Width, "height", spec.Geometry.Height)
	return m, nil
}

// discard removes a descriptor whose creation failed, with its stream.
func (s *Session) discard(id store.ObjectID) error {
	return errors.Join(s.c.RemoveStream(id), s.c.Store().DeleteObject(id))
}

func (s *Session) create(d codec.Descriptor, spec Spec) (*Media, error) {
	st := d.Store
	if err := codec.RegisterDefs(st, codec.Defs()); err != nil {
		return nil, err
	}
	if err := s.describe(d, spec); err != nil {
		return nil, fmt.Errorf("failed to write descriptor: %w", err)
	}

	id := spec.Codec
	if id == "" {
		var err error
		if id, err = s.reg.Select(d, s.criterion); err != nil {
			return nil, err
		}
	}
	c, _, err := s.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := codec.InitializeDescriptor(c, d); err != nil && !errors.Is(err, mediaerr.ErrOperationNotSupported) {
		return nil, fmt.Errorf("failed to initialize descriptor: %w", err)
	}
	if err := store.WriteString(st, d.ID, codec.PropCodec, string(id)); err != nil {
		return nil, err
	}

	raw, err := s.c.CreateStream(d.ID)
	if err != nil {
		return nil, err
	}
	m, err := s.bind(id, d, raw, func(c codec.Codec, h *codec.Handle) error { return c.Create(h) })
	if err != nil {
		return nil, err
	}
	if spec.MemFormat.Len() > 0 {
		if err := m.SetMemoryFormat(spec.MemFormat); err != nil {
			return nil, errors.Join(err, m.Close())
		}
	}
	return m, nil
}

func (s *Session) describe(d codec.Descriptor, spec Spec) error {
	st := d.Store
	if spec.Codec == "" || spec.Compression != "" {
		if err := store.WriteString(st, d.ID, codec.PropCompression, spec.Compression); err != nil {
			return err
		}
	}
	if err := codec.WriteGeometry(d, spec.Geometry); err != nil {
		return err
	}
	if err := store.WriteInt32(st, d.ID, codec.PropMediaKind, int32(format.MediaVideo)); err != nil {
		return err
	}
	if err := store.WriteInt32(st, d.ID, codec.PropTrackID, spec.TrackID); err != nil {
		return err
	}
	if spec.Quality > 0 {
		if err := store.WriteInt32(st, d.ID, codec.PropQuality, int32(spec.Quality)); err != nil {
			return err
		}
	}
	if spec.RestartInterval > 0 {
		if err := store.WriteInt32(st, d.ID, codec.PropRestartInterval, int32(spec.RestartInterval)); err != nil {
			return err
		}
	}
	return store.WriteInt16(st, d.ID, codec.PropByteOrder, int16(format.OrderOf(st.ByteOrder())))
}

// Open opens an existing channel for reading.
func (s *Session) Open(objID store.ObjectID, opts OpenOptions) (*Media, error) {
	st := s.c.Store()
	if _, err := st.Class(objID); err != nil {
		return nil, err
	}
	d := codec.Descriptor{Store: st, ID: objID}
	id := opts.Codec
	if id == "" {
		var err error
		if id, err = s.reg.Select(d, s.criterion); err != nil {
			return nil, err
		}
	}
	raw, err := s.c.OpenStream(objID)
	if err != nil {
		return nil, err
	}
	m, err := s.bind(id, d, raw, func(c codec.Codec, h *codec.Handle) error { return c.Open(h) })
	if err != nil {
		return nil, err
	}
	if opts.PassThrough {
		if err := m.PutInfo(codec.InfoCompressionEnabled, false); err != nil {
			return nil, errors.Join(err, m.Close())
		}
	}
	if opts.MemFormat.Len() > 0 {
		if err := m.SetMemoryFormat(opts.MemFormat); err != nil {
			return nil, errors.Join(err, m.Close())
		}
	}
	m.logger.Debug("channel opened", "samples", m.SampleCount())
	return m, nil
}

func (s *Session) bind(id codec.ID, d codec.Descriptor, raw container.Stream, start func(codec.Codec, *codec.Handle) error) (*Media, error) {
	logger := s.logger.With("codec", id, "descriptor", d.ID)
	h := codec.NewHandle(d, stream.NewAdapter(raw, format.New(), false, logger), logger)
	c, err := s.reg.Bind(id, h)
	if err != nil {
		return nil, errors.Join(err, raw.Close())
	}
	if err := start(c, h); err != nil {
		return nil, errors.Join(err, raw.Close())
	}
	return &Media{codec: c, id: id, h: h, raw: raw, logger: logger}, nil
}

// Descriptors lists every descriptor in the container that has a data
// stream.
func (s *Session) Descriptors() []store.ObjectID {
	var out []store.ObjectID
	for _, id := range s.c.Store().Objects("") {
		if s.c.HasStream(id) {
			out = append(out, id)
		}
	}
	return out
}

// Info summarises a stored channel.
type Info struct {
	ID          store.ObjectID
	Class       string
	Codec       codec.ID
	Compression string
	Geometry    codec.Geometry
	Samples     int64
}

// Describe reads a descriptor without opening its stream.
func (s *Session) Describe(id store.ObjectID) (Info, error) {
	st := s.c.Store()
	class, err := st.Class(id)
	if err != nil {
		return Info{}, err
	}
	d := codec.Descriptor{Store: st, ID: id}
	g, err := codec.ReadGeometry(d)
	if err != nil {
		return Info{}, err
	}
	name, _ := store.ReadStringOr(st, id, codec.PropCodec, "")
	n, err := store.ReadInt64(st, id, codec.PropLength)
	if err != nil && !store.IsNotFound(err) {
		return Info{}, err
	}
	return Info{
		ID:          id,
		Class:       class,
		Codec:       codec.ID(name),
		Compression: d.Compression(),
		Geometry:    g,
		Samples:     n,
	}, nil
}
