// Package stream implements the stream adapter that sits between a codec and
// the raw bytes of a media data stream.
//
// An Adapter carries two format lists: the file format the bytes are stored
// in and the memory format the caller exchanges samples in. Byte-order
// correction happens here, at the transfer boundary; pixel layout
// translation is left to the codec (see translate.go for the helpers).
package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mediakit/internal/format"
	"mediakit/internal/mediaerr"
)

// Adapter wraps a raw data stream with file and memory formats.
type Adapter struct {
	rws     io.ReadWriteSeeker
	file    format.List
	mem     format.List
	foreign bool
	pos     int64
	logger  *slog.Logger
}

// NewAdapter wraps rws. The memory format starts as a copy of the file
// format.
func NewAdapter(rws io.ReadWriteSeeker, file format.List, foreign bool, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	pos, _ := rws.Seek(0, io.SeekCurrent)
	return &Adapter{
		rws:     rws,
		file:    file.Clone(),
		mem:     file.Clone(),
		foreign: foreign,
		pos:     pos,
		logger:  logger.With("component", "stream"),
	}
}

// FileFormat returns the on-disk format list.
func (a *Adapter) FileFormat() format.List { return a.file.Clone() }

// MemFormat returns the caller-side format list.
func (a *Adapter) MemFormat() format.List { return a.mem.Clone() }

// SetFileFormat replaces the on-disk format list.
func (a *Adapter) SetFileFormat(l format.List) { a.file = l.Clone() }

// SetMemFormat merges l into the memory format, overwriting entries that are
// already present.
func (a *Adapter) SetMemFormat(l format.List) {
	format.Merge(l, &a.mem, format.Overwrite)
	a.logger.Debug("memory format changed", "format", a.mem.Describe())
}

// Foreign reports whether the stream was written with the opposite byte
// order to the one the caller uses.
func (a *Adapter) Foreign() bool { return a.foreign }

// SetForeign updates the foreign-endian flag.
func (a *Adapter) SetForeign(v bool) { a.foreign = v }

// Swabbing reports whether transfers are byte-swapped.
func (a *Adapter) Swabbing() bool {
	return NeedsSwab(a.file, a.mem, a.foreign) && SwabWidth(a.file) > 1
}

// Pos returns the current stream position.
func (a *Adapter) Pos() int64 { return a.pos }

// Seek moves to an absolute position.
func (a *Adapter) Seek(pos int64) error {
	if pos < 0 {
		return mediaerr.Errorf(mediaerr.KindPosition, "stream.Seek", "negative position %d", pos)
	}
	got, err := a.rws.Seek(pos, io.SeekStart)
	if err != nil {
		return mediaerr.E(mediaerr.KindResource, "stream.Seek", err)
	}
	a.pos = got
	return nil
}

// SeekEnd moves to the end of the stream and returns the new position.
func (a *Adapter) SeekEnd() (int64, error) {
	got, err := a.rws.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, mediaerr.E(mediaerr.KindResource, "stream.SeekEnd", err)
	}
	a.pos = got
	return got, nil
}

// Size returns the length of the stream, leaving the position unchanged.
func (a *Adapter) Size() (int64, error) {
	end, err := a.rws.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, mediaerr.E(mediaerr.KindResource, "stream.Size", err)
	}
	if _, err := a.rws.Seek(a.pos, io.SeekStart); err != nil {
		return 0, mediaerr.E(mediaerr.KindResource, "stream.Size", err)
	}
	return end, nil
}

// ReadRaw fills p from the stream without any byte-order correction.
func (a *Adapter) ReadRaw(p []byte) error {
	n, err := io.ReadFull(a.rws, p)
	a.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return mediaerr.E(mediaerr.KindResource, "stream.Read",
				fmt.Errorf("short read at %d (%d of %d bytes): %w", a.pos-int64(n), n, len(p), mediaerr.ErrBufferTooSmall))
		}
		return mediaerr.E(mediaerr.KindResource, "stream.Read", err)
	}
	return nil
}

// WriteRaw writes p without any byte-order correction.
func (a *Adapter) WriteRaw(p []byte) error {
	n, err := a.rws.Write(p)
	a.pos += int64(n)
	if err != nil {
		return mediaerr.E(mediaerr.KindResource, "stream.Write", err)
	}
	if n != len(p) {
		return mediaerr.E(mediaerr.KindResource, "stream.Write", io.ErrShortWrite)
	}
	return nil
}

// ReadAt reads len(p) raw bytes at pos and restores the previous position.
func (a *Adapter) ReadAt(p []byte, pos int64) error {
	saved := a.pos
	if err := a.Seek(pos); err != nil {
		return err
	}
	err := a.ReadRaw(p)
	if serr := a.Seek(saved); err == nil {
		err = serr
	}
	return err
}

// Read fills p with memory-format bytes, swabbing multi-byte words when the
// file and memory byte orders differ.
func (a *Adapter) Read(p []byte) error {
	if err := a.ReadRaw(p); err != nil {
		return err
	}
	if a.Swabbing() {
		Swab(p, SwabWidth(a.file))
	}
	return nil
}

// Write stores memory-format bytes, swabbing a scratch copy when needed so
// that p is never modified.
func (a *Adapter) Write(p []byte) error {
	if !a.Swabbing() {
		return a.WriteRaw(p)
	}
	bp := GetScratch(len(p))
	defer PutScratch(bp)
	copy(*bp, p)
	Swab(*bp, SwabWidth(a.file))
	return a.WriteRaw(*bp)
}
