package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
)

const (
	manifestName = "manifest.yaml"
	streamsDir   = "streams"
)

// Dir is a container stored in a directory: manifest.yaml holds the object
// store and streams/<id>.dat holds each data stream.
type Dir struct {
	path   string
	st     *store.Memory
	logger *slog.Logger

	mu   sync.Mutex
	open []*os.File
}

// OpenDir opens the container at path, creating the directory if needed. An
// existing manifest is loaded; otherwise a new store with order is created.
func OpenDir(path string, order binary.ByteOrder, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(path, streamsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create container directory: %w", err)
	}
	d := &Dir{path: path, logger: logger.With("component", "container", "path", path)}

	f, err := os.Open(filepath.Join(path, manifestName))
	switch {
	case err == nil:
		defer f.Close()
		st, lerr := store.Load(f, logger)
		if lerr != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", lerr)
		}
		d.st = st
		d.logger.Debug("manifest loaded", "objects", len(st.Objects("")))
	case errors.Is(err, fs.ErrNotExist):
		d.st = store.NewMemory(order, logger)
	default:
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return d, nil
}

func (d *Dir) Store() store.Store { return d.st }

// Path returns the container directory.
func (d *Dir) Path() string { return d.path }

func (d *Dir) streamPath(id store.ObjectID) string {
	return filepath.Join(d.path, streamsDir, string(id)+".dat")
}

func (d *Dir) track(f *os.File) Stream {
	d.mu.Lock()
	d.open = append(d.open, f)
	d.mu.Unlock()
	return &fileStream{File: f}
}

func (d *Dir) CreateStream(id store.ObjectID) (Stream, error) {
	f, err := os.OpenFile(d.streamPath(id), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	return d.track(f), nil
}

func (d *Dir) OpenStream(id store.ObjectID) (Stream, error) {
	f, err := os.OpenFile(d.streamPath(id), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "container.OpenStream", "no data stream for %s", id)
		}
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return d.track(f), nil
}

func (d *Dir) HasStream(id store.ObjectID) bool {
	_, err := os.Stat(d.streamPath(id))
	return err == nil
}

func (d *Dir) RemoveStream(id store.ObjectID) error {
	if err := os.Remove(d.streamPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove stream: %w", err)
	}
	return nil
}

// Flush writes the manifest without closing streams.
func (d *Dir) Flush() error {
	tmp := filepath.Join(d.path, manifestName+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if err := d.st.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(d.path, manifestName))
}

// Close persists the manifest and closes any streams still open.
func (d *Dir) Close() error {
	err := d.Flush()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.open {
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) && err == nil {
			err = cerr
		}
	}
	d.open = nil
	return err
}

type fileStream struct {
	*os.File
}

func (s *fileStream) Size() (int64, error) {
	fi, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
