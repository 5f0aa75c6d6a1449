// Package container binds an object store to the per-object data streams
// that hold sample bytes.
package container

import (
	"io"

	"mediakit/internal/store"
)

// Stream is one object's data stream.
type Stream interface {
	io.ReadWriteSeeker
	Size() (int64, error)
	Close() error
}

// Container is a property store plus data streams keyed by object.
type Container interface {
	Store() store.Store
	// CreateStream creates or truncates the data stream of id.
	CreateStream(id store.ObjectID) (Stream, error)
	OpenStream(id store.ObjectID) (Stream, error)
	HasStream(id store.ObjectID) bool
	// RemoveStream deletes the data stream of id. A missing stream is not
	// an error.
	RemoveStream(id store.ObjectID) error
	Close() error
}
