package container

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"mediakit/internal/mediaerr"
	"mediakit/internal/store"
	"mediakit/internal/stream"
)

// Memory keeps everything in process.
type Memory struct {
	mu      sync.Mutex
	st      *store.Memory
	streams map[store.ObjectID]*stream.Buffer
}

// NewMemory creates an empty in-memory container.
func NewMemory(order binary.ByteOrder, logger *slog.Logger) *Memory {
	return &Memory{
		st:      store.NewMemory(order, logger),
		streams: make(map[store.ObjectID]*stream.Buffer),
	}
}

func (m *Memory) Store() store.Store { return m.st }

func (m *Memory) CreateStream(id store.ObjectID) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := stream.NewBuffer(nil)
	m.streams[id] = b
	return b, nil
}

// OpenStream returns the stream positioned at its start. Handles share the
// underlying buffer.
func (m *Memory) OpenStream(id store.ObjectID) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.streams[id]
	if !ok {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, "container.OpenStream", "no data stream for %s", id)
	}
	if _, err := b.Seek(0, 0); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Memory) HasStream(id store.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.streams[id]
	return ok
}

func (m *Memory) RemoveStream(id store.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, id)
	return nil
}

// Bytes returns a copy of a stream's contents.
func (m *Memory) Bytes(id store.ObjectID) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.streams[id]; ok {
		return b.Bytes()
	}
	return nil
}

func (m *Memory) Close() error { return nil }
