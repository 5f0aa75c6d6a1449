package stream

import (
	"fmt"
	"io"
	"sync"
)

// Buffer is a growable in-memory io.ReadWriteSeeker. Writing past the end
// extends it; seeking past the end and writing leaves a zero-filled gap.
type Buffer struct {
	mu  sync.Mutex
	buf []byte
	pos int64
}

// NewBuffer returns a buffer holding a copy of data, positioned at 0.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{buf: make([]byte, len(data))}
	copy(b.buf, data)
	return b
}

func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos >= int64(len(b.buf)) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("stream: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("stream: negative position %d", abs)
	}
	b.pos = abs
	return abs, nil
}

// Size returns the number of bytes written so far.
func (b *Buffer) Size() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.buf)), nil
}

// Bytes returns a copy of the contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Close is a no-op.
func (b *Buffer) Close() error { return nil }
