package container

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediakit/internal/store"
)

func exercise(t *testing.T, c Container) store.ObjectID {
	t.Helper()
	id := c.Store().NewObject("TIFFDescriptor")
	require.NoError(t, store.WriteInt32(c.Store(), id, 1, 720))
	assert.False(t, c.HasStream(id))

	s, err := c.CreateStream(id)
	require.NoError(t, err)
	_, err = s.Write([]byte("sample data"))
	require.NoError(t, err)
	size, err := s.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)
	require.NoError(t, s.Close())
	assert.True(t, c.HasStream(id))
	return id
}

func TestMemory(t *testing.T) {
	c := NewMemory(binary.LittleEndian, nil)
	id := exercise(t, c)

	s, err := c.OpenStream(id)
	require.NoError(t, err)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "sample data", string(got))
	assert.Equal(t, []byte("sample data"), c.Bytes(id))

	_, err = c.OpenStream("missing")
	assert.Error(t, err)

	require.NoError(t, c.RemoveStream(id))
	assert.False(t, c.HasStream(id))
	require.NoError(t, c.RemoveStream(id))
}

func TestDirPersists(t *testing.T) {
	path := t.TempDir()
	c, err := OpenDir(path, binary.BigEndian, nil)
	require.NoError(t, err)
	id := exercise(t, c)
	require.NoError(t, c.Close())

	reopened, err := OpenDir(path, binary.LittleEndian, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, binary.BigEndian, reopened.Store().ByteOrder(), "order comes from the manifest")
	w, err := store.ReadInt32(reopened.Store(), id, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 720, w)

	s, err := reopened.OpenStream(id)
	require.NoError(t, err)
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "sample data", string(got))
}
