package store

import (
	"os"
	"testing"

	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "galaxy-store-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return New(dir)
}

func TestWriteChunkThenRead(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello chunk")
	hexHash := contenthash.MD5Hex(data)
	relPath := galaxypath.ChunkPath(hexHash)

	require.NoError(t, s.WriteChunk(relPath, hexHash, data))

	got, err := s.ReadFile(relPath)
	require.NoError(t, err)
	require.Equal(t, data, got)

	valid, err := s.ValidChunk(relPath, hexHash)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestWriteChunkRejectsMismatch(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello chunk")
	relPath := galaxypath.ChunkPath("notarealhash")

	err := s.WriteChunk(relPath, "notarealhash", data)
	require.Error(t, err)
	var mismatch galaxyerrors.IntegrityMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.False(t, s.Exists(relPath))
}

func TestWriteChunkIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("idempotent")
	hexHash := contenthash.MD5Hex(data)
	relPath := galaxypath.ChunkPath(hexHash)

	require.NoError(t, s.WriteChunk(relPath, hexHash, data))
	require.NoError(t, s.WriteChunk(relPath, hexHash, data))

	got, err := s.ReadFile(relPath)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestWriteManifestIfAbsent(t *testing.T) {
	s := newTestStore(t)
	relPath := "manifests/v2/depots/de/ad/deadbeef"

	written, err := s.WriteManifestIfAbsent(relPath, []byte("first"))
	require.NoError(t, err)
	require.True(t, written)

	written, err = s.WriteManifestIfAbsent(relPath, []byte("second"))
	require.NoError(t, err)
	require.False(t, written)

	got, err := s.ReadFile(relPath)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
}
