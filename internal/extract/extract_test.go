package extract

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/manifest"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

func newTestExtractor(t *testing.T, verify bool) (*Extractor, *store.Store, string) {
	t.Helper()
	archiveDir, err := os.MkdirTemp("", "galaxy-extract-archive-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(archiveDir) })

	outDir, err := os.MkdirTemp("", "galaxy-extract-out-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(outDir) })

	s := store.New(archiveDir)
	f := cdn.NewFetcher(http.DefaultClient)
	mc := manifest.NewCache(s, f)
	return New(s, mc, verify), s, outDir
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractGen2ReconstructsMultiChunkFile(t *testing.T) {
	e, s, outDir := newTestExtractor(t, true)

	part1 := []byte("hello, ")
	part2 := []byte("world!")
	c1 := zlibCompress(t, part1)
	c2 := zlibCompress(t, part2)
	h1 := contenthash.MD5Hex(c1)
	h2 := contenthash.MD5Hex(c2)

	require.NoError(t, s.WriteChunk(galaxypath.ChunkPath(h1), h1, c1))
	require.NoError(t, s.WriteChunk(galaxypath.ChunkPath(h2), h2, c2))

	depotJSON := fmt.Sprintf(`{"depot":{"items":[
		{"type":"DepotFile","path":"greeting.txt","chunks":[
			{"compressedMd5":%q,"compressedSize":%d,"size":%d,"md5":%q},
			{"compressedMd5":%q,"compressedSize":%d,"size":%d,"md5":%q}
		]},
		{"type":"DepotDirectory","path":"somedir"}
	]}}`, h1, len(c1), len(part1), contenthash.MD5Hex(part1), h2, len(c2), len(part2), contenthash.MD5Hex(part2))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSON))
	}))
	defer srv.Close()
	e.Manifests.CollectorBaseURL = srv.URL

	result, err := e.ExtractGen2(context.Background(), []string{"d1"}, outDir)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesExtracted)
	require.Empty(t, result.Errors)

	got, err := os.ReadFile(filepath.Join(outDir, "greeting.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello, world!", string(got))
}

func TestExtractGen2SkipsCorruptedChunkAndContinues(t *testing.T) {
	e, s, outDir := newTestExtractor(t, true)

	good := zlibCompress(t, []byte("ok"))
	hGood := contenthash.MD5Hex(good)
	require.NoError(t, s.WriteChunk(galaxypath.ChunkPath(hGood), hGood, good))

	depotJSON := fmt.Sprintf(`{"depot":{"items":[
		{"type":"DepotFile","path":"broken.bin","chunks":[{"compressedMd5":"deadbeefdeadbeef","compressedSize":1,"size":1,"md5":"x"}]},
		{"type":"DepotFile","path":"fine.bin","chunks":[{"compressedMd5":%q,"compressedSize":%d,"size":2,"md5":%q}]}
	]}}`, hGood, len(good), contenthash.MD5Hex([]byte("ok")))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSON))
	}))
	defer srv.Close()
	e.Manifests.CollectorBaseURL = srv.URL

	result, err := e.ExtractGen2(context.Background(), []string{"d1"}, outDir)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesExtracted)
	require.Len(t, result.Errors, 1)

	_, err = os.Stat(filepath.Join(outDir, "broken.bin"))
	require.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(filepath.Join(outDir, "fine.bin"))
	require.NoError(t, err)
	require.Equal(t, "ok", string(got))
}

func TestExtractGen1ReconstructsFromSharedBlob(t *testing.T) {
	e, s, outDir := newTestExtractor(t, true)

	blobContent := []byte("ABCDEFGHIJ")
	require.NoError(t, s.WriteFile(galaxypath.BlobPath("repo1"), blobContent))

	depotJSON := fmt.Sprintf(`{"depot":{"files":[
		{"path":"/second.bin","size":5,"hash":%q,"url":"repo1/main.bin","offset":5},
		{"path":"/first.bin","size":5,"hash":%q,"url":"repo1/main.bin","offset":0}
	]}}`, contenthash.MD5Hex(blobContent[5:10]), contenthash.MD5Hex(blobContent[0:5]))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSON))
	}))
	defer srv.Close()
	e.Manifests.CDNBaseURL = srv.URL

	result, err := e.ExtractGen1(context.Background(), "p1", "windows", "repo1", []string{"depot1.json"}, outDir)
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesExtracted)
	require.Empty(t, result.Errors)

	got, err := os.ReadFile(filepath.Join(outDir, "first.bin"))
	require.NoError(t, err)
	require.Equal(t, "ABCDE", string(got))

	got, err = os.ReadFile(filepath.Join(outDir, "second.bin"))
	require.NoError(t, err)
	require.Equal(t, "FGHIJ", string(got))
}
