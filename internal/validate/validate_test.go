package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/manifest"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

func newTestValidator(t *testing.T) (*Validator, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "galaxy-validate-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s := store.New(dir)
	f := cdn.NewFetcher(http.DefaultClient)
	mc := manifest.NewCache(s, f)
	return New(s, mc), s
}

func galaxySuffix(h string) string {
	return h[0:2] + "/" + h[2:4] + "/" + h
}

func TestValidateGen2ReportsMissingAndCorrupted(t *testing.T) {
	v, s := newTestValidator(t)

	good := contenthash.MD5Hex([]byte("good"))
	corrupted := contenthash.MD5Hex([]byte("original"))
	missing := contenthash.MD5Hex([]byte("never-downloaded"))

	require.NoError(t, s.WriteChunk(galaxypath.ChunkPath(good), good, []byte("good")))
	require.NoError(t, s.WriteChunk(galaxypath.ChunkPath(corrupted), corrupted, []byte("original")))
	// Simulate on-disk corruption: overwrite after the fact with different bytes.
	require.NoError(t, os.WriteFile(s.FullPath(galaxypath.ChunkPath(corrupted)), []byte("tampered"), 0o644))

	depotJSON := fmt.Sprintf(`{"depot":{"items":[
		{"type":"DepotFile","path":"a","chunks":[{"compressedMd5":%q,"size":4,"compressedSize":4}]},
		{"type":"DepotFile","path":"b","chunks":[{"compressedMd5":%q,"size":8,"compressedSize":8}]},
		{"type":"DepotFile","path":"c","chunks":[{"compressedMd5":%q,"size":16,"compressedSize":16}]}
	]}}`, good, corrupted, missing)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSON))
	}))
	defer srv.Close()

	v.Manifests.CollectorBaseURL = srv.URL
	v.Manifests.CDNBaseURL = srv.URL

	report, err := v.ValidateGen2(context.Background(), []string{"d1"})
	require.NoError(t, err)
	require.Equal(t, 1, report.ChunksOK)
	require.Equal(t, 1, report.ChunksCorrupted)
	require.Equal(t, 1, report.ChunksMissing)
	require.False(t, report.OK())
}

func TestValidateGen1DetectsOverlapAndUndersizedBlob(t *testing.T) {
	v, s := newTestValidator(t)

	// File a: offset 0, size 5 ("hello"). File b: offset 3, size 5
	// ("lo---"), overlapping file a by two bytes.
	blobContent := []byte("hello---!!")
	relBlob := galaxypath.BlobPath("repo1")
	require.NoError(t, s.WriteFile(relBlob, blobContent))

	depotJSON := fmt.Sprintf(`{"depot":{"files":[
		{"path":"a","size":5,"hash":%q,"url":"repo1/main.bin","offset":0},
		{"path":"b","size":5,"hash":%q,"url":"repo1/main.bin","offset":3}
	]}}`, contenthash.MD5Hex(blobContent[0:5]), contenthash.MD5Hex(blobContent[3:8]))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSON))
	}))
	defer srv.Close()
	v.Manifests.CDNBaseURL = srv.URL

	report, err := v.ValidateGen1(context.Background(), "p1", "windows", "repo1", []string{"depot1.json"})
	require.NoError(t, err)
	require.Equal(t, 2, report.FilesOK)
	require.Len(t, report.Overlaps, 1)
	require.Equal(t, "a", report.Overlaps[0].FirstPath)
	require.Equal(t, "b", report.Overlaps[0].SecondPath)
	require.False(t, report.BlobUndersized)

	// Now claim a file extends past the end of the blob.
	depotJSONUndersized := fmt.Sprintf(`{"depot":{"files":[
		{"path":"a","size":5,"hash":%q,"url":"repo1/main.bin","offset":0},
		{"path":"z","size":100,"hash":"deadbeef","url":"repo1/main.bin","offset":5}
	]}}`, contenthash.MD5Hex(blobContent[0:5]))

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(depotJSONUndersized))
	}))
	defer srv2.Close()

	v2, _ := newTestValidator(t)
	require.NoError(t, v2.Store.WriteFile(relBlob, blobContent))
	v2.Manifests.CDNBaseURL = srv2.URL

	report2, err := v2.ValidateGen1(context.Background(), "p1", "windows", "repo1", []string{"depot2.json"})
	require.NoError(t, err)
	require.True(t, report2.BlobUndersized)
	require.Equal(t, 1, report2.FilesMismatched)
}
