package manifest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/stretchr/testify/require"

	"github.com/Dimensional/GalaxyDL/internal/store"
)

func newTestCache(t *testing.T, handler http.Handler) (*Cache, *httptest.Server) {
	t.Helper()
	dir, err := os.MkdirTemp("", "galaxy-manifest-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := store.New(dir)
	f := cdn.NewFetcher(srv.Client())
	c := NewCache(s, f)
	c.CDNBaseURL = srv.URL
	c.CollectorBaseURL = srv.URL
	return c, srv
}

func TestDepotEntryUnmarshalDistinguishesRedistributable(t *testing.T) {
	var withManifest DepotEntry
	require.NoError(t, json.Unmarshal([]byte(`{"manifest":"abc123"}`), &withManifest))
	require.NotNil(t, withManifest.Manifest)
	require.Equal(t, "abc123", *withManifest.Manifest)
	require.False(t, withManifest.Redistributable)

	var redist DepotEntry
	require.NoError(t, json.Unmarshal([]byte(`{"redist":"DirectX"}`), &redist))
	require.Nil(t, redist.Manifest)
	require.True(t, redist.Redistributable)
}

func TestDepotManifestV2FilesSkipsNonFileEntries(t *testing.T) {
	raw := []byte(`{"depot":{"items":[
		{"type":"DepotFile","path":"a.bin","chunks":[{"compressedMd5":"h1","md5":"m1","size":10,"compressedSize":5}]},
		{"type":"DepotDirectory","path":"dir"}
	]}}`)

	var m DepotManifestV2
	require.NoError(t, json.Unmarshal(raw, &m))

	files := m.Files()
	require.Len(t, files, 1)
	require.Equal(t, "a.bin", files[0].Path)
	require.Equal(t, "h1", files[0].Chunks[0].CompressedMD5)
	require.Equal(t, "m1", files[0].Chunks[0].MD5)
}

func TestGen1ManifestFilesStripsLeadingSlash(t *testing.T) {
	raw := []byte(`{"depot":{"files":[{"path":"/bin/game.exe","size":100,"hash":"abc","url":"1/main.bin","offset":0}]}}`)

	var m DepotManifestV1
	require.NoError(t, json.Unmarshal(raw, &m))

	files := m.Files()
	require.Len(t, files, 1)
	require.Equal(t, "bin/game.exe", files[0].Path)
}

func TestBuildManifestManifestIDsGen2SeparatesOffline(t *testing.T) {
	bm := BuildManifest{
		Gen2: &BuildManifestV2{
			Depots: []DepotEntry{
				{Manifest: strPtr("d1")},
				{Redistributable: true},
				{Manifest: strPtr("d2")},
			},
			OfflineDepot: &OfflineDepotEntry{Manifest: "offline1"},
		},
	}
	bm.Generation = 2

	ids, offline := bm.ManifestIDs()
	require.Equal(t, []string{"d1", "d2"}, ids)
	require.NotNil(t, offline)
	require.Equal(t, "offline1", *offline)
}

func TestFetchDepotManifestV2TriesEndpointsInOrder(t *testing.T) {
	var hitPaths []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitPaths = append(hitPaths, r.URL.Path)
		if len(hitPaths) < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"depot":{"items":[]}}`))
	})

	c, _ := newTestCache(t, handler)

	m, err := c.FetchDepotManifestV2(context.Background(), "aabbccdd")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Len(t, hitPaths, 2)
	require.Contains(t, hitPaths[0], "/manifests/depots/aa/bb/aabbccdd")
	require.Contains(t, hitPaths[1], "/content-system/v2/meta/aa/bb/aabbccdd")
}

func TestFetchDepotManifestV2UsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"depot":{"items":[]}}`))
	})

	c, _ := newTestCache(t, handler)

	_, err := c.FetchDepotManifestV2(context.Background(), "11223344")
	require.NoError(t, err)
	_, err = c.FetchDepotManifestV2(context.Background(), "11223344")
	require.NoError(t, err)

	require.Equal(t, 1, calls)
}

func strPtr(s string) *string { return &s }
