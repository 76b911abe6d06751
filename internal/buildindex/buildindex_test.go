package buildindex

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "galaxy-buildindex-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return store.New(dir)
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	s := newTestStore(t)

	idx, err := Load(s)
	require.NoError(t, err)
	require.Empty(t, idx.All())

	idx.Upsert(Entry{
		ProductID:    "p1",
		BuildID:      "b1",
		BuildHash:    "h1",
		Platform:     "windows",
		Generation:   2,
		ArchivePath:  "builds/v2/x",
		SourceURL:    "https://example/x",
		RepositoryID: "r1",
		VersionLabel: "1.0.0",
		Tags:         []string{"stable"},
	})
	require.NoError(t, idx.Save(1000))

	reloaded, err := Load(s)
	require.NoError(t, err)
	all := reloaded.All()
	require.Len(t, all, 1)
	require.Equal(t, "p1", all[0].ProductID)
	require.Equal(t, "h1", all[0].BuildHash)

	e, ok := reloaded.Get("p1", "b1", "windows")
	require.True(t, ok)
	require.Equal(t, []string{"stable"}, e.Tags)
}

func TestLoadMapsLegacyKeys(t *testing.T) {
	s := newTestStore(t)

	legacy := `{"builds":[
		{"product_id":"p1","build_id":"b1","platform":"windows","generation":1,
		 "archive_path":"builds/v1/x","source_url":"https://example/x",
		 "repository_id":"r1","manifest_hash":"legacy-hash",
		 "chunks_referenced":["a","b"]}
	],"last_updated":500}`

	require.NoError(t, s.WriteFile(galaxypath.BuildIndexPath(), []byte(legacy)))

	idx, err := Load(s)
	require.NoError(t, err)

	e, ok := idx.Get("p1", "b1", "windows")
	require.True(t, ok)
	require.Equal(t, "legacy-hash", e.BuildHash)
}

func TestSaveAccumulatesEntriesAcrossPhaseBoundaries(t *testing.T) {
	s := newTestStore(t)
	idx, err := Load(s)
	require.NoError(t, err)

	idx.Upsert(Entry{ProductID: "p1", BuildID: "b1", Platform: "windows", BuildHash: "h1"})
	require.NoError(t, idx.Save(1))

	idx.Upsert(Entry{ProductID: "p1", BuildID: "b2", Platform: "windows", BuildHash: "h2"})
	require.NoError(t, idx.Save(2))

	reloaded, err := Load(s)
	require.NoError(t, err)
	require.Len(t, reloaded.All(), 2)
}
