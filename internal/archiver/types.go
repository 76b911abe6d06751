// Package archiver implements the Archiver Orchestrator (C5): the entry
// points that walk a build's manifests and depots, downloading whatever
// content is missing from the store.
//
// Grounded on original_source/GalaxyDL's gogdl/archiver.py — specifically
// GOGGalaxyArchiver's archive_build_manifests / archive_repository_build_manifests
// / verify_and_download_chunks_for_repository family of methods, adapted
// into the tagged-variant, filesystem-as-truth model spec.md §9 calls for
// (no global archived_chunks/archived_blobs in-memory sets).
package archiver

import (
	"fmt"

	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
)

// BuildSummary is one `items[*]` entry in a content-system builds listing
// response, grounded on archiver.py's archive_game_manifests usage of
// `build['build_id']`, `build['link']`, `build.get('version_name', '')`,
// `build.get('tags', [])`, `build.get('legacy_build_id')`.
type BuildSummary struct {
	BuildID       string   `json:"build_id"`
	Link          string   `json:"link"`
	VersionName   string   `json:"version_name"`
	Tags          []string `json:"tags"`
	LegacyBuildID string   `json:"legacy_build_id"`
}

type buildListResponse struct {
	Items []BuildSummary `json:"items"`
}

// Result aggregates the outcome of an archive operation: counts and
// non-fatal errors, matching spec.md §4.5/§7's "surface aggregated counts
// to the caller; errors... logged, counted... not fatal to the containing
// batch" policy.
type Result struct {
	Product    string
	Generation galaxypath.Generation

	DepotManifestsFetched int
	ChunksDownloaded      int
	ChunksSkipped         int
	ChunksFailed          int
	BlobsDownloaded       int
	BlobsSkipped          int

	Errors []string
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
