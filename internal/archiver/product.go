package archiver

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Dimensional/GalaxyDL/internal/buildindex"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
)

// ArchiveProduct walks every build currently listed for productID across
// the given platforms (both generations) and archives each one, folding
// per-build results into a single aggregate. Grounded on archiver.py's
// archive_game_manifests, which iterates a product's build listing and
// calls archive_build_manifests per discovered build id rather than
// requiring a caller to already know build ids up front.
func (a *Archiver) ArchiveProduct(ctx context.Context, productID string, platforms []string) (*Result, error) {
	aggregate := &Result{Product: productID}

	for _, platform := range platforms {
		buildIDs := map[string]bool{}
		for _, generation := range []int{1, 2} {
			builds, err := ListBuilds(ctx, a.Fetcher, a.ContentSystemBaseURL, productID, platform, generation)
			if err != nil {
				aggregate.addError("platform %s generation %d: list builds: %v", platform, generation, err)
				continue
			}
			for _, b := range builds {
				buildIDs[b.BuildID] = true
			}
		}

		for buildID := range buildIDs {
			result, err := a.ArchiveBuild(ctx, productID, buildID, []string{platform})
			if err != nil {
				aggregate.addError("build %s: %v", buildID, err)
				continue
			}
			mergeResult(aggregate, result)
		}
	}

	return aggregate, nil
}

func mergeResult(into, from *Result) {
	into.DepotManifestsFetched += from.DepotManifestsFetched
	into.ChunksDownloaded += from.ChunksDownloaded
	into.ChunksSkipped += from.ChunksSkipped
	into.ChunksFailed += from.ChunksFailed
	into.BlobsDownloaded += from.BlobsDownloaded
	into.BlobsSkipped += from.BlobsSkipped
	into.Errors = append(into.Errors, from.Errors...)
}

// SyncBuildMetadata re-fetches the build listing for productID/platforms and
// backfills VersionLabel/Tags onto existing Build Index entries, without
// touching content. This is the one documented mutation path onto an
// otherwise-immutable Build Record (spec.md §3), grounded on archiver.py's
// sync_build_metadata.
func (a *Archiver) SyncBuildMetadata(ctx context.Context, productID string, platforms []string) error {
	changed := false

	for _, platform := range platforms {
		for _, generation := range []int{1, 2} {
			builds, err := ListBuilds(ctx, a.Fetcher, a.ContentSystemBaseURL, productID, platform, generation)
			if err != nil {
				continue
			}

			for _, b := range builds {
				buildID := b.BuildID
				if buildID == "" {
					buildID = b.LegacyBuildID
				}

				entry, ok := a.BuildIndex.Get(productID, buildID, platform)
				if !ok {
					continue
				}

				entry.VersionLabel = b.VersionName
				entry.Tags = b.Tags
				a.BuildIndex.Upsert(entry)
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}
	return a.BuildIndex.Save(time.Now().Unix())
}

// Lister implements the Supplemented `list` surface: build listing straight
// from the Build Index, plus on-disk chunk/blob/manifest counts derived by
// walking the archive root rather than tracked in any in-memory set,
// matching spec.md §9's filesystem-as-truth design note.
type Lister struct {
	Store      interface{ Root() string }
	BuildIndex *buildindex.Index
}

// NewLister returns a Lister over idx and the archive rooted at root.
func NewLister(root interface{ Root() string }, idx *buildindex.Index) *Lister {
	return &Lister{Store: root, BuildIndex: idx}
}

// ListBuilds returns every Build Record, sorted by product/build/platform.
func (l *Lister) ListBuilds() []buildindex.Entry {
	return l.BuildIndex.All()
}

// CountChunks walks the chunks/ fan-out tree and counts regular files.
func (l *Lister) CountChunks() (int, error) {
	return countFiles(filepath.Join(l.Store.Root(), "chunks"))
}

// CountManifests walks the manifests/ tree (both generations) and counts
// regular files.
func (l *Lister) CountManifests() (int, error) {
	return countFiles(filepath.Join(l.Store.Root(), "manifests"))
}

// CountBlobs counts blob directories under blobs/, one per archived gen-1
// repository/build.
func (l *Lister) CountBlobs() (int, error) {
	dir := filepath.Join(l.Store.Root(), "blobs")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() {
			count++
		}
	}
	return count, nil
}

func countFiles(root string) (int, error) {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return count, err
}

// BuildIndexPath is exposed for the CLI's --detailed listing to report
// where the document lives without reaching into internal/galaxypath
// directly from cmd/galaxyarchive.
func BuildIndexPath() string {
	return galaxypath.BuildIndexPath()
}
