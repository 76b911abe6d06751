package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Dimensional/GalaxyDL/internal/buildindex"
	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/config"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/download"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/logctx"
	"github.com/Dimensional/GalaxyDL/internal/manifest"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// Archiver wires together the manifest cache, download engine, and a
// secure-link minter to implement the four entry points of spec.md §4.5.
type Archiver struct {
	Store      *store.Store
	Manifests  *manifest.Cache
	Fetcher    *cdn.Fetcher
	Engine     *download.Engine
	Pool       *download.Pool
	Minter     cdn.LinkMinter
	Config     *config.Configuration
	BuildIndex *buildindex.Index

	ContentSystemBaseURL string
}

// New returns an Archiver with the default content-system hostname. The
// build index is loaded eagerly from s, matching spec.md §4.8's "loaded
// once at startup, updated at phase boundaries" lifecycle.
func New(s *store.Store, mc *manifest.Cache, f *cdn.Fetcher, e *download.Engine, minter cdn.LinkMinter, cfg *config.Configuration) (*Archiver, error) {
	idx, err := buildindex.Load(s)
	if err != nil {
		return nil, fmt.Errorf("archiver: load build index: %w", err)
	}

	return &Archiver{
		Store:                s,
		Manifests:            mc,
		Fetcher:              f,
		Engine:               e,
		Pool:                 download.NewPool(cfg.Download.MaxWorkers),
		Minter:               minter,
		Config:               cfg,
		BuildIndex:           idx,
		ContentSystemBaseURL: DefaultContentSystemBaseURL,
	}, nil
}

// ArchiveBuild searches for buildID's source URL across both generations
// (preferring generation-1 when both exist, per spec.md §4.5), fetches and
// caches the build manifest, then recurses into its depots and content.
func (a *Archiver) ArchiveBuild(ctx context.Context, productID, buildID string, platforms []string) (*Result, error) {
	result := &Result{Product: productID}

	for _, platform := range platforms {
		build, generation, err := FindBuild(ctx, a.Fetcher, a.ContentSystemBaseURL, productID, platform, buildID)
		if err != nil {
			result.addError("platform %s: %v", platform, err)
			continue
		}

		if err := a.archiveFromBuildLink(ctx, productID, platform, build, generation, false, result); err != nil {
			result.addError("platform %s: %v", platform, err)
		}
		if err := a.BuildIndex.Save(time.Now().Unix()); err != nil {
			result.addError("platform %s: save build index: %v", platform, err)
		}
	}

	return result, nil
}

// ArchiveManifestsOnly performs the identical walk as ArchiveBuild but
// stops before any chunk/blob content download (spec.md §4.5).
func (a *Archiver) ArchiveManifestsOnly(ctx context.Context, productID, buildID string, platforms []string) (*Result, error) {
	result := &Result{Product: productID}

	for _, platform := range platforms {
		build, generation, err := FindBuild(ctx, a.Fetcher, a.ContentSystemBaseURL, productID, platform, buildID)
		if err != nil {
			result.addError("platform %s: %v", platform, err)
			continue
		}

		if err := a.archiveFromBuildLink(ctx, productID, platform, build, generation, true, result); err != nil {
			result.addError("platform %s: %v", platform, err)
		}
		if err := a.BuildIndex.Save(time.Now().Unix()); err != nil {
			result.addError("platform %s: save build index: %v", platform, err)
		}
	}

	return result, nil
}

// ArchiveRepository synthesizes the source URL directly from repositoryID
// (no build listing lookup needed) and recurses exactly as ArchiveBuild
// does, per spec.md §4.5.
func (a *Archiver) ArchiveRepository(ctx context.Context, productID, repositoryID string, generation galaxypath.Generation, platforms []string) (*Result, error) {
	result := &Result{Product: productID, Generation: generation}

	for _, platform := range platforms {
		url := fmt.Sprintf("%s/products/%s/os/%s/builds/%s/repository", a.ContentSystemBaseURL, productID, platform, repositoryID)
		if generation == galaxypath.Gen2 {
			url += "?generation=2"
		}

		bm, err := a.fetchBuildManifest(ctx, generation, url)
		if err != nil {
			result.addError("platform %s: %v", platform, err)
			continue
		}

		if err := a.archiveManifests(ctx, productID, platform, repositoryID, bm, false, result); err != nil {
			result.addError("platform %s: %v", platform, err)
		}
		a.recordBuild(productID, platform, repositoryID, repositoryID, url, bm, "", nil)
		if err := a.BuildIndex.Save(time.Now().Unix()); err != nil {
			result.addError("platform %s: save build index: %v", platform, err)
		}
	}

	return result, nil
}

func (a *Archiver) archiveFromBuildLink(ctx context.Context, productID, platform string, build *BuildSummary, generation int, manifestsOnly bool, result *Result) error {
	gen := galaxypath.Gen1
	if generation == 2 {
		gen = galaxypath.Gen2
	}
	result.Generation = gen

	bm, err := a.fetchBuildManifest(ctx, gen, build.Link)
	if err != nil {
		return err
	}

	if err := a.archiveManifests(ctx, productID, platform, build.LegacyBuildID, bm, manifestsOnly, result); err != nil {
		return err
	}

	a.recordBuild(productID, platform, build.BuildID, build.LegacyBuildID, build.Link, bm, build.VersionName, build.Tags)
	return nil
}

// recordBuild upserts this build's Build Index entry (spec.md §4.8), keyed
// by (product_id, build_id, platform). build_hash identifies the decoded
// manifest's content; computed here rather than from pre-decompression
// bytes, since the manifest cache's public surface only returns decoded
// manifests (see DESIGN.md).
func (a *Archiver) recordBuild(productID, platform, buildID, repositoryID, sourceURL string, bm *manifest.BuildManifest, versionLabel string, tags []string) {
	canonical, err := json.Marshal(bm)
	if err != nil {
		return
	}

	a.BuildIndex.Upsert(buildindex.Entry{
		ProductID:    productID,
		BuildID:      buildID,
		BuildHash:    contenthash.SHA256Hex(canonical),
		Platform:     platform,
		Generation:   int(bm.Generation),
		ArchivePath:  "",
		SourceURL:    sourceURL,
		RepositoryID: repositoryID,
		VersionLabel: versionLabel,
		Tags:         tags,
	})
}

func (a *Archiver) fetchBuildManifest(ctx context.Context, generation galaxypath.Generation, sourceURL string) (*manifest.BuildManifest, error) {
	if generation == galaxypath.Gen1 {
		return a.Manifests.FetchBuildManifestV1(ctx, sourceURL)
	}
	return a.Manifests.FetchBuildManifestV2(ctx, sourceURL)
}

// archiveManifests walks a build manifest's depots, fetching every
// referenced depot manifest and (unless manifestsOnly) downloading its
// content. Offline depots are skipped by policy unless
// Config.Archiver.IncludeOfflineDepots is set (spec.md §9 Open Question 1).
func (a *Archiver) archiveManifests(ctx context.Context, productID, platform, repositoryID string, bm *manifest.BuildManifest, manifestsOnly bool, result *Result) error {
	log := logctx.GetLogger(ctx).WithField("product_id", productID).WithField("platform", platform)

	ids, offline := bm.ManifestIDs()
	if offline != nil {
		if a.Config.Archiver.IncludeOfflineDepots {
			ids = append(ids, *offline)
		} else {
			log.WithField("depot_id", *offline).Debug("skipping offline depot by policy")
		}
	}

	switch bm.Generation {
	case galaxypath.Gen2:
		return a.archiveGen2Depots(ctx, productID, ids, manifestsOnly, result)
	case galaxypath.Gen1:
		return a.archiveGen1Depots(ctx, productID, platform, repositoryID, ids, manifestsOnly, result)
	default:
		return fmt.Errorf("archiver: unknown generation on build manifest")
	}
}

func (a *Archiver) archiveGen2Depots(ctx context.Context, productID string, manifestIDs []string, manifestsOnly bool, result *Result) error {
	for _, id := range manifestIDs {
		dm, err := a.Manifests.FetchDepotManifestV2(ctx, id)
		if err != nil {
			result.addError("depot manifest %s: %v", id, err)
			continue
		}
		result.DepotManifestsFetched++

		if manifestsOnly {
			continue
		}

		if err := a.downloadGen2Chunks(ctx, productID, dm, result); err != nil {
			result.addError("depot %s chunks: %v", id, err)
		}
	}

	return nil
}

// downloadGen2Chunks downloads every chunk referenced by dm that is
// missing or corrupted in the store, bounded by the shared worker pool.
// Deduplication across depots is automatic: a chunk already valid on disk
// (from this or an earlier depot) is found by classifyChunk, counted as
// skipped, and never fetched — no in-memory seen-set is needed (spec.md §9
// design note: make the filesystem the single source of truth).
func (a *Archiver) downloadGen2Chunks(ctx context.Context, productID string, dm *manifest.DepotManifestV2, result *Result) error {
	minted, err := a.Minter.MintLink(ctx, fmt.Sprintf("/content-system/v2/store/%s/", productID), productID, 2)
	if err != nil {
		return fmt.Errorf("archiver: mint chunk link: %w", err)
	}

	var mu sync.Mutex
	var tasks []func(ctx context.Context) error
	for _, file := range dm.Files() {
		for _, chunkRef := range file.Chunks {
			chunkRef := chunkRef
			if a.classifyChunk(chunkRef.CompressedMD5) == chunkOK {
				result.ChunksSkipped++
				continue
			}
			tasks = append(tasks, func(ctx context.Context) error {
				url, err := minted.Resolve(galaxyPathSuffix(chunkRef.CompressedMD5))
				if err != nil {
					result.addError("chunk %s: %v", chunkRef.CompressedMD5, err)
					return nil
				}

				if err := download.DownloadChunk(ctx, a.Store, a.Fetcher, url, chunkRef.CompressedMD5); err != nil {
					mu.Lock()
					result.ChunksFailed++
					result.addError("chunk %s: %v", chunkRef.CompressedMD5, err)
					mu.Unlock()
					return nil
				}
				mu.Lock()
				result.ChunksDownloaded++
				mu.Unlock()
				return nil
			})
		}
	}

	if err := a.Pool.Run(ctx, tasks); err != nil {
		return err
	}

	return nil
}

func (a *Archiver) archiveGen1Depots(ctx context.Context, productID, platform, repositoryID string, manifestIDs []string, manifestsOnly bool, result *Result) error {
	blobURLsSeen := map[string]bool{}

	for _, filename := range manifestIDs {
		dm, err := a.Manifests.FetchDepotManifestV1(ctx, productID, platform, repositoryID, filename)
		if err != nil {
			result.addError("depot manifest %s: %v", filename, err)
			continue
		}
		result.DepotManifestsFetched++

		if manifestsOnly {
			continue
		}

		for _, file := range dm.Files() {
			if blobURLsSeen[file.URL] {
				continue
			}
			blobURLsSeen[file.URL] = true
		}
	}

	// Gen-1 blob deduplication: the union of referenced blob URLs across
	// all just-fetched depots is downloaded once each (spec.md §4.5).
	for blobURL := range blobURLsSeen {
		if err := a.downloadGen1Blob(ctx, productID, platform, repositoryID, blobURL, result); err != nil {
			result.addError("blob %s: %v", blobURL, err)
		}
	}

	return nil
}

func (a *Archiver) downloadGen1Blob(ctx context.Context, productID, platform, repositoryID, blobURL string, result *Result) error {
	minted, err := a.Minter.MintLink(ctx, fmt.Sprintf("/%s/%s/", platform, repositoryID), productID, 1)
	if err != nil {
		return fmt.Errorf("archiver: mint blob link: %w", err)
	}

	url, err := minted.Resolve("main.bin")
	if err != nil {
		return err
	}

	relBlobPath := galaxypath.BlobPath(repositoryID)
	relSidecarPath := galaxypath.BlobSidecarPath(repositoryID)

	if err := a.Engine.DownloadBlob(ctx, url, relBlobPath, relSidecarPath); err != nil {
		result.BlobsSkipped++
		return err
	}

	result.BlobsDownloaded++
	return nil
}

// galaxyPathSuffix renders the two-level hex fan-out suffix used in CDN
// store paths, identical to dl_utils.galaxy_path in the source.
func galaxyPathSuffix(hexHash string) string {
	if len(hexHash) < 4 {
		return hexHash
	}
	return hexHash[0:2] + "/" + hexHash[2:4] + "/" + hexHash
}
