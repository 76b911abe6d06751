package archiver

import (
	"context"
	"fmt"

	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/download"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
)

// VerifyAndDownloadChunksForRepository implements spec.md §4.5's fourth
// entry point: after manifests are cached, scan every gen-2 depot manifest
// referenced by depotManifestIDs, union all chunk references
// (deduplication across depots is automatic, since each hash is only ever
// downloaded once regardless of how many depots name it), classify each
// chunk as ok/missing/corrupted against the store, and download the
// missing/corrupted subset. It is a standalone repair operation (scenario
// G); the `validate` CLI command only reports and does not call it.
func (a *Archiver) VerifyAndDownloadChunksForRepository(ctx context.Context, productID string, depotManifestIDs []string) (*Result, error) {
	result := &Result{Product: productID, Generation: galaxypath.Gen2}

	type chunkWant struct {
		compressedMD5 string
	}

	seen := map[string]bool{}
	var toDownload []chunkWant
	var ok, missing, corrupted int

	for _, id := range depotManifestIDs {
		dm, err := a.Manifests.FetchDepotManifestV2(ctx, id)
		if err != nil {
			result.addError("depot manifest %s: %v", id, err)
			continue
		}

		for _, file := range dm.Files() {
			for _, chunkRef := range file.Chunks {
				if seen[chunkRef.CompressedMD5] {
					continue
				}
				seen[chunkRef.CompressedMD5] = true

				status := a.classifyChunk(chunkRef.CompressedMD5)
				switch status {
				case chunkOK:
					ok++
				case chunkMissing:
					missing++
					toDownload = append(toDownload, chunkWant{chunkRef.CompressedMD5})
				case chunkCorrupted:
					corrupted++
					toDownload = append(toDownload, chunkWant{chunkRef.CompressedMD5})
				}
			}
		}
	}

	if len(toDownload) > 0 {
		minted, err := a.Minter.MintLink(ctx, fmt.Sprintf("/content-system/v2/store/%s/", productID), productID, 2)
		if err != nil {
			return result, fmt.Errorf("archiver: mint chunk link: %w", err)
		}

		tasks := make([]func(ctx context.Context) error, 0, len(toDownload))
		for _, want := range toDownload {
			want := want
			tasks = append(tasks, func(ctx context.Context) error {
				url, err := minted.Resolve(galaxyPathSuffix(want.compressedMD5))
				if err != nil {
					result.addError("chunk %s: %v", want.compressedMD5, err)
					return nil
				}
				if err := download.DownloadChunk(ctx, a.Store, a.Fetcher, url, want.compressedMD5); err != nil {
					result.ChunksFailed++
					result.addError("chunk %s: %v", want.compressedMD5, err)
					return nil
				}
				result.ChunksDownloaded++
				return nil
			})
		}

		if err := a.Pool.Run(ctx, tasks); err != nil {
			return result, err
		}
	}

	result.ChunksSkipped = ok
	return result, nil
}

type chunkStatus int

const (
	chunkOK chunkStatus = iota
	chunkMissing
	chunkCorrupted
)

// classifyChunk reports whether a chunk is present and valid, missing, or
// present-but-corrupted, per spec.md §4.6's validator classification rule.
func (a *Archiver) classifyChunk(compressedMD5 string) chunkStatus {
	relPath := galaxypath.ChunkPath(compressedMD5)
	if !a.Store.Exists(relPath) {
		return chunkMissing
	}

	data, err := a.Store.ReadFile(relPath)
	if err != nil {
		return chunkMissing
	}

	if contenthash.MD5Hex(data) != compressedMD5 {
		return chunkCorrupted
	}

	return chunkOK
}
