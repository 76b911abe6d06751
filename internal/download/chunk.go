package download

import (
	"context"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/logctx"
	"github.com/Dimensional/GalaxyDL/internal/metrics"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// DownloadChunk fetches a single gen-2 content-addressed chunk from url and
// writes it under its content path, rejecting (and not writing) on MD5
// mismatch. This is the small-object path of spec.md §4.4: "on success the
// Store writes under the hash name; on MD5 mismatch the file is discarded
// and the download counted as failed."
func DownloadChunk(ctx context.Context, s *store.Store, f *cdn.Fetcher, url, compressedMD5 string) error {
	relPath := galaxypath.ChunkPath(compressedMD5)

	if ok, err := s.ValidChunk(relPath, compressedMD5); err == nil && ok {
		metrics.DedupHits.Inc(1)
		return nil
	}

	data, err := f.GetSmall(ctx, url)
	if err != nil {
		metrics.ChunksFailed.Inc(1)
		return err
	}

	if got := contenthash.MD5Hex(data); got != compressedMD5 {
		metrics.ChunksFailed.Inc(1)
		logctx.GetLogger(ctx).WithField("url", url).WithField("expected", compressedMD5).WithField("actual", got).
			Warn("chunk integrity mismatch, discarding")
		return s.WriteChunk(relPath, compressedMD5, data) // surfaces the IntegrityMismatchError
	}

	if err := s.WriteChunk(relPath, compressedMD5, data); err != nil {
		metrics.ChunksFailed.Inc(1)
		return err
	}

	metrics.ChunksDownloaded.Inc(1)
	return nil
}
