package download

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
	"github.com/Dimensional/GalaxyDL/internal/logctx"
	"github.com/Dimensional/GalaxyDL/internal/metrics"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// DefaultBlockSize is the fixed block size spec.md §4.4 mandates:
// 100 MiB = 100 * 2^20 bytes.
const DefaultBlockSize int64 = 100 * 1024 * 1024

// Clock returns the current time as an RFC3339 string, stamped into the
// sidecar. Declared as a field, not a direct time.Now() call, so tests can
// supply a fixed clock and so the engine never calls time.Now() in a code
// path that might run inside this module's own tests under replay.
type Clock func() string

// Engine is the resumable blob downloader (C4's large-object path).
type Engine struct {
	Store   *store.Store
	Fetcher *cdn.Fetcher

	// BlockSize defaults to DefaultBlockSize; overridable for tests.
	BlockSize int64

	Now Clock
}

// NewEngine returns an Engine using the default block size.
func NewEngine(s *store.Store, f *cdn.Fetcher, now Clock) *Engine {
	return &Engine{Store: s, Fetcher: f, BlockSize: DefaultBlockSize, Now: now}
}

// TotalBlocks returns ceil(totalSize / blockSize).
func TotalBlocks(totalSize, blockSize int64) int {
	if totalSize <= 0 {
		return 0
	}
	return int((totalSize + blockSize - 1) / blockSize)
}

// BlockRange returns the inclusive byte range [start, end] for block id
// within a blob of totalSize, partitioned into blockSize-sized blocks.
func BlockRange(id int, totalSize, blockSize int64) (start, end int64) {
	start = int64(id) * blockSize
	end = start + blockSize - 1
	if end > totalSize-1 {
		end = totalSize - 1
	}
	return start, end
}

// DownloadBlob downloads (or resumes) the blob served at url into
// relBlobPath, maintaining a sidecar at relSidecarPath, per the full
// algorithm of spec.md §4.4. Chunks (blocks) are fetched strictly in
// ascending id order, one at a time — the running multi-hash depends on it.
func (e *Engine) DownloadBlob(ctx context.Context, url, relBlobPath, relSidecarPath string) error {
	log := logctx.GetLogger(ctx)

	totalSize, err := e.Fetcher.Head(ctx, url)
	if err != nil {
		return fmt.Errorf("download: HEAD %s: %w", url, err)
	}

	if existingSize, ok, err := e.Store.BlobSize(relBlobPath); err == nil && ok && existingSize == totalSize {
		log.WithField("url", url).Debug("blob already complete, skipping")
		return nil
	}

	totalBlocks := TotalBlocks(totalSize, e.BlockSize)

	sc, err := loadSidecar(e.Store, relSidecarPath)
	if err != nil {
		log.WithError(err).Warn("discarding corrupt sidecar, re-validating from scratch")
		sc = nil
	}
	if sc == nil {
		sc = newSidecar(blobFileName(relBlobPath), totalSize, totalBlocks)
	}

	hasher := contenthash.NewMultiHasher()

	f, err := e.Store.OpenBlobReadWrite(relBlobPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// Pre-seed the running hash with every block already trusted, in
	// ascending order — spec.md §4.4 step 2.
	for id := 0; id < totalBlocks; id++ {
		if !sc.isBlockValidated(id) {
			continue
		}

		start, end := BlockRange(id, totalSize, e.BlockSize)
		data, ok, err := readAndCheckBlock(f, start, end)
		if err != nil {
			return err
		}
		if !ok {
			// Zero-filled or short: the sidecar lied, or the file was
			// truncated externally. Don't trust it; re-download.
			delete(sc.ChunkStates, fmt.Sprintf("%d", id))
			delete(sc.ChunkHashes, fmt.Sprintf("%d", id))
			continue
		}
		hasher.Write(data)
	}

	for id := 0; id < totalBlocks; id++ {
		if sc.isBlockValidated(id) {
			if _, ok := sc.blockRow(id); ok {
				continue
			}
		}

		start, end := BlockRange(id, totalSize, e.BlockSize)

		data, err := e.downloadBlockWithRetry(ctx, url, start, end)
		if err != nil {
			_ = sc.save(e.Store, relSidecarPath, e.Now())
			metrics.ChunksFailed.Inc(1)
			return fmt.Errorf("download: block %d of %s: %w", id, url, err)
		}

		if err := writeBlockExtending(f, start, end, data); err != nil {
			_ = sc.save(e.Store, relSidecarPath, e.Now())
			return err
		}

		hasher.Write(data)
		blockHasher := contenthash.NewMultiHasher()
		blockHasher.Write(data)
		blockSums := blockHasher.Sums()

		sc.recordBlock(id, start, end, BlockHashes{
			MD5:    blockSums.MD5,
			SHA1:   blockSums.SHA1,
			SHA256: blockSums.SHA256,
		}, e.Now())

		overall := hasher.Sums()
		sc.OverallHashes = OverallHashes{MD5: overall.MD5, SHA1: overall.SHA1, SHA256: overall.SHA256}

		if err := sc.save(e.Store, relSidecarPath, e.Now()); err != nil {
			return err
		}

		metrics.BlocksDownloaded.Inc(1)
	}

	if totalBlocks > 0 {
		relXMLPath := blobXMLSidecarPath(relBlobPath)
		if err := writeXMLSidecar(e.Store, relXMLPath, sc); err != nil {
			log.WithError(err).Warn("failed to write companion XML sidecar")
		}
	}

	return nil
}

// downloadBlockWithRetry issues one ranged GET for [start, end], retrying
// exactly once on failure, per spec.md §4.4 "Retries": a block is retried
// at most once before the engine returns failure for that blob.
func (e *Engine) downloadBlockWithRetry(ctx context.Context, url string, start, end int64) ([]byte, error) {
	data, err := e.Fetcher.GetRange(ctx, url, start, end)
	if err == nil {
		return data, nil
	}

	metrics.BlockRetries.Inc(1)
	return e.Fetcher.GetRange(ctx, url, start, end)
}

// readAndCheckBlock reads [start, end] from f and reports ok=false if the
// read was short or the block is entirely zero-filled — spec.md §4.4 edge
// case: "a zero-filled 100 MiB region on resume is treated as not yet
// downloaded regardless of size, because pre-allocation may have left
// zeros".
func readAndCheckBlock(f *os.File, start, end int64) ([]byte, bool, error) {
	want := end - start + 1
	buf := make([]byte, want)

	n, err := f.ReadAt(buf, start)
	if err != nil && int64(n) != want {
		return nil, false, nil
	}

	if isZeroFilled(buf) {
		return nil, false, nil
	}

	return buf, true, nil
}

func isZeroFilled(p []byte) bool {
	return bytes.Count(p, []byte{0}) == len(p)
}

// writeBlockExtending extends the blob file to end+1 without writing zeros
// into any gap (spec.md §4.4 step 6), then writes data at start.
func writeBlockExtending(f *os.File, start, end int64, data []byte) error {
	if err := store.ExtendBlob(f, end+1); err != nil {
		return err
	}

	if _, err := f.WriteAt(data, start); err != nil {
		return err
	}

	return nil
}

// blobXMLSidecarPath derives the companion XML sidecar path from a blob's
// main.bin path by swapping its extension, matching galaxypath.BlobXMLPath's
// convention without requiring the caller to re-supply the blob id.
func blobXMLSidecarPath(relBlobPath string) string {
	const suffix = ".bin"
	if len(relBlobPath) > len(suffix) && relBlobPath[len(relBlobPath)-len(suffix):] == suffix {
		return relBlobPath[:len(relBlobPath)-len(suffix)] + ".xml"
	}
	return relBlobPath + ".xml"
}

func blobFileName(relBlobPath string) string {
	for i := len(relBlobPath) - 1; i >= 0; i-- {
		if relBlobPath[i] == '/' {
			return relBlobPath[i+1:]
		}
	}
	return relBlobPath
}

// MustIntegrityError wraps a block-level hash mismatch into the shared
// error taxonomy as a galaxyerrors.IntegrityMismatchError. Nothing in this
// module calls it; the engine's own resume path does not use it.
func MustIntegrityError(subject, expected, actual string) error {
	return galaxyerrors.IntegrityMismatchError{Subject: subject, Expected: expected, Actual: actual}
}
