// Package store implements the Content Store (C2): a file-system-backed,
// content-addressed repository for chunks, blobs, and manifests, with
// atomic writes and filesystem-as-truth semantics (spec.md §4.2, §9 design
// note "make the filesystem the single source of truth for chunk/blob/
// depot-manifest presence").
//
// Grounded on distribution's registry/storage/driver/filesystem/driver.go
// (tmp-file-then-rename atomic writer, fullPath/Stat/Reader shape) and
// registry/storage/blobstore.go (exists/get/put over a content digest).
// The teacher's pluggable storagedriver.StorageDriver factory (supporting a
// dozen cloud backends) is collapsed to one concrete type here: this
// domain has exactly one backend, the local archive root (see DESIGN.md).
package store

import (
	"os"
	"path/filepath"

	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
	"github.com/Dimensional/GalaxyDL/internal/metrics"
)

// Store is a file-system-backed content-addressed repository rooted at a
// single archive directory.
type Store struct {
	root string
}

// New returns a Store rooted at root. The directory is not created here;
// it is created lazily on first write, matching spec.md §4.2 "create
// directories lazily".
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// FullPath joins relPath onto the archive root.
func (s *Store) FullPath(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

// Exists reports whether relPath exists, regardless of content validity.
func (s *Store) Exists(relPath string) bool {
	_, err := os.Stat(s.FullPath(relPath))
	return err == nil
}

// Stat returns the os.FileInfo for relPath.
func (s *Store) Stat(relPath string) (os.FileInfo, error) {
	return os.Stat(s.FullPath(relPath))
}

// ReadFile reads the full contents of relPath.
func (s *Store) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(s.FullPath(relPath))
}

// ChunkExists reports whether a chunk file is present at its content path,
// without verifying its hash (a cheap existence probe; callers needing a
// trust decision should use ValidChunk).
func (s *Store) ChunkExists(relPath string) bool {
	return s.Exists(relPath)
}

// ValidChunk reports whether the file at relPath exists and its MD5 equals
// hexHash, per spec.md §4.2's chunk read path: "exists(path(h)) &&
// MD5(file) == h".
func (s *Store) ValidChunk(relPath, hexHash string) (bool, error) {
	data, err := os.ReadFile(s.FullPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return contenthash.MD5Hex(data) == hexHash, nil
}

// WriteChunk atomically writes data to relPath after verifying its MD5
// equals hexHash, rejecting (and not writing) on mismatch, per spec.md
// §4.2 "compute MD5(bytes) on every chunk write and reject if mismatched".
// If the destination already holds valid content, the write is skipped and
// a dedup-hit is recorded instead (spec.md §8 invariant 4, idempotent
// archive).
func (s *Store) WriteChunk(relPath, hexHash string, data []byte) error {
	if got := contenthash.MD5Hex(data); got != hexHash {
		return galaxyerrors.IntegrityMismatchError{Subject: relPath, Expected: hexHash, Actual: got}
	}

	if ok, err := s.ValidChunk(relPath, hexHash); err == nil && ok {
		metrics.DedupHits.Inc(1)
		return nil
	}

	if err := s.writeAtomic(relPath, data); err != nil {
		return err
	}

	metrics.BytesWritten.Inc(float64(len(data)))
	return nil
}

// WriteManifestIfAbsent writes data to relPath only if nothing is present
// there yet, matching spec.md §4.3 "the cache never overwrites existing
// manifest bytes". Returns written=false if the path was already occupied.
func (s *Store) WriteManifestIfAbsent(relPath string, data []byte) (written bool, err error) {
	if s.Exists(relPath) {
		return false, nil
	}

	if err := s.writeAtomic(relPath, data); err != nil {
		return false, err
	}

	metrics.BytesWritten.Inc(float64(len(data)))
	return true, nil
}

// WriteFile atomically writes arbitrary bytes (e.g. the Build Index, a
// prettified debug sidecar) to relPath, overwriting any existing content.
func (s *Store) WriteFile(relPath string, data []byte) error {
	return s.writeAtomic(relPath, data)
}
