package store

import (
	"io"
	"os"
	"path/filepath"
)

// OpenBlobReadWrite opens (creating if necessary) the blob file at relPath
// for random-access read/write, used by the download engine to seek and
// write individual 100 MiB blocks in place (spec.md §4.4).
func (s *Store) OpenBlobReadWrite(relPath string) (*os.File, error) {
	fullPath := s.FullPath(relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o777); err != nil {
		return nil, err
	}

	return os.OpenFile(fullPath, os.O_RDWR|os.O_CREATE, 0o644)
}

// OpenBlobRead opens the blob file at relPath for reading only, used by the
// validator and extractor, which only ever seek-and-read.
func (s *Store) OpenBlobRead(relPath string) (*os.File, error) {
	return os.Open(s.FullPath(relPath))
}

// BlobSize returns the current on-disk size of the blob at relPath, or 0
// and ok=false if it does not exist yet.
func (s *Store) BlobSize(relPath string) (size int64, ok bool, err error) {
	fi, err := s.Stat(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return fi.Size(), true, nil
}

// ExtendBlob grows the blob file to at least newSize bytes without writing
// zeros into the gap between the current end of file and newSize-1: it
// seeks to newSize-1 and writes a single zero byte, which on most
// filesystems creates a sparse hole rather than materializing zero pages.
// This mirrors spec.md §4.4 step 6's "extend the file... without writing
// zeros into gaps not yet downloaded" policy, so a zero-filled region on
// resume is never mistaken for a previously-downloaded block.
func ExtendBlob(f *os.File, newSize int64) error {
	current, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	if current >= newSize {
		return nil
	}

	if _, err := f.WriteAt([]byte{0}, newSize-1); err != nil {
		return err
	}

	return nil
}
