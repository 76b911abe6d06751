package store

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// writeAtomic writes data to relPath by first writing to a uuid-suffixed
// temp file in the same directory, fsyncing, then renaming over the final
// path — never leaving a partially-written file visible at relPath.
// Grounded on the teacher's filesystem driver PutContent: "Write to a
// temporary file to prevent partial writes" then atomic rename. The temp
// name carries a random google/uuid string (uuid.NewString), so concurrent
// writers racing for the same hash-named target never collide on their
// temp file.
func (s *Store) writeAtomic(relPath string, data []byte) error {
	fullPath := s.FullPath(relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}

	tempPath := fullPath + "." + uuid.NewString() + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return err
	}

	return nil
}
