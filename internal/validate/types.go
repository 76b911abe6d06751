// Package validate implements the Validator (C6): bottom-up integrity
// checks against an already-populated store, for both manifest generations.
// The validator never mutates the store; it only reports.
//
// Grounded on original_source/GalaxyDL's gogdl/archiver.py validation
// helpers (the chunk-existence/hash scan for gen-2, and the
// sort-by-offset/single-pass blob scan for gen-1).
package validate

import "fmt"

// Overlap records two adjacent gen-1 file records whose byte ranges within
// the shared blob overlap — a non-fatal condition worth surfacing, per
// spec.md §4.6.
type Overlap struct {
	FirstPath   string
	SecondPath  string
	FirstEnd    int64
	SecondStart int64
}

// Report aggregates a build's validation results. A gen-2 validation fills
// the Chunks* fields; a gen-1 validation fills the file, overlap and blob
// fields.
type Report struct {
	Generation int

	ChunksOK        int
	ChunksMissing   int
	ChunksCorrupted int
	MissingChunks   []string
	CorruptedChunks []string

	FilesOK          int
	FilesMismatched  int
	MismatchedFiles  []string
	Overlaps         []Overlap
	BlobExists       bool
	BlobSize         int64
	BlobRequiredSize int64
	BlobUndersized   bool

	Errors []string
}

func (r *Report) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// OK reports whether the build passed validation with no mismatches,
// corruption, missing content, or undersized blob. Overlaps are warnings
// and do not affect OK.
func (r *Report) OK() bool {
	return r.ChunksMissing == 0 && r.ChunksCorrupted == 0 &&
		r.FilesMismatched == 0 && !r.BlobUndersized && len(r.Errors) == 0
}
