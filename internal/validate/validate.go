package validate

import (
	"context"
	"sort"

	"github.com/Dimensional/GalaxyDL/internal/contenthash"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/manifest"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// Validator checks store content against the manifests that describe it,
// reusing the same Store and Cache the Archiver writes through.
type Validator struct {
	Store     *store.Store
	Manifests *manifest.Cache
}

// New returns a Validator over s and mc.
func New(s *store.Store, mc *manifest.Cache) *Validator {
	return &Validator{Store: s, Manifests: mc}
}

// ValidateGen2 enumerates every chunk referenced by every depot manifest in
// depotManifestIDs and verifies exists ∧ MD5(compressed bytes) == name,
// per spec.md §4.6.
func (v *Validator) ValidateGen2(ctx context.Context, depotManifestIDs []string) (*Report, error) {
	report := &Report{Generation: 2}
	seen := map[string]bool{}

	for _, id := range depotManifestIDs {
		dm, err := v.Manifests.FetchDepotManifestV2(ctx, id)
		if err != nil {
			report.addError("depot manifest %s: %v", id, err)
			continue
		}

		for _, file := range dm.Files() {
			for _, chunkRef := range file.Chunks {
				if seen[chunkRef.CompressedMD5] {
					continue
				}
				seen[chunkRef.CompressedMD5] = true
				v.classifyChunkInto(report, chunkRef.CompressedMD5)
			}
		}
	}

	return report, nil
}

func (v *Validator) classifyChunkInto(report *Report, compressedMD5 string) {
	relPath := galaxypath.ChunkPath(compressedMD5)
	if !v.Store.Exists(relPath) {
		report.ChunksMissing++
		report.MissingChunks = append(report.MissingChunks, compressedMD5)
		return
	}

	data, err := v.Store.ReadFile(relPath)
	if err != nil {
		report.ChunksMissing++
		report.MissingChunks = append(report.MissingChunks, compressedMD5)
		return
	}

	if contenthash.MD5Hex(data) != compressedMD5 {
		report.ChunksCorrupted++
		report.CorruptedChunks = append(report.CorruptedChunks, compressedMD5)
		return
	}

	report.ChunksOK++
}

// gen1Record is a flattened, depot-tagged copy of manifest.Gen1FileRecord
// used only to carry a human-readable label into overlap reports.
type gen1Record struct {
	manifest.Gen1FileRecord
	DepotFilename string
}

// ValidateGen1 reads every gen-1 depot manifest in depotManifestIDs
// (productID/platform/repositoryID identify the shared blob), sorts the
// union of file records by Offset, and performs one sequential pass over
// the blob: seek, read Size bytes, MD5 compare to the recorded hash.
// Adjacent overlapping ranges are reported as warnings, and the blob's
// on-disk size is checked against the maximum offset+size, per spec.md §4.6.
func (v *Validator) ValidateGen1(ctx context.Context, productID, platform, repositoryID string, depotManifestIDs []string) (*Report, error) {
	report := &Report{Generation: 1}

	var records []gen1Record
	for _, filename := range depotManifestIDs {
		dm, err := v.Manifests.FetchDepotManifestV1(ctx, productID, platform, repositoryID, filename)
		if err != nil {
			report.addError("depot manifest %s: %v", filename, err)
			continue
		}
		for _, f := range dm.Files() {
			records = append(records, gen1Record{Gen1FileRecord: f, DepotFilename: filename})
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Offset < records[j].Offset })

	var maxEnd int64
	for i, rec := range records {
		end := rec.Offset + rec.Size
		if end > maxEnd {
			maxEnd = end
		}
		if i > 0 {
			prev := records[i-1]
			prevEnd := prev.Offset + prev.Size
			if prevEnd > rec.Offset {
				report.Overlaps = append(report.Overlaps, Overlap{
					FirstPath:   prev.Path,
					SecondPath:  rec.Path,
					FirstEnd:    prevEnd,
					SecondStart: rec.Offset,
				})
			}
		}
	}

	relBlobPath := galaxypath.BlobPath(repositoryID)
	blobSize, exists, err := v.Store.BlobSize(relBlobPath)
	if err != nil {
		return nil, err
	}
	report.BlobExists = exists
	report.BlobSize = blobSize
	report.BlobRequiredSize = maxEnd
	if !exists || blobSize < maxEnd {
		report.BlobUndersized = true
	}

	if !exists {
		for _, rec := range records {
			report.FilesMismatched++
			report.MismatchedFiles = append(report.MismatchedFiles, rec.Path)
		}
		return report, nil
	}

	f, err := v.Store.OpenBlobRead(relBlobPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 0, 1<<20)
	for _, rec := range records {
		if cap(buf) < int(rec.Size) {
			buf = make([]byte, rec.Size)
		}
		chunk := buf[:rec.Size]

		if _, err := f.ReadAt(chunk, rec.Offset); err != nil {
			report.FilesMismatched++
			report.MismatchedFiles = append(report.MismatchedFiles, rec.Path)
			report.addError("file %s: read at offset %d: %v", rec.Path, rec.Offset, err)
			continue
		}

		if contenthash.MD5Hex(chunk) != rec.MD5 {
			report.FilesMismatched++
			report.MismatchedFiles = append(report.MismatchedFiles, rec.Path)
			continue
		}

		report.FilesOK++
	}

	return report, nil
}
