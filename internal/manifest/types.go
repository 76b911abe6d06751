// Package manifest implements the Manifest Cache (C3): fetching build and
// depot manifests for both generations, decompressing them, and caching the
// raw bytes under the archive root via internal/store, never re-fetching
// once a target path exists.
//
// The JSON shapes below replace the source's dynamic dict-shaped records
// with tagged Go types fixed at the decode boundary, per spec.md §9's design
// notes. Field names are grounded directly in the original Python source's
// dict-key usages (gogdl/archiver.py, gogdl/extractor.py), since the
// corresponding schema modules were not included in the retrieved pack.
package manifest

import (
	"encoding/json"

	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
)

// ChunkRef is one chunk entry inside a gen-2 DepotFile. CompressedMD5 names
// the on-disk chunk object (the compressed bytes); MD5 is the checksum of
// the decompressed content. Per spec.md §9 item 3 these are kept as two
// independent fields and never conflated.
type ChunkRef struct {
	CompressedMD5  string `json:"compressedMd5"`
	CompressedSize int64  `json:"compressedSize"`
	Size           int64  `json:"size"`
	MD5            string `json:"md5"`
}

// DepotFileV2 is one entry in a gen-2 depot manifest's item list. Only
// entries with Type == "DepotFile" carry chunks; other item types (e.g.
// directory markers, support entries) are skipped by callers.
type DepotFileV2 struct {
	Type   string     `json:"type"`
	Path   string     `json:"path"`
	Chunks []ChunkRef `json:"chunks"`
}

// DepotFileTypeMarker is the type discriminator that marks a regular
// downloadable file within a gen-2 depot manifest's item list.
const DepotFileTypeMarker = "DepotFile"

// IsFile reports whether d is a regular file entry (as opposed to a
// directory marker or other non-file item type).
func (d DepotFileV2) IsFile() bool {
	return d.Type == DepotFileTypeMarker
}

// depotBodyV2 is the "depot" wrapper object gen-2 depot manifests carry
// their item list under.
type depotBodyV2 struct {
	Items []DepotFileV2 `json:"items"`
}

// DepotManifestV2 is a decoded gen-2 depot manifest.
type DepotManifestV2 struct {
	Depot depotBodyV2 `json:"depot"`
}

// Files returns only the DepotFile-typed entries.
func (m DepotManifestV2) Files() []DepotFileV2 {
	out := make([]DepotFileV2, 0, len(m.Depot.Items))
	for _, item := range m.Depot.Items {
		if item.IsFile() {
			out = append(out, item)
		}
	}
	return out
}

// Gen1FileRecord is one file entry inside a gen-1 depot manifest: a byte
// range within a shared repository blob.
type Gen1FileRecord struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	MD5    string `json:"hash"`
	URL    string `json:"url"`
	Offset int64  `json:"offset"`
}

type depotBodyV1 struct {
	Files []Gen1FileRecord `json:"files"`
}

// DepotManifestV1 is a decoded gen-1 depot manifest.
type DepotManifestV1 struct {
	Depot depotBodyV1 `json:"depot"`
}

// Files returns this manifest's file records with a leading "/" stripped
// from Path, matching the source's path normalization in
// gogdl/extractor.py's _extract_v1_build.
func (m DepotManifestV1) Files() []Gen1FileRecord {
	out := make([]Gen1FileRecord, len(m.Depot.Files))
	for i, f := range m.Depot.Files {
		if len(f.Path) > 0 && f.Path[0] == '/' {
			f.Path = f.Path[1:]
		}
		out[i] = f
	}
	return out
}

// DepotEntry is one `depots[*]` entry inside a build manifest, a tagged
// variant per spec.md §9's DepotEntry design note: exactly one of Manifest
// (a real, downloadable depot) or Redistributable (a redistributable
// marker, carrying no manifest field) is meaningful.
type DepotEntry struct {
	Manifest        *string
	Redistributable bool
}

// UnmarshalJSON decodes a raw depot object, distinguishing a depot that
// names a manifest from a redistributable entry that does not (the source
// skips entries lacking a "manifest" key — gogdl/archiver.py's
// `if 'manifest' not in depot: continue`).
func (d *DepotEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Manifest *string `json:"manifest"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Manifest == nil {
		d.Redistributable = true
		return nil
	}
	d.Manifest = raw.Manifest
	return nil
}

// OfflineDepotEntry is the optional `offlineDepot` entry found on gen-2
// build manifests. Per spec.md §4.5 these are skipped by policy (offline
// depot chunks frequently 404) but parsed so the skip can be logged and the
// policy flag (internal/config Archiver.IncludeOfflineDepots) honored.
type OfflineDepotEntry struct {
	Manifest string `json:"manifest"`
}

// BuildManifestV2 is a decoded gen-2 build manifest: a flat list of depot
// entries plus an optional offline depot.
type BuildManifestV2 struct {
	Depots       []DepotEntry       `json:"depots"`
	OfflineDepot *OfflineDepotEntry `json:"offlineDepot,omitempty"`
}

// RepositoryProduct is the `product` object inside a gen-1 build manifest.
type RepositoryProduct struct {
	Depots []DepotEntry `json:"depots"`
}

// BuildManifestV1 is a decoded gen-1 build manifest (source calls this a
// "repository" manifest; its top-level filename is conventionally
// repository.json).
type BuildManifestV1 struct {
	Product RepositoryProduct `json:"product"`
}

// BuildManifest is the tagged-variant sum type spec.md §3/§9 calls for:
// exactly one of Gen1 or Gen2 is populated, selected by Generation.
type BuildManifest struct {
	Generation galaxypath.Generation
	Gen1       *BuildManifestV1
	Gen2       *BuildManifestV2
}

// ManifestIDs returns the non-redistributable depot manifest ids referenced
// by this build manifest, plus the offline depot id (gen-2 only) separately
// so callers can apply the skip policy.
func (b BuildManifest) ManifestIDs() (ids []string, offline *string) {
	switch b.Generation {
	case galaxypath.Gen1:
		if b.Gen1 == nil {
			return nil, nil
		}
		for _, d := range b.Gen1.Product.Depots {
			if d.Manifest != nil {
				ids = append(ids, *d.Manifest)
			}
		}
	case galaxypath.Gen2:
		if b.Gen2 == nil {
			return nil, nil
		}
		for _, d := range b.Gen2.Depots {
			if d.Manifest != nil {
				ids = append(ids, *d.Manifest)
			}
		}
		if b.Gen2.OfflineDepot != nil {
			offline = &b.Gen2.OfflineDepot.Manifest
		}
	}
	return ids, offline
}
