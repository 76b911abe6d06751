// Package buildindex implements the Build Index (C8): a single JSON
// document at metadata/archive_database.json recording which builds have
// been archived, for discovery and the extractor's build lookup.
//
// Grounded on original_source/GalaxyDL's gogdl/archiver.py —
// GOGGalaxyArchiver.load_database/save_database, trimmed to the
// "streamlined to only track builds" shape that database already
// converged to (chunks/blobs/manifests are never tracked here; the
// filesystem is their single source of truth, per spec.md §9).
package buildindex

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// Entry is one archived build's index record, matching spec.md §4.8's
// field set exactly.
type Entry struct {
	ProductID    string   `json:"product_id"`
	BuildID      string   `json:"build_id"`
	BuildHash    string   `json:"build_hash"`
	Platform     string   `json:"platform"`
	Generation   int      `json:"generation"`
	ArchivePath  string   `json:"archive_path"`
	SourceURL    string   `json:"source_url"`
	RepositoryID string   `json:"repository_id"`
	VersionLabel string   `json:"version_label"`
	Tags         []string `json:"tags"`
}

// UnmarshalJSON decodes an Entry, mapping the legacy key names
// `chunks_referenced` and `manifest_hash` the source's load_database
// tolerated, so an archive root built by an older run still loads cleanly.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type alias Entry
	var raw struct {
		alias
		ManifestHash     *string   `json:"manifest_hash"`
		ChunksReferenced *[]string `json:"chunks_referenced"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entry(raw.alias)
	if e.BuildHash == "" && raw.ManifestHash != nil {
		e.BuildHash = *raw.ManifestHash
	}
	// chunks_referenced (legacy name for manifests_referenced) named a set
	// this index no longer tracks at all — file-system presence is truth,
	// per spec.md §9 — so it is accepted and discarded, never surfaced.
	_ = raw.ChunksReferenced

	return nil
}

// document is the on-disk shape: the builds list plus a coarse timestamp.
type document struct {
	Builds      []Entry `json:"builds"`
	LastUpdated int64   `json:"last_updated"`
}

// Index is the Build Index: an in-memory view over
// metadata/archive_database.json, coalescing writes at phase boundaries
// per spec.md §5's "written at coarse phase boundaries" ordering guarantee.
type Index struct {
	mu      sync.Mutex
	store   *store.Store
	entries map[string]Entry // key: product_id/build_id/platform
}

func entryKey(productID, buildID, platform string) string {
	return productID + "/" + buildID + "/" + platform
}

// Load reads the existing index from s, or returns an empty Index if the
// document does not exist yet.
func Load(s *store.Store) (*Index, error) {
	idx := &Index{store: s, entries: map[string]Entry{}}

	relPath := galaxypath.BuildIndexPath()
	if !s.Exists(relPath) {
		return idx, nil
	}

	raw, err := s.ReadFile(relPath)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	for _, e := range doc.Builds {
		idx.entries[entryKey(e.ProductID, e.BuildID, e.Platform)] = e
	}

	return idx, nil
}

// Upsert records or replaces a build's entry. It does not write to disk by
// itself; call Save at a phase boundary.
func (idx *Index) Upsert(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[entryKey(e.ProductID, e.BuildID, e.Platform)] = e
}

// Get returns the entry for productID/buildID/platform, if present.
func (idx *Index) Get(productID, buildID, platform string) (Entry, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	e, ok := idx.entries[entryKey(productID, buildID, platform)]
	return e, ok
}

// All returns a stable, product/build/platform-sorted snapshot of every
// entry, for listing and for the extractor's build lookup.
func (idx *Index) All() []Entry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.allLocked()
}

func (idx *Index) allLocked() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		if out[i].BuildID != out[j].BuildID {
			return out[i].BuildID < out[j].BuildID
		}
		return out[i].Platform < out[j].Platform
	})
	return out
}

// Save atomically writes the full index document, per spec.md §4.8's
// "Atomic write (temp + rename)" requirement — inherited from
// store.Store.WriteFile's writeAtomic, so a crash mid-save never corrupts
// the previous, still-valid document.
func (idx *Index) Save(now int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc := document{Builds: idx.allLocked(), LastUpdated: now}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return idx.store.WriteFile(galaxypath.BuildIndexPath(), raw)
}
