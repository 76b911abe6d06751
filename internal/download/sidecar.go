// Package download implements the Download Engine (C4): the small-object
// (chunk) parallel download path and the large-object (blob) resumable
// ranged block-download path, per spec.md §4.4.
package download

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// StatusValidated is the sidecar chunk_states status recorded for a block
// whose bytes have been confirmed to match their recorded hash.
const StatusValidated = "validated"

// OverallHashes is the cumulative MD5/SHA1/SHA256 across all blocks written
// so far, in ascending block-id order.
type OverallHashes struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// BlockHashes is the per-block hash row stored under chunk_hashes.
type BlockHashes struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// BlockState is the per-block validation-state row stored under
// chunk_states, tracked separately from BlockHashes so a previously
// validated block's timestamps survive an otherwise-unrelated sidecar
// rewrite.
type BlockState struct {
	Status         string `json:"status"`
	DownloadTime   string `json:"download_time,omitempty"`
	ValidationTime string `json:"validation_time,omitempty"`
	ErrorCount     int    `json:"error_count"`
}

// Sidecar is the JSON state document living alongside a blob's main.bin,
// named "blob state file" in spec.md §3. Field names and structure are
// grounded directly on archiver.py's _update_json_with_current_chunks.
type Sidecar struct {
	FileName          string                 `json:"file_name"`
	Available         bool                   `json:"available"`
	TotalSize         int64                  `json:"total_size"`
	TotalChunks       int                    `json:"total_chunks"`
	CompletedChunks   int                    `json:"completed_chunks"`
	Timestamp         string                 `json:"timestamp"`
	OverallHashes     OverallHashes          `json:"overall_hashes"`
	CompletedChunkIDs []int                  `json:"completed_chunk_ids"`
	ChunkStates       map[string]BlockState  `json:"chunk_states"`
	ChunkHashes       map[string]BlockHashes `json:"chunk_hashes"`
}

// newSidecar returns an empty Sidecar shell for a blob of the given name,
// size, and block count.
func newSidecar(fileName string, totalSize int64, totalChunks int) *Sidecar {
	return &Sidecar{
		FileName:    fileName,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
		ChunkStates: map[string]BlockState{},
		ChunkHashes: map[string]BlockHashes{},
	}
}

// loadSidecar reads and decodes the sidecar at relPath, returning
// (nil, nil) if it does not exist. A JSON decode failure is surfaced as a
// galaxyerrors.CorruptStateError so callers can apply spec.md §7's
// CorruptState recovery (discard and re-validate from scratch).
func loadSidecar(s *store.Store, relPath string) (*Sidecar, error) {
	if !s.Exists(relPath) {
		return nil, nil
	}

	raw, err := s.ReadFile(relPath)
	if err != nil {
		return nil, err
	}

	var sc Sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, galaxyerrors.CorruptStateError{Path: relPath, Err: err}
	}

	return &sc, nil
}

// save writes the sidecar atomically (temp file then rename, via
// store.Store.WriteFile), recomputing derived fields (Available,
// CompletedChunks, CompletedChunkIDs, Timestamp) from ChunkHashes so callers
// only ever need to mutate ChunkHashes/ChunkStates.
func (sc *Sidecar) save(s *store.Store, relPath string, now string) error {
	sc.CompletedChunks = len(sc.ChunkHashes)
	sc.Available = sc.CompletedChunks == sc.TotalChunks
	sc.Timestamp = now

	ids := make([]int, 0, len(sc.ChunkHashes))
	for idStr := range sc.ChunkHashes {
		var id int
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	sc.CompletedChunkIDs = ids

	raw, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	return s.WriteFile(relPath, raw)
}

// recordBlock stores a successfully downloaded and hashed block's rows in
// the sidecar, marking it validated with the given timestamp. A block
// already validated in a prior session keeps its download_time and only
// gets a refreshed validation_time, matching the source's "preserve
// existing download_time" behavior.
func (sc *Sidecar) recordBlock(id int, from, to int64, hashes BlockHashes, now string) {
	key := fmt.Sprintf("%d", id)
	hashes.From, hashes.To = from, to
	sc.ChunkHashes[key] = hashes

	if existing, ok := sc.ChunkStates[key]; ok && existing.Status == StatusValidated {
		existing.ValidationTime = now
		sc.ChunkStates[key] = existing
		return
	}

	sc.ChunkStates[key] = BlockState{
		Status:         StatusValidated,
		DownloadTime:   now,
		ValidationTime: now,
	}
}

// isBlockValidated reports whether the sidecar already trusts block id
// without needing to re-hash it, per spec.md §4.4 step 2: "status validated
// in the sidecar and passing a cheap re-check".
func (sc *Sidecar) isBlockValidated(id int) bool {
	key := fmt.Sprintf("%d", id)
	state, ok := sc.ChunkStates[key]
	return ok && state.Status == StatusValidated
}

// blockRow returns the recorded hash row for block id, if any.
func (sc *Sidecar) blockRow(id int) (BlockHashes, bool) {
	row, ok := sc.ChunkHashes[fmt.Sprintf("%d", id)]
	return row, ok
}
