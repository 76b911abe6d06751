// Package galaxypath implements the Path Codec (C1): deterministic,
// loss-free mappings between CDN URLs and on-disk paths under an archive
// root, including the two-level hash fan-out used for every
// content-addressed file.
//
// Modeled on distribution's registry/storage/paths.go pathMapper: a
// documented, table-driven set of path-building functions with no I/O of
// their own. Pure string/path arithmetic is the correct tool here, exactly
// as it is in the teacher's own paths.go (stdlib path/strings only, no
// third-party dependency has any business in this package).
package galaxypath

import (
	"path"
	"strings"
)

// Galaxy path fan-out: chunks/<h[0:2]>/<h[2:4]>/<h>, manifests under the
// v2 store, and the alternate-collector build-manifest path all use this
// same two-level split on a lowercase hex hash.
func fanout(hexHash string) (string, string) {
	if len(hexHash) < 4 {
		// Degenerate input; callers are expected to pass a real hash, but
		// never panic on malformed data — fall back to the "00/00" bucket.
		return "00", "00"
	}
	return hexHash[0:2], hexHash[2:4]
}

// ChunkPath returns chunks/<h0:2>/<h2:4>/<h> for a chunk named by its
// compressed_md5 hex digest.
func ChunkPath(hexHash string) string {
	a, b := fanout(hexHash)
	return path.Join("chunks", a, b, hexHash)
}

// DepotManifestLocation distinguishes the two accepted read locations for a
// gen-2 depot manifest; writes go to whichever location the CDN served the
// file from (spec.md §4.1).
type DepotManifestLocation string

const (
	DepotLocationDepots DepotManifestLocation = "depots"
	DepotLocationMeta   DepotManifestLocation = "meta"
)

// DepotManifestV2Path returns manifests/v2/{depots|meta}/<h0:2>/<h2:4>/<h>.
func DepotManifestV2Path(location DepotManifestLocation, hexHash string) string {
	a, b := fanout(hexHash)
	return path.Join("manifests", "v2", string(location), a, b, hexHash)
}

// DepotManifestV2Locations returns both accepted on-disk locations for a
// gen-2 depot manifest, in the order reads should try them.
func DepotManifestV2Locations(hexHash string) []string {
	return []string{
		DepotManifestV2Path(DepotLocationDepots, hexHash),
		DepotManifestV2Path(DepotLocationMeta, hexHash),
	}
}

// DepotManifestV1Path returns
// manifests/v1/manifests/<product>/<platform>/<repository>/<filename>.
func DepotManifestV1Path(productID, platform, repositoryID, filename string) string {
	return path.Join("manifests", "v1", "manifests", productID, platform, repositoryID, filename)
}

// BuildManifestV2Path returns builds/v2/<suffix>, where suffix is the part
// of the source URL after its "/v2/" marker.
func BuildManifestV2Path(suffix string) string {
	return path.Join("builds", "v2", suffix)
}

// BuildManifestV2AltPath returns builds/v2/builds/<h0:2>/<h2:4>/<h>, the
// alternate-collector-host build manifest path.
func BuildManifestV2AltPath(hexHash string) string {
	a, b := fanout(hexHash)
	return path.Join("builds", "v2", "builds", a, b, hexHash)
}

// BuildManifestV1Path returns builds/v1/manifests/<suffix>, where suffix is
// the part of the source URL after its "/v1/manifests/" marker.
func BuildManifestV1Path(suffix string) string {
	return path.Join("builds", "v1", "manifests", suffix)
}

// BuildManifestV1PrettyPath returns the debug-only prettified sibling of a
// gen-1 build manifest file (repository.json -> repository.pretty.json).
func BuildManifestV1PrettyPath(suffix string) string {
	p := BuildManifestV1Path(suffix)
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + ".pretty" + ext
}

// BlobPath returns blobs/<id>/main.bin for a gen-1 binary blob, keyed by
// repository_id (preferred) or build_id (legacy fallback; spec.md §9 item 4).
func BlobPath(id string) string {
	return path.Join("blobs", id, "main.bin")
}

// BlobSidecarPath returns the JSON sidecar path for a blob: same directory,
// suffix .json.
func BlobSidecarPath(id string) string {
	return path.Join("blobs", id, "main.json")
}

// BlobXMLPath returns the companion XML sidecar path for a blob, emitted
// after the final block completes for interoperability with a legacy
// verifier.
func BlobXMLPath(id string) string {
	return path.Join("blobs", id, "main.xml")
}

// BuildIndexPath returns the single build index document path.
func BuildIndexPath() string {
	return path.Join("metadata", "archive_database.json")
}

// Generation identifies which of the two manifest formats a URL or record
// belongs to.
type Generation int

const (
	// GenerationUnknown is used when a URL carries none of the known
	// generation markers; the codec falls back to a root-level filename
	// rather than losing the fetch (spec.md §4.1).
	GenerationUnknown Generation = 0
	Gen1              Generation = 1
	Gen2              Generation = 2
)

// knownAltCollectorHosts lists alternate collector hostnames that serve
// gen-2 build manifests without an explicit "/v2/" path segment.
var knownAltCollectorHosts = []string{
	"cdn.gog.com",
	"gog-cdn-lan.gog.com",
}

// ClassifyURL derives the manifest generation a CDN URL belongs to from its
// path markers, per spec.md §4.1: "/v1/", "/v2/", or a known alternate
// collector host; unknown URLs return GenerationUnknown.
func ClassifyURL(rawURL string) Generation {
	switch {
	case strings.Contains(rawURL, "/v1/"):
		return Gen1
	case strings.Contains(rawURL, "/v2/"):
		return Gen2
	}

	for _, host := range knownAltCollectorHosts {
		if strings.Contains(rawURL, host) {
			return Gen2
		}
	}

	return GenerationUnknown
}

// SuffixAfter returns the portion of rawURL after the first occurrence of
// marker, or the URL's final path segment if marker is absent (the
// root-level filename fallback of spec.md §4.1).
func SuffixAfter(rawURL, marker string) string {
	if idx := strings.Index(rawURL, marker); idx >= 0 {
		return rawURL[idx+len(marker):]
	}

	return path.Base(rawURL)
}
