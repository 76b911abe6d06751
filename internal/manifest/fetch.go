package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
	"github.com/Dimensional/GalaxyDL/internal/galaxypath"
	"github.com/Dimensional/GalaxyDL/internal/logctx"
	"github.com/Dimensional/GalaxyDL/internal/store"
)

// Default collector/CDN hostnames, matching the plain (unsigned) hosts the
// source reaches for manifests directly — gogdl/archiver.py's
// constants.GOG_CDN ("https://gog-cdn-fastly.gog.com") and
// constants.GOG_MANIFESTS_COLLECTOR
// ("https://downloadable-manifests-collector.gog.com"). Manifest fetches,
// unlike chunk/blob fetches, do not go through the secure-link minter.
const (
	DefaultCDNBaseURL       = "https://gog-cdn-fastly.gog.com"
	DefaultCollectorBaseURL = "https://downloadable-manifests-collector.gog.com"
)

// Cache is the Manifest Cache (C3): it fetches build and depot manifests
// over HTTP, decompresses them, and persists the raw bytes under the
// archive root, never re-fetching a target path that already exists
// (spec.md §4.3's caching rule).
type Cache struct {
	Store   *store.Store
	Fetcher *cdn.Fetcher

	CDNBaseURL       string
	CollectorBaseURL string
}

// NewCache returns a Cache using the default GOG hostnames.
func NewCache(s *store.Store, f *cdn.Fetcher) *Cache {
	return &Cache{
		Store:            s,
		Fetcher:          f,
		CDNBaseURL:       DefaultCDNBaseURL,
		CollectorBaseURL: DefaultCollectorBaseURL,
	}
}

// FetchBuildManifestV2 fetches a gen-2 build manifest from sourceURL,
// caching raw bytes at the path derived from the URL's "/v2/" suffix (or
// the alternate-collector-host path, when applicable), and returns the
// decoded manifest. A prettified JSON sibling is written alongside it for
// debuggability, matching spec.md §4.3's "side effect" note; failure to
// write the pretty sibling is logged but not fatal.
func (c *Cache) FetchBuildManifestV2(ctx context.Context, sourceURL string) (*BuildManifest, error) {
	relPath := buildManifestV2Path(sourceURL)

	raw, err := c.fetchAndCache(ctx, sourceURL, relPath)
	if err != nil {
		return nil, err
	}

	decompressed, err := decompressManifest(sourceURL, raw)
	if err != nil {
		return nil, err
	}

	var v2 BuildManifestV2
	if err := json.Unmarshal(decompressed, &v2); err != nil {
		return nil, fmt.Errorf("manifest: decode gen-2 build manifest %s: %w", sourceURL, err)
	}

	writePrettyJSONSibling(ctx, c.Store, relPath, decompressed)

	return &BuildManifest{Generation: galaxypath.Gen2, Gen2: &v2}, nil
}

// buildManifestV2Path derives the on-disk path for a gen-2 build manifest
// URL, preferring the "/v2/" suffix form and falling back to the
// alternate-collector-host hash form when the URL carries none of the
// known markers (spec.md §4.1).
func buildManifestV2Path(sourceURL string) string {
	if galaxypath.ClassifyURL(sourceURL) == galaxypath.Gen2 {
		suffix := galaxypath.SuffixAfter(sourceURL, "/v2/")
		return galaxypath.BuildManifestV2Path(suffix)
	}
	hexHash := galaxypath.SuffixAfter(sourceURL, "/")
	return galaxypath.BuildManifestV2AltPath(hexHash)
}

// FetchBuildManifestV1 fetches a gen-1 build ("repository") manifest from
// sourceURL, caching it verbatim (gen-1 manifests are plain JSON, never
// compressed).
func (c *Cache) FetchBuildManifestV1(ctx context.Context, sourceURL string) (*BuildManifest, error) {
	suffix := galaxypath.SuffixAfter(sourceURL, "/v1/manifests/")
	relPath := galaxypath.BuildManifestV1Path(suffix)

	raw, err := c.fetchAndCache(ctx, sourceURL, relPath)
	if err != nil {
		return nil, err
	}

	var v1 BuildManifestV1
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, fmt.Errorf("manifest: decode gen-1 build manifest %s: %w", sourceURL, err)
	}

	return &BuildManifest{Generation: galaxypath.Gen1, Gen1: &v1}, nil
}

// FetchDepotManifestV2 fetches a gen-2 depot manifest named by its hex
// hash, trying the three source endpoints in order per spec.md §4.3: the
// collector's "/manifests/depots/" path, the CDN's
// "/content-system/v2/meta/" path, then the collector's "/depots/" path.
// The on-disk cache is checked, and both accepted read locations
// (galaxypath.DepotManifestV2Locations) are tried, before any network call.
func (c *Cache) FetchDepotManifestV2(ctx context.Context, hexHash string) (*DepotManifestV2, error) {
	for _, loc := range galaxypath.DepotManifestV2Locations(hexHash) {
		if c.Store.Exists(loc) {
			raw, err := c.Store.ReadFile(loc)
			if err != nil {
				return nil, err
			}
			decompressed, err := decompressManifest(loc, raw)
			if err != nil {
				return nil, err
			}
			return decodeDepotManifestV2(hexHash, decompressed)
		}
	}

	attempts := []struct {
		url      string
		location galaxypath.DepotManifestLocation
	}{
		{fmt.Sprintf("%s/manifests/depots/%s", c.CollectorBaseURL, galaxyPathSuffix(hexHash)), galaxypath.DepotLocationDepots},
		{fmt.Sprintf("%s/content-system/v2/meta/%s", c.CDNBaseURL, galaxyPathSuffix(hexHash)), galaxypath.DepotLocationMeta},
		{fmt.Sprintf("%s/depots/%s", c.CollectorBaseURL, galaxyPathSuffix(hexHash)), galaxypath.DepotLocationDepots},
	}

	var lastErr error
	for _, attempt := range attempts {
		raw, err := c.Fetcher.GetSmall(ctx, attempt.url)
		if err != nil {
			lastErr = err
			logctx.GetLogger(ctx).WithField("url", attempt.url).WithError(err).Debug("depot manifest fetch attempt failed")
			continue
		}

		decompressed, err := decompressManifest(attempt.url, raw)
		if err != nil {
			return nil, err
		}

		relPath := galaxypath.DepotManifestV2Path(attempt.location, hexHash)
		if _, err := c.Store.WriteManifestIfAbsent(relPath, raw); err != nil {
			return nil, err
		}

		return decodeDepotManifestV2(hexHash, decompressed)
	}

	return nil, fmt.Errorf("manifest: all depot manifest fetch attempts failed for %s: %w", hexHash, lastErr)
}

// galaxyPathSuffix renders the two-level hex fan-out suffix ("h0:2/h2:4/h")
// used in URL paths, mirroring dl_utils.galaxy_path in the source.
func galaxyPathSuffix(hexHash string) string {
	if len(hexHash) < 4 {
		return hexHash
	}
	return hexHash[0:2] + "/" + hexHash[2:4] + "/" + hexHash
}

func decodeDepotManifestV2(hexHash string, raw []byte) (*DepotManifestV2, error) {
	var m DepotManifestV2
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode gen-2 depot manifest %s: %w", hexHash, err)
	}
	return &m, nil
}

// FetchDepotManifestV1 fetches a gen-1 depot manifest for the given
// product/platform/repository/filename coordinates, caching it at the path
// galaxypath.DepotManifestV1Path derives.
func (c *Cache) FetchDepotManifestV1(ctx context.Context, productID, platform, repositoryID, filename string) (*DepotManifestV1, error) {
	relPath := galaxypath.DepotManifestV1Path(productID, platform, repositoryID, filename)

	url := fmt.Sprintf("%s/content-system/v1/manifests/%s/%s/%s/%s", c.CDNBaseURL, productID, platform, repositoryID, filename)

	raw, err := c.fetchAndCache(ctx, url, relPath)
	if err != nil {
		return nil, err
	}

	var v1 DepotManifestV1
	if err := json.Unmarshal(raw, &v1); err != nil {
		return nil, fmt.Errorf("manifest: decode gen-1 depot manifest %s: %w", url, err)
	}
	return &v1, nil
}

// fetchAndCache implements the common "cache hit short-circuits the
// network" rule shared by every fetch method: if relPath already exists,
// its bytes are authoritative and no HTTP call is made.
func (c *Cache) fetchAndCache(ctx context.Context, url, relPath string) ([]byte, error) {
	if c.Store.Exists(relPath) {
		return c.Store.ReadFile(relPath)
	}

	raw, err := c.Fetcher.GetSmall(ctx, url)
	if err != nil {
		return nil, err
	}

	if _, err := c.Store.WriteManifestIfAbsent(relPath, raw); err != nil {
		return nil, err
	}

	return raw, nil
}

// writePrettyJSONSibling best-effort writes an indented copy of a gen-2
// build manifest next to its raw bytes, for human debugging. Per spec.md
// §9's design note, the pretty copy is always rederivable and never the
// authoritative artifact, so a failure here is logged and swallowed.
func writePrettyJSONSibling(ctx context.Context, s *store.Store, relPath string, decompressed []byte) {
	var v interface{}
	if err := json.Unmarshal(decompressed, &v); err != nil {
		return
	}

	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}

	prettyPath := relPath + ".pretty.json"
	if _, err := s.WriteManifestIfAbsent(prettyPath, pretty); err != nil {
		logctx.GetLogger(ctx).WithError(err).Debug("failed to write pretty manifest sibling")
	}
}

// DepotManifestNotCached reports whether err indicates a manifest could not
// be located anywhere (cache or network), useful for callers distinguishing
// a hard failure from a recoverable NotFound per spec.md §7.
func DepotManifestNotCached(err error) bool {
	var nf galaxyerrors.NotFoundError
	return errors.As(err, &nf)
}
