package archiver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dimensional/GalaxyDL/internal/cdn"
)

// DefaultContentSystemBaseURL is the unsigned build-listing host, following
// the naming pattern of the other two GOG hostnames this system reaches
// directly (gog-cdn-fastly.gog.com, downloadable-manifests-collector.gog.com);
// the literal value was not present in the retrieved source (constants.py
// was filtered out of the pack), so this is inferred from GOG's public API
// naming convention and documented here rather than silently guessed.
const DefaultContentSystemBaseURL = "https://content-system.gog.com"

// ListBuilds fetches the build listing for a product/platform pair,
// optionally restricted to a single generation (0 = both, matching the
// source's "omit generation parameter" for gen-1). Grounded on
// archiver.py's list_builds and archive_game_manifests methods (spec.md §6
// "List builds" endpoint template).
func ListBuilds(ctx context.Context, f *cdn.Fetcher, baseURL, productID, platform string, generation int) ([]BuildSummary, error) {
	url := fmt.Sprintf("%s/products/%s/os/%s/builds", baseURL, productID, platform)
	if generation == 2 {
		url += "?generation=2"
	}

	raw, err := f.GetSmall(ctx, url)
	if err != nil {
		return nil, err
	}

	var resp buildListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("archiver: decode build list for %s/%s: %w", productID, platform, err)
	}

	return resp.Items, nil
}

// FindBuild searches gen-1 first, then gen-2, for a build with the given
// id, matching spec.md §4.5's "prefer generation-1 when both exist for the
// same build id" (grounded on archiver.py's archive_build_manifests,
// `for generation in [1, 2]`).
func FindBuild(ctx context.Context, f *cdn.Fetcher, baseURL, productID, platform, buildID string) (*BuildSummary, int, error) {
	for _, generation := range []int{1, 2} {
		builds, err := ListBuilds(ctx, f, baseURL, productID, platform, generation)
		if err != nil {
			continue
		}
		for _, b := range builds {
			if b.BuildID == buildID {
				found := b
				return &found, generation, nil
			}
		}
	}

	return nil, 0, fmt.Errorf("archiver: build %s not found for %s/%s", buildID, productID, platform)
}
