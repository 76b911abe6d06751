package galaxypath

import "testing"

func TestChunkPath(t *testing.T) {
	got := ChunkPath("abcd1234")
	want := "chunks/ab/cd/abcd1234"
	if got != want {
		t.Fatalf("ChunkPath() = %q, want %q", got, want)
	}
}

func TestDepotManifestV2Locations(t *testing.T) {
	locs := DepotManifestV2Locations("deadbeef")
	want := []string{
		"manifests/v2/depots/de/ad/deadbeef",
		"manifests/v2/meta/de/ad/deadbeef",
	}
	for i, w := range want {
		if locs[i] != w {
			t.Fatalf("DepotManifestV2Locations()[%d] = %q, want %q", i, locs[i], w)
		}
	}
}

func TestDepotManifestV1Path(t *testing.T) {
	got := DepotManifestV1Path("1207658930", "windows", "37794096", "repository.json")
	want := "manifests/v1/manifests/1207658930/windows/37794096/repository.json"
	if got != want {
		t.Fatalf("DepotManifestV1Path() = %q, want %q", got, want)
	}
}

func TestBuildManifestV1PrettyPath(t *testing.T) {
	got := BuildManifestV1PrettyPath("1207658930/windows/37794096/repository.json")
	want := "builds/v1/manifests/1207658930/windows/37794096/repository.pretty.json"
	if got != want {
		t.Fatalf("BuildManifestV1PrettyPath() = %q, want %q", got, want)
	}
}

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want Generation
	}{
		{"https://cdn.gog.com/content-system/v1/manifests/1/windows/2/repository.json", Gen1},
		{"https://cdn.gog.com/content-system/v2/meta/de/ad/deadbeef", Gen2},
		{"https://gog-cdn-lan.gog.com/builds/abc", Gen2},
		{"https://example.com/unknown/path", GenerationUnknown},
	}

	for _, c := range cases {
		if got := ClassifyURL(c.url); got != c.want {
			t.Errorf("ClassifyURL(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestSuffixAfter(t *testing.T) {
	got := SuffixAfter("https://cdn.gog.com/foo/v2/bar/baz.json", "/v2/")
	if got != "bar/baz.json" {
		t.Fatalf("SuffixAfter() = %q", got)
	}

	got = SuffixAfter("https://cdn.gog.com/no-marker/file.json", "/v2/")
	if got != "file.json" {
		t.Fatalf("SuffixAfter() fallback = %q", got)
	}
}
