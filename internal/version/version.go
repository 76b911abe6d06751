// Package version holds the build-time-stamped version of galaxyarchive,
// modeled on distribution's version package.
package version

import "fmt"

// mainpkg is the canonical import path this binary was built under.
var mainpkg = "github.com/Dimensional/GalaxyDL"

// version is replaced by the actual release tag at link time via
// -ldflags "-X .../internal/version.version=...". Left as "+unknown" for
// plain `go build`/`go install`.
var version = "v0.0.0+unknown"

// revision is filled with the VCS revision at link time.
var revision = ""

// Version returns the current version string, including the revision when
// known.
func Version() string {
	if revision == "" {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, revision)
}

// Package returns the canonical import path.
func Package() string {
	return mainpkg
}
