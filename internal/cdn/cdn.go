// Package cdn declares the minimal collaborator interfaces this system
// consumes from authentication/secure-link minting and HTTP transport,
// per spec.md §1's "out of scope" list and §6's "Collaborator interfaces
// consumed". Nothing in this package implements authentication itself —
// it only defines the seam production code is wired through, plus a small
// concrete HTTP fetcher for range/HEAD requests, which spec.md explicitly
// keeps in scope ("HTTP transport details beyond range requests and
// Content-Length" is the only thing excluded).
package cdn

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HTTPDoer is satisfied by *http.Client; production code attaches CDN auth
// headers via a pluggable RoundTripper on the client it supplies.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SecureLinkEndpoint is one `{url_format, parameters}` record as returned
// by GOG's secure-link minting endpoint (spec.md §6).
type SecureLinkEndpoint struct {
	URLFormat  string
	Parameters map[string]string
}

// LinkResult is what a LinkMinter returns: either a plain base URL, or a
// list of token-substitution endpoints, never both.
type LinkResult struct {
	BaseURL   string
	Endpoints []SecureLinkEndpoint
}

// Resolve materializes a concrete URL for pathSuffix from a LinkResult,
// preferring the first endpoint when the minter returned a list (spec.md
// §9 Open Question 2: secure links are minted once per session and reused,
// not re-minted per chunk, absent evidence of per-URL-only token
// lifetimes).
func (r LinkResult) Resolve(pathSuffix string) (string, error) {
	if r.BaseURL != "" {
		return strings.TrimRight(r.BaseURL, "/") + "/" + strings.TrimLeft(pathSuffix, "/"), nil
	}

	if len(r.Endpoints) == 0 {
		return "", fmt.Errorf("cdn: link result has no base URL and no endpoints")
	}

	ep := r.Endpoints[0]
	params := make(map[string]string, len(ep.Parameters)+1)
	for k, v := range ep.Parameters {
		params[k] = v
	}
	params["path"] = params["path"] + pathSuffix

	return mergeURLWithParams(ep.URLFormat, params), nil
}

// mergeURLWithParams substitutes "{key}" tokens in format with the
// corresponding value from params.
func mergeURLWithParams(format string, params map[string]string) string {
	out := format
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// LinkMinter mints a CDN URL (or set of candidate endpoints) for a given
// content path, product, and generation. The real implementation lives
// outside this system's scope (spec.md §1); this interface is the seam.
type LinkMinter interface {
	MintLink(ctx context.Context, path, productID string, generation int) (LinkResult, error)
}

// StaticLinkMinter is a LinkMinter that always resolves to the same base
// URL, used by tests and by callers that already have a plain CDN base
// (no token substitution required).
type StaticLinkMinter struct {
	BaseURL string
}

func (m StaticLinkMinter) MintLink(context.Context, string, string, int) (LinkResult, error) {
	return LinkResult{BaseURL: m.BaseURL}, nil
}
