package manifest

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/Dimensional/GalaxyDL/internal/galaxyerrors"
)

// gzipMagic is the two-byte prefix identifying a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// decompressManifest applies the layered fallback spec.md §4.3 mandates:
// detect gzip by its magic prefix first (some gen-2 depot manifests arrive
// this way), then try zlib (the format gen-2 build manifests are actually
// served in), and fall back to treating the bytes as raw UTF-8 JSON. Grounded on
// gogdl/archiver.py's decompression attempts around its depot-manifest and
// build-manifest loaders, which try zlib then assume raw JSON on failure.
func decompressManifest(subject string, raw []byte) ([]byte, error) {
	if len(raw) >= 2 && bytes.Equal(raw[:2], gzipMagic) {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, galaxyerrors.DecompressionError{Subject: subject, Err: err}
		}
		defer gz.Close()

		out, err := io.ReadAll(gz)
		if err != nil {
			return nil, galaxyerrors.DecompressionError{Subject: subject, Err: err}
		}
		return out, nil
	}

	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err == nil {
			return out, nil
		}
		// Fall through to raw JSON: a truncated/non-zlib stream that
		// happened to pass the header check is not fatal here, the
		// caller's json.Unmarshal will report a clear decode error.
	}

	return raw, nil
}
