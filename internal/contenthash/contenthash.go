// Package contenthash provides the hash primitives used throughout the
// store and download engine: plain lowercase-hex digests (no algorithm
// prefix), matching the on-disk naming convention of spec.md ("h =
// compressed_md5 lowercase hex" with no "md5:" prefix in the path).
//
// Grounded on distribution's digest/digest.go (FromBytes/FromReader style
// helpers), adapted because that package's Digest type is "alg:hex" and
// this domain's filenames are bare hex — see DESIGN.md for why
// opencontainers/go-digest was not reused instead.
package contenthash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// MD5Hex returns the lowercase hex MD5 digest of p.
func MD5Hex(p []byte) string {
	sum := md5.Sum(p)
	return hex.EncodeToString(sum[:])
}

// SHA1Hex returns the lowercase hex SHA1 digest of p.
func SHA1Hex(p []byte) string {
	sum := sha1.Sum(p)
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA256 digest of p.
func SHA256Hex(p []byte) string {
	sum := sha256.Sum256(p)
	return hex.EncodeToString(sum[:])
}

// MD5HexReader digests an io.Reader and returns its lowercase hex MD5.
func MD5HexReader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sums is a snapshot of the three digests the blob sidecar tracks.
type Sums struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// MultiHasher holds three streaming hashers (MD5, SHA1, SHA256) fed in
// lockstep, so the download engine can maintain a running, whole-blob hash
// while writing one 100 MiB block at a time — O(1) per block rather than
// re-reading the file (spec.md §4.4 step 7; spec.md §9 design note on
// retaining only one copy of running hash state).
//
// Sums snapshots the cumulative digests without disturbing the running
// totals (hash.Hash.Sum never mutates state), matching the source's use of
// hashlib.copy() to capture cumulative hashes at a checkpoint.
type MultiHasher struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
}

// NewMultiHasher returns a MultiHasher with all three digests starting
// from their empty state.
func NewMultiHasher() *MultiHasher {
	return &MultiHasher{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
	}
}

// Write feeds p into all three hashers. Never returns an error: hash.Hash
// implementations never fail to write.
func (m *MultiHasher) Write(p []byte) (int, error) {
	m.md5.Write(p)
	m.sha1.Write(p)
	m.sha256.Write(p)
	return len(p), nil
}

// Sums returns the current hex digests without disturbing running state.
func (m *MultiHasher) Sums() Sums {
	return Sums{
		MD5:    hex.EncodeToString(m.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(m.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(m.sha256.Sum(nil)),
	}
}
