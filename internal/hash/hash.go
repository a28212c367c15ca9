// Package hash derives hex digests used as cache keys.
package hash

import (
	"crypto/md5" //nolint:gosec // cache keys, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdhash "hash"
	"strings"
)

// Supported digest algorithms.
const (
	// MD5 keeps keys compatible with caches written by earlier tooling.
	MD5    = "md5"
	SHA256 = "sha256"
)

// Hasher implements research.Hasher for a fixed algorithm.
type Hasher struct {
	algorithm string
	newFn     func() stdhash.Hash
}

// New returns a Hasher for the named algorithm. An empty name selects MD5.
func New(algorithm string) (*Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", MD5:
		return &Hasher{algorithm: MD5, newFn: md5.New}, nil
	case SHA256:
		return &Hasher{algorithm: SHA256, newFn: sha256.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Algorithm reports the digest in use.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash hashes the input and returns a lowercase hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	d := h.newFn()
	if _, err := d.Write(data); err != nil {
		return "", fmt.Errorf("%s write: %w", h.algorithm, err)
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}
