// Package library implements the content-addressed library: a pool of
// immutable files named by their SHA-1 digest, downloaded and verified once
// and then shared across instances via hard links.
//
// Path layout and per-hash locking are grounded on the now-removed
// pkg/staging/paths.go, which already sharded content by the first hex
// byte of a digest, and on pkg/filesystem/locking for the cross-process
// lock primitive.
package library

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// PathFor computes the library path for the given hash, under dir, with an
// optional file extension (without the leading dot; empty for none). The
// extension is part of the path: the same hash under two different
// extensions addresses two separate library files.
func PathFor(dir string, hash [20]byte, extension string) string {
	hexHash := hex.EncodeToString(hash[:])
	path := filepath.Join(dir, hexHash[:2], hexHash)
	if extension != "" {
		path += "." + extension
	}
	return path
}

// LockPathFor computes the sidecar lock file path for a library entry.
func LockPathFor(contentPath string) string {
	return contentPath + ".lock"
}

// ParseHash decodes a 40-character hex SHA-1 digest, rejecting malformed
// input distinctly from a download or I/O failure.
func ParseHash(s string) ([20]byte, error) {
	var out [20]byte
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(decoded) != 20 {
		return out, fmt.Errorf("invalid hash %q: expected 20 bytes, got %d", s, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
