// Package wakehash provides two hash functions: BLAKE2b-256 over file
// content (golang.org/x/crypto/blake2b) and keyed SipHash-1-3 over byte
// slices.
package wakehash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Sum is a lowercase-hex BLAKE2b-256 digest, 64 characters, matching the
// shim protocol's stdout format exactly.
type Sum string

// HashBytes hashes a byte slice directly (used for symlink targets, whose
// "content" is just the link text).
func HashBytes(b []byte) Sum {
	sum := blake2b.Sum256(b)
	return Sum(hex.EncodeToString(sum[:]))
}

// ZeroSum is the digest directories hash to, since BLAKE2b-256 of an empty input is a fixed well-known value
// and a directory has no content of its own to hash.
var ZeroSum = HashBytes(nil)

// HashPath implements the shim's `<hash>` pseudo-command: a regular file
// hashes its content, a symlink hashes its link text, and a directory
// hashes to ZeroSum.
func HashPath(path string) (Sum, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("wakehash: stat %q: %w", path, err)
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("wakehash: readlink %q: %w", path, err)
		}
		return HashBytes([]byte(target)), nil
	case info.IsDir():
		return ZeroSum, nil
	default:
		return HashFile(path)
	}
}

// HashFile hashes a regular file's content without loading it entirely
// into memory.
func HashFile(path string) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("wakehash: open %q: %w", path, err)
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("wakehash: blake2b init: %w", err)
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("wakehash: hashing %q: %w", path, err)
	}
	return Sum(hex.EncodeToString(h.Sum(nil))), nil
}
