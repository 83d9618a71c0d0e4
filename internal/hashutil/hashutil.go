package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// HashStrings returns a SHA256 hash of the provided strings with newline separators.
func HashStrings(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashUnordered hashes the parts after sorting a copy, so argument order does not matter.
func HashUnordered(parts ...string) string {
	sorted := append([]string(nil), parts...)
	sort.Strings(sorted)
	return HashStrings(sorted...)
}

// Short truncates a hex digest to n characters for log lines and keys.
func Short(digest string, n int) string {
	if n <= 0 || len(digest) <= n {
		return digest
	}
	return digest[:n]
}
