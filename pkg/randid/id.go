// Package randid generates short random identifiers for file suffixes.
package randid

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
)

const chars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generate creates a random lowercase alphanumeric ID of the given length.
func Generate(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

// TempName returns a sibling of path for write-then-rename output. The
// extension is kept so tools that infer formats from it still work.
func TempName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".part-" + Generate(6) + ext
}
