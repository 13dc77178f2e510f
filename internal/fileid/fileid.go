// Package fileid provides deterministic identifiers for guideline files and their chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const prefix = "file:"

// namespace scopes chunk UUIDs so they never collide with other name-based UUIDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nutriguide/guideline-chunk"))

// FileDocID returns a stable document ID for the given file name.
// Only the base name is hashed, so moving the guideline directory keeps IDs stable.
func FileDocID(name string) string {
	hash := sha256.Sum256([]byte(filepath.Base(filepath.Clean(name))))
	return prefix + hex.EncodeToString(hash[:])
}

// ChunkID returns a stable UUID for chunk number seq of source.
// Re-ingesting the same file yields the same IDs, so upserts overwrite instead of duplicating.
func ChunkID(source string, seq int) string {
	return uuid.NewSHA1(namespace, []byte(FileDocID(source)+"#"+strconv.Itoa(seq))).String()
}
