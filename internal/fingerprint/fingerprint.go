// Package fingerprint computes content identities for files and chunks.
//
// A file's identity is the SHA-256 of its bytes, streamed in fixed-size
// blocks so memory stays constant for arbitrarily large files. Chunk ids are
// UUIDv5 values derived from the parent file hash and the chunk index, which
// makes upserts into the vector store idempotent: re-syncing identical bytes
// always writes the same point ids.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// BlockSize is the read granularity for streaming file hashes.
const BlockSize = 64 * 1024

// MetadataPointID is the reserved point id for the collection metadata point.
var MetadataPointID = uuid.Nil

// HashFile returns the lowercase hex SHA-256 of the file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashText returns the lowercase hex SHA-256 of the given text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives the deterministic point id for chunk index of the file
// identified by fileHash. The name is "<hex_file_hash>_<index>" hashed into
// the DNS namespace, so any two runs over identical file bytes produce
// identical ids.
func ChunkID(fileHash string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(fileHash+"_"+strconv.Itoa(index)))
}
