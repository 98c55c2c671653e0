// Package chunk splits file content into the text units that get embedded.
//
// Chunking is pure and deterministic: the same file bytes always produce the
// same chunk texts in the same order, which together with content-derived
// chunk ids makes re-ingestion idempotent.
package chunk

import (
	"context"

	"github.com/google/uuid"

	"github.com/ragsync/ragsync/internal/fingerprint"
)

// Chunk size defaults. Targets roughly 500 tokens per chunk at the usual
// 4-chars-per-token approximation.
const (
	DefaultMaxChunkChars = 2000
	DefaultOverlapChars  = 200
	MinChunkChars        = 50
)

// Chunk is one embeddable unit of a file.
type Chunk struct {
	ID          uuid.UUID // deterministic, derived from (FileHash, Index)
	Index       int       // 0-based position within the file
	FileHash    string    // hex SHA-256 of the whole file
	ChunkHash   string    // hex SHA-256 of Text
	Text        string
	LogicalPath string
}

// Chunker splits file text into ordered chunks.
type Chunker interface {
	// Split returns the chunk texts for the given content, in order.
	Split(ctx context.Context, text string) ([]string, error)

	// MaxChunkChars returns the upper bound on chunk text length.
	MaxChunkChars() int
}

// Build assembles full Chunk records from split texts. Ids follow the
// UUIDv5-over-(file hash, index) scheme, so replaying the same content
// upserts the same points.
func Build(texts []string, fileHash, logicalPath string) []Chunk {
	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, Chunk{
			ID:          fingerprint.ChunkID(fileHash, i),
			Index:       i,
			FileHash:    fileHash,
			ChunkHash:   fingerprint.HashText(text),
			Text:        text,
			LogicalPath: logicalPath,
		})
	}
	return chunks
}
