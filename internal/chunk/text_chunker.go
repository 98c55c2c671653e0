package chunk

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/fingerprint"
)

// binarySniffLen is how many leading bytes are inspected for NUL bytes.
const binarySniffLen = 512

// TextChunker splits plain text into fixed-size windows with overlap.
// Window boundaries prefer newlines, then spaces, so chunks tend to break at
// natural seams instead of mid-word.
type TextChunker struct {
	maxChars int
	overlap  int
}

// NewTextChunker returns a chunker with the given window and overlap sizes.
// Zero or negative values fall back to the defaults.
func NewTextChunker(maxChars, overlap int) *TextChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	if overlap < 0 || overlap >= maxChars {
		overlap = DefaultOverlapChars
	}
	return &TextChunker{maxChars: maxChars, overlap: overlap}
}

// MaxChunkChars returns the upper bound on chunk text length.
func (c *TextChunker) MaxChunkChars() int {
	return c.maxChars
}

// Split returns the chunk texts for content, in order. Empty or
// whitespace-only content yields no chunks.
func (c *TextChunker) Split(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []string
	runes := []rune(text)
	start := 0

	for start < len(runes) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + c.maxChars
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer breaking on a newline, then a space, within the back
		// half of the window.
		cut := end
		window := runes[start:end]
		if idx := lastIndexRune(window, '\n'); idx >= c.maxChars/2 {
			cut = start + idx + 1
		} else if idx := lastIndexRune(window, ' '); idx >= c.maxChars/2 {
			cut = start + idx + 1
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - c.overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks, nil
}

func lastIndexRune(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

// ReadFile loads a file for chunking, rejecting binary content. The returned
// bool is false when the file is empty or whitespace-only (the file is
// skipped, not an error).
func ReadFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeFileUnreadable, err)
	}

	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return "", false, errors.New(errors.ErrCodeChunkingFailed,
			fmt.Sprintf("binary content in %s", path), nil)
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", false, nil
	}
	return string(data), true, nil
}

// File reads, splits, and assembles the chunks for one file.
func File(ctx context.Context, c Chunker, absPath, logicalPath, fileHash string) ([]Chunk, error) {
	text, ok, err := ReadFile(absPath)
	if err != nil || !ok {
		return nil, err
	}

	if fileHash == "" {
		fileHash = fingerprint.HashText(text)
	}

	texts, err := c.Split(ctx, text)
	if err != nil {
		return nil, err
	}
	return Build(texts, fileHash, logicalPath), nil
}
