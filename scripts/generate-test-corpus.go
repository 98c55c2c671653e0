//go:build ignore

// Generates a synthetic text corpus for sync benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	avgSize   = flag.Int("size", 3000, "Average file size in characters")
)

var words = strings.Fields(`the quick brown fox jumps over lazy dog while
embedding vectors stream through bounded channels into a collection of
points each carrying a deterministic identity derived from content`)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numFiles; i++ {
		dir := filepath.Join(*outputDir, fmt.Sprintf("pkg%02d", i%20))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		size := *avgSize/2 + rng.Intn(*avgSize)
		var sb strings.Builder
		for sb.Len() < size {
			sb.WriteString(words[rng.Intn(len(words))])
			if rng.Intn(12) == 0 {
				sb.WriteByte('\n')
			} else {
				sb.WriteByte(' ')
			}
		}

		path := filepath.Join(dir, fmt.Sprintf("doc%04d.txt", i))
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Printf("generated %d files under %s\n", *numFiles, *outputDir)
}
