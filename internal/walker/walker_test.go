package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, root string, opts Options) (map[string]string, []error) {
	t.Helper()
	w := New()
	results, err := w.Walk(context.Background(), root, opts)
	require.NoError(t, err)

	found := make(map[string]string)
	var errs []error
	for r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		found[r.Entry.LogicalPath] = r.Entry.AbsPath
	}
	return found, errs
}

func TestWalk_PrefixedLogicalPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "src/b.txt", "b")

	found, errs := collect(t, root, Options{Prefix: "repo/"})

	assert.Empty(t, errs)
	assert.Contains(t, found, "repo/a.txt")
	assert.Contains(t, found, "repo/src/b.txt")
	assert.Len(t, found, 2)
}

func TestWalk_FlatModeUsesBasename(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/readme.md", "r")
	writeFile(t, root, "notes.txt", "n")

	found, _ := collect(t, root, Options{Flat: true})

	assert.Contains(t, found, "readme.md")
	assert.Contains(t, found, "notes.txt")
	assert.NotContains(t, found, "docs/readme.md")
}

func TestWalk_SequenceFollowsSortedOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/readme.md", "first")
	writeFile(t, root, "sub/readme.md", "second")
	writeFile(t, root, "zz.txt", "z")

	w := New()
	results, err := w.Walk(context.Background(), root, Options{Flat: true})
	require.NoError(t, err)

	seqs := make(map[string]int)
	last := 0
	for r := range results {
		require.NoError(t, r.Err)
		assert.Greater(t, r.Entry.Seq, last)
		last = r.Entry.Seq
		seqs[r.Entry.AbsPath] = r.Entry.Seq
	}

	// Directory listings are sorted, so sequence order is stable across
	// walks: docs/ before sub/ before the root's loose file
	assert.Less(t, seqs[filepath.Join(root, "docs", "readme.md")], seqs[filepath.Join(root, "sub", "readme.md")])
	assert.Less(t, seqs[filepath.Join(root, "sub", "readme.md")], seqs[filepath.Join(root, "zz.txt")])
}

func TestWalk_SkipsWellKnownDirsAndFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "x")
	writeFile(t, root, ".git/config", "x")
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, "__pycache__/mod.pyc", "x")
	writeFile(t, root, "lib.so", "x")
	writeFile(t, root, ".DS_Store", "x")
	writeFile(t, root, "mypkg.egg-info/PKG-INFO", "x")

	found, errs := collect(t, root, Options{})

	assert.Empty(t, errs)
	assert.Equal(t, map[string]bool{"keep.go": true}, keys(found))
}

func TestWalk_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\nsecret/\n")
	writeFile(t, root, "app.log", "x")
	writeFile(t, root, "secret/key.pem", "x")
	writeFile(t, root, "main.go", "x")

	found, _ := collect(t, root, Options{})

	assert.Equal(t, map[string]bool{"main.go": true}, keys(found))
}

func TestWalk_NestedGitignoreScoped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sub/.gitignore", "*.tmp\n")
	writeFile(t, root, "sub/x.tmp", "x")
	writeFile(t, root, "sub/y.txt", "y")
	writeFile(t, root, "z.tmp", "z")

	found, _ := collect(t, root, Options{})

	// sub's rule applies only under sub/
	assert.Equal(t, map[string]bool{"sub/y.txt": true, "z.tmp": true}, keys(found))
}

func TestWalk_IncludeExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "x")
	writeFile(t, root, "b.md", "x")
	writeFile(t, root, "sub/c.go", "x")
	writeFile(t, root, "sub/skip_test.go", "x")

	found, _ := collect(t, root, Options{
		Include: []string{"**/*.go"},
		Exclude: []string{"**/*_test.go"},
	})

	assert.Equal(t, map[string]bool{"a.go": true, "sub/c.go": true}, keys(found))
}

func TestWalk_SymlinkOutsideRootSkipped(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, outside, "external.txt", "x")

	root := t.TempDir()
	writeFile(t, root, "inside.txt", "x")
	require.NoError(t, os.Symlink(filepath.Join(outside, "external.txt"), filepath.Join(root, "link.txt")))

	found, errs := collect(t, root, Options{})

	assert.Empty(t, errs)
	assert.Equal(t, map[string]bool{"inside.txt": true}, keys(found))
}

func TestWalk_SymlinkCycleBroken(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dir/a.txt", "x")
	// dir/loop -> dir creates a cycle
	require.NoError(t, os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dir", "loop")))

	start := time.Now()
	found, _ := collect(t, root, Options{})

	assert.Contains(t, found, "dir/a.txt")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWalk_MissingRoot(t *testing.T) {
	w := New()
	_, err := w.Walk(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}

func TestWalk_Cancellation(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFile(t, root, filepath.Join("d", string(rune('a'+i%26))+".txt"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New()
	results, err := w.Walk(ctx, root, Options{})
	require.NoError(t, err)

	count := 0
	for range results {
		count++
	}
	// The channel closes promptly; a few buffered entries may slip through.
	assert.Less(t, count, 50)
}

func keys(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
