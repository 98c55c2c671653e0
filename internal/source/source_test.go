package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/ragsync/ragsync/internal/errors"
)

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("docs.zip"))
	assert.True(t, IsArchive("repo.tar.gz"))
	assert.True(t, IsArchive("repo.TGZ"))
	assert.True(t, IsArchive("data.tar.xz"))
	assert.False(t, IsArchive("notes.txt"))
	assert.False(t, IsArchive("gzip"))
}

func TestIsGitURL(t *testing.T) {
	assert.True(t, IsGitURL("https://github.com/acme/widgets.git"))
	assert.True(t, IsGitURL("git@github.com:acme/widgets.git"))
	assert.False(t, IsGitURL("/tmp/local/dir"))
}

func TestRepoName(t *testing.T) {
	assert.Equal(t, "widgets", RepoName("https://github.com/acme/widgets.git"))
	assert.Equal(t, "widgets", RepoName("https://github.com/acme/widgets"))
	assert.Equal(t, "widgets", RepoName("git@github.com:acme/widgets.git"))
	assert.Equal(t, "widgets", RepoName("https://github.com/acme/widgets/"))
}

func TestDirectory_PrefixNormalized(t *testing.T) {
	acq := Directory("/data/docs", "docs")
	require.Len(t, acq.Trees, 1)
	assert.Equal(t, "docs/", acq.Trees[0].Prefix)
	assert.False(t, acq.Trees[0].Flat)

	flat := FlatDirectory("/data/docs")
	assert.True(t, flat.Trees[0].Flat)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestArchive_ZipLooseFilesFlat(t *testing.T) {
	// Given a zip of loose files with no embedded repository
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "docs.zip")
	writeZip(t, zipPath, map[string]string{
		"readme.md":    "hello",
		"sub/note.txt": "nested",
	})

	// When it is acquired
	acq, err := Archive(context.Background(), zipPath)
	require.NoError(t, err)
	defer acq.Cleanup()

	// Then a single flat tree holds the extracted files
	require.Len(t, acq.Trees, 1)
	assert.True(t, acq.Trees[0].Flat)

	data, err := os.ReadFile(filepath.Join(acq.Trees[0].Root, "readme.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(filepath.Join(acq.Trees[0].Root, "sub", "note.txt"))
	assert.NoError(t, err)
}

func TestArchive_TarGzEmbeddedRepos(t *testing.T) {
	// Given a tarball holding two repo directories (marked by .git)
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "repos.tar.gz")
	writeTarGz(t, tarPath, map[string]string{
		"alpha/.git/HEAD": "ref: refs/heads/main",
		"alpha/main.go":   "package main",
		"beta/.git/HEAD":  "ref: refs/heads/main",
		"beta/lib.py":     "x = 1",
	})

	acq, err := Archive(context.Background(), tarPath)
	require.NoError(t, err)
	defer acq.Cleanup()

	// Then each repo becomes a prefix-scoped tree named after its directory
	require.Len(t, acq.Trees, 2)
	prefixes := []string{acq.Trees[0].Prefix, acq.Trees[1].Prefix}
	assert.ElementsMatch(t, []string{"alpha/", "beta/"}, prefixes)
	for _, tree := range acq.Trees {
		assert.False(t, tree.Flat)
	}
}

func TestArchive_MixedContentsAddsFlatTree(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "mixed.zip")
	writeZip(t, zipPath, map[string]string{
		"alpha/.git/HEAD": "ref: refs/heads/main",
		"alpha/main.go":   "package main",
		"loose.txt":       "loose",
	})

	acq, err := Archive(context.Background(), zipPath)
	require.NoError(t, err)
	defer acq.Cleanup()

	require.Len(t, acq.Trees, 2)
	assert.Equal(t, "alpha/", acq.Trees[0].Prefix)
	assert.True(t, acq.Trees[1].Flat)
	assert.Equal(t, []string{"alpha/**"}, acq.Trees[1].Exclude)
}

func TestArchive_RejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../escape.txt": "bad",
	})

	_, err := Archive(context.Background(), zipPath)
	require.Error(t, err)
	assert.Equal(t, syncerrors.ErrCodeArchiveExtract, syncerrors.GetCode(err))
}

func TestArchive_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.rar")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := Archive(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, syncerrors.ErrCodeArchiveExtract, syncerrors.GetCode(err))
}

func TestArchive_CleanupRemovesTempDir(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "docs.zip")
	writeZip(t, zipPath, map[string]string{"a.txt": "a"})

	acq, err := Archive(context.Background(), zipPath)
	require.NoError(t, err)

	root := acq.Trees[0].Root
	acq.Cleanup()
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestClone_LocalRepo(t *testing.T) {
	src := initLocalRepo(t)

	acq, err := Clone(context.Background(), src)
	require.NoError(t, err)
	defer acq.Cleanup()

	require.Len(t, acq.Trees, 1)
	assert.Equal(t, filepath.Base(src)+"/", acq.Trees[0].Prefix)
	_, err = os.Stat(filepath.Join(acq.Trees[0].Root, "main.go"))
	assert.NoError(t, err)
}

func TestClone_BadURL(t *testing.T) {
	_, err := Clone(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, syncerrors.ErrCodeCloneFailed, syncerrors.GetCode(err))
}

type fakeS3 struct {
	objects   map[string]string
	pageSize  int
	listCalls int
}

func (f *fakeS3) sortedKeys() []string {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	keys := f.sortedKeys()
	start := 0
	if params.ContinuationToken != nil {
		for i, k := range keys {
			if k == aws.ToString(params.ContinuationToken) {
				start = i
				break
			}
		}
	}

	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(params.Prefix)
	matched := 0
	for i := start; i < len(keys); i++ {
		if !strings.HasPrefix(keys[i], prefix) {
			continue
		}
		if f.pageSize > 0 && matched == f.pageSize {
			out.NextContinuationToken = aws.String(keys[i])
			break
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(keys[i])})
		matched++
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := ParseS3URL("s3://corpus/docs/api")
	require.NoError(t, err)
	assert.Equal(t, "corpus", bucket)
	assert.Equal(t, "docs/api", prefix)

	_, _, err = ParseS3URL("https://corpus/docs")
	assert.Error(t, err)
	_, _, err = ParseS3URL("s3://")
	assert.Error(t, err)
}

func TestDownloadS3_PrefixScopedTree(t *testing.T) {
	// Given a bucket with objects under and outside the prefix
	fake := &fakeS3{objects: map[string]string{
		"docs/api/index.md":     "index",
		"docs/api/ref/types.md": "types",
		"docs/other.md":         "other",
	}}

	// When the prefix is downloaded
	acq, err := DownloadS3(context.Background(), fake, "s3://corpus/docs/api")
	require.NoError(t, err)
	defer acq.Cleanup()

	// Then the tree is named after the last prefix segment and holds only
	// the matching objects with key structure preserved
	require.Len(t, acq.Trees, 1)
	assert.Equal(t, "api/", acq.Trees[0].Prefix)

	data, err := os.ReadFile(filepath.Join(acq.Trees[0].Root, "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "index", string(data))
	_, err = os.Stat(filepath.Join(acq.Trees[0].Root, "ref", "types.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(acq.Trees[0].Root, "other.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadS3_Paginates(t *testing.T) {
	fake := &fakeS3{
		pageSize: 2,
		objects: map[string]string{
			"d/a.txt": "a",
			"d/b.txt": "b",
			"d/c.txt": "c",
			"d/e.txt": "e",
			"d/f.txt": "f",
		},
	}

	acq, err := DownloadS3(context.Background(), fake, "s3://bkt/d")
	require.NoError(t, err)
	defer acq.Cleanup()

	entries, err := os.ReadDir(acq.Trees[0].Root)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Greater(t, fake.listCalls, 1)
}

func TestDownloadS3_EmptyPrefix(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}

	_, err := DownloadS3(context.Background(), fake, "s3://bkt/none")
	require.Error(t, err)
	assert.Equal(t, syncerrors.ErrCodeDownloadFailed, syncerrors.GetCode(err))
}
