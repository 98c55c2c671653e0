package source

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/ragsync/ragsync/internal/errors"
)

// archiveExtensions maps recognised archive suffixes to their format.
var archiveExtensions = []string{
	".zip",
	".tar.gz", ".tgz",
	".tar.bz2", ".tbz2",
	".tar.xz", ".txz",
	".tar",
}

// IsArchive reports whether the filename has a recognised archive suffix.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Archive extracts an archive to a temp directory and analyzes its
// contents. Directories containing a .git entry become repo-scoped trees
// named after the directory; everything else forms one flat tree rooted at
// the extraction directory.
func Archive(ctx context.Context, path string) (*Acquisition, error) {
	tempDir, err := os.MkdirTemp("", "ragsync-archive-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}

	if err := extract(ctx, path, tempDir); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}

	acq := &Acquisition{tempDir: tempDir}
	acq.Trees, err = analyzeContents(tempDir)
	if err != nil {
		acq.Cleanup()
		return nil, err
	}

	slog.Info("archive extracted",
		slog.String("archive", filepath.Base(path)),
		slog.Int("trees", len(acq.Trees)))
	return acq, nil
}

// analyzeContents finds embedded repositories (directories holding .git)
// and decides whether a flat tree of loose files remains.
func analyzeContents(root string) ([]Tree, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}

	var trees []Tree
	var repoGlobs []string
	loose := false

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if !entry.IsDir() {
			loose = true
			continue
		}

		gitDir := filepath.Join(root, entry.Name(), ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			trees = append(trees, Tree{
				Root:   filepath.Join(root, entry.Name()),
				Prefix: entry.Name() + "/",
			})
			repoGlobs = append(repoGlobs, entry.Name()+"/**")
			continue
		}
		loose = true
	}

	if loose || len(trees) == 0 {
		// Each repo directory is walked separately under its own prefix.
		// The flat tree walks from the extraction root and must not
		// revisit them: a flat pass over a repo file would rewrite its
		// point's file_path to the bare basename and break re-sync
		// convergence. Repo roots are therefore excluded by glob.
		trees = append(trees, Tree{Root: root, Flat: true, Exclude: repoGlobs})
	}
	return trees, nil
}

// extract dispatches on the archive suffix.
func extract(ctx context.Context, path, dest string) error {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(ctx, path, dest)
	case strings.HasSuffix(lower, ".tar"):
		return withFile(path, func(f *os.File) error {
			return extractTar(ctx, f, dest)
		})
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return withFile(path, func(f *os.File) error {
			gz, err := gzip.NewReader(f)
			if err != nil {
				return errors.Wrap(errors.ErrCodeArchiveExtract, err)
			}
			defer gz.Close()
			return extractTar(ctx, gz, dest)
		})
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return withFile(path, func(f *os.File) error {
			return extractTar(ctx, bzip2.NewReader(f), dest)
		})
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return withFile(path, func(f *os.File) error {
			xr, err := xz.NewReader(f)
			if err != nil {
				return errors.Wrap(errors.ErrCodeArchiveExtract, err)
			}
			return extractTar(ctx, xr, dest)
		})
	default:
		return errors.New(errors.ErrCodeArchiveExtract,
			fmt.Sprintf("unsupported archive format: %s", filepath.Base(path)), nil)
	}
}

func withFile(path string, fn func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}
	defer f.Close()
	return fn(f)
}

// securePath joins name under dest, rejecting traversal outside dest.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", errors.New(errors.ErrCodeArchiveExtract,
			fmt.Sprintf("archive entry escapes extraction root: %s", name), nil)
	}
	return target, nil
}

func extractZip(ctx context.Context, path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}
	defer r.Close()

	for _, f := range r.File {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeArchiveExtract, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeArchiveExtract, err)
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchiveExtract, err)
		}
		if err := writeFile(target, rc, f.Mode()); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}
	return nil
}

func extractTar(ctx context.Context, r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchiveExtract, err)
		}

		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeArchiveExtract, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeArchiveExtract, err)
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)&0o777); err != nil {
				return err
			}
		default:
			// Symlinks and special files in archives are dropped
			slog.Debug("archive entry skipped",
				slog.String("name", hdr.Name),
				slog.Int("type", int(hdr.Typeflag)))
		}
	}
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Wrap(errors.ErrCodeArchiveExtract, err)
	}
	return out.Close()
}
