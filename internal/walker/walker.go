// Package walker enumerates source files for a sync. It applies the fixed
// skip sets, gitignore rules found in the tree, and optional user glob
// filters, and yields (absolute path, logical path) pairs over a channel.
package walker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragsync/ragsync/internal/ignore"
)

// Entry is one file the walker found.
type Entry struct {
	// AbsPath is the file's location on disk during this sync.
	AbsPath string
	// LogicalPath is the path recorded in the vector store: prefix +
	// slash-separated relative path, or just the basename in flat mode.
	LogicalPath string
	// Seq numbers entries in walk order, starting at 1. Directory
	// listings are sorted, so Seq is deterministic for a given tree and
	// lets consumers resolve flat-mode name collisions consistently.
	Seq int
}

// Result carries either an entry or a per-file error. Errors do not stop
// the walk.
type Result struct {
	Entry Entry
	Err   error
}

// Options configures a walk.
type Options struct {
	// Prefix is prepended to logical paths (repo-scoped mode). Should end
	// with "/" when non-empty.
	Prefix string
	// Flat uses only the file basename as the logical path and implies no
	// prefix.
	Flat bool
	// Include restricts the walk to paths matching any of these doublestar
	// globs. Empty means everything.
	Include []string
	// Exclude drops paths matching any of these doublestar globs.
	Exclude []string
	// IgnoreFile is the name of per-directory ignore files (default
	// ".gitignore"). Empty disables ignore-file handling entirely.
	IgnoreFile string
}

// ignoreCacheSize bounds the parsed ignore-file cache.
const ignoreCacheSize = 256

// Walker walks source trees. It caches parsed ignore files across walks, so
// re-syncing the same root does not re-parse unchanged .gitignore files.
type Walker struct {
	ignoreCache *lru.Cache[string, *ignore.Matcher]
}

// New creates a Walker.
func New() *Walker {
	cache, _ := lru.New[string, *ignore.Matcher](ignoreCacheSize)
	return &Walker{ignoreCache: cache}
}

// Walk enumerates files under root. The returned channel is closed when the
// walk finishes or the context is cancelled.
func (w *Walker) Walk(ctx context.Context, root string, opts Options) (<-chan Result, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source root %s: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", root)
	}

	results := make(chan Result, 64)

	go func() {
		defer close(results)

		st := &walkState{
			walker:  w,
			root:    resolved,
			opts:    opts,
			matcher: ignore.New(),
			visited: make(map[fileID]bool),
			results: results,
		}
		if id, ok := statID(resolved); ok {
			st.visited[id] = true
		}
		st.walkDir(ctx, resolved, "")
	}()

	return results, nil
}

type walkState struct {
	walker  *Walker
	root    string
	opts    Options
	matcher *ignore.Matcher
	visited map[fileID]bool
	results chan<- Result
	seq     int
}

func (s *walkState) emit(ctx context.Context, r Result) bool {
	if r.Err == nil {
		s.seq++
		r.Entry.Seq = s.seq
	}
	select {
	case <-ctx.Done():
		return false
	case s.results <- r:
		return true
	}
}

// walkDir processes one directory. rel is the slash-separated path of dir
// relative to the root ("" for the root itself).
func (s *walkState) walkDir(ctx context.Context, dir, rel string) {
	ignoreName := s.opts.IgnoreFile
	if ignoreName == "" {
		ignoreName = ".gitignore"
	}
	if m := s.walker.loadIgnoreFile(filepath.Join(dir, ignoreName), rel); m != nil {
		s.matcher.Merge(m)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.emit(ctx, Result{Err: fmt.Errorf("failed to read directory %s: %w", dir, err)})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		name := entry.Name()
		childAbs := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		isDir := entry.IsDir()

		// Resolve symlinks, refusing those escaping the root and
		// breaking cycles via device/inode tracking.
		if entry.Type()&os.ModeSymlink != 0 {
			target, ok := s.resolveSymlink(childAbs)
			if !ok {
				continue
			}
			info, err := os.Stat(target)
			if err != nil {
				s.emit(ctx, Result{Err: fmt.Errorf("failed to stat %s: %w", childAbs, err)})
				continue
			}
			isDir = info.IsDir()
			if isDir {
				if id, ok := statID(target); ok {
					if s.visited[id] {
						slog.Debug("symlink cycle broken", slog.String("path", childAbs))
						continue
					}
					s.visited[id] = true
				}
			}
		}

		if isDir {
			if shouldSkipDir(name) || s.matcher.Match(childRel, true) {
				continue
			}
			s.walkDir(ctx, childAbs, childRel)
			continue
		}

		if !entry.Type().IsRegular() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		if shouldSkipFile(name) || s.matcher.Match(childRel, false) {
			continue
		}
		if !s.passesGlobs(childRel) {
			continue
		}

		logical := s.opts.Prefix + childRel
		if s.opts.Flat {
			logical = name
		}

		if !s.emit(ctx, Result{Entry: Entry{AbsPath: childAbs, LogicalPath: logical}}) {
			return
		}
	}
}

// resolveSymlink resolves a symlink and reports whether it stays inside the
// walk root.
func (s *walkState) resolveSymlink(path string) (string, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	if target != s.root && !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		slog.Debug("symlink outside source root skipped",
			slog.String("path", path),
			slog.String("target", target))
		return "", false
	}
	return target, true
}

func (s *walkState) passesGlobs(rel string) bool {
	for _, pattern := range s.opts.Exclude {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return false
		}
	}
	if len(s.opts.Include) == 0 {
		return true
	}
	for _, pattern := range s.opts.Include {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// loadIgnoreFile returns the parsed matcher for one ignore file, cached by
// path and modification time. Returns nil when the file does not exist.
func (w *Walker) loadIgnoreFile(path, base string) *ignore.Matcher {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}

	key := fmt.Sprintf("%s|%d|%d|%s", path, info.Size(), info.ModTime().UnixNano(), base)
	if m, ok := w.ignoreCache.Get(key); ok {
		return m
	}

	m := ignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		slog.Warn("failed to read ignore file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	w.ignoreCache.Add(key, m)
	return m
}
