// Package ignore implements gitignore-style pattern matching for the source
// walker. Pattern syntax follows https://git-scm.com/docs/gitignore: last
// matching rule wins, "!" negates, a trailing "/" restricts to directories,
// and a "/" anywhere else anchors the pattern to the ignore file's
// directory.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// rule is a single parsed ignore pattern.
type rule struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
	base     string // rules from nested ignore files apply under base only
}

// Matcher holds parsed ignore rules. It is immutable after loading, so it is
// safe to share across walker goroutines.
type Matcher struct {
	rules []rule
}

// New creates an empty matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern parses one pattern line scoped to base ("" for the root ignore
// file). Blank lines and comments are dropped.
func (m *Matcher) AddPattern(pattern, base string) {
	pattern = strings.TrimRight(pattern, " \t")
	pattern = strings.TrimLeft(pattern, " \t")

	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := rule{base: strings.Trim(path.Clean("/"+base), "/")}
	if r.base == "." {
		r.base = ""
	}

	if strings.HasPrefix(pattern, `\#`) || strings.HasPrefix(pattern, `\!`) {
		pattern = pattern[1:]
	} else if strings.HasPrefix(pattern, "!") {
		r.negate = true
		pattern = pattern[1:]
	}

	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	// A slash before the final element anchors the pattern: "doc/frotz"
	// means "/doc/frotz", while plain "frotz" matches at any depth.
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		r.anchored = true
	}

	if pattern == "" {
		return
	}
	r.pattern = pattern
	m.rules = append(m.rules, r)
}

// AddFromFile reads patterns from a gitignore-style file, scoping them to
// base (the file's directory relative to the walk root).
func (m *Matcher) AddFromFile(filePath, base string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPattern(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ignore file: %w", err)
	}
	return nil
}

// Merge appends another matcher's rules. Later rules take precedence, so
// merge nested ignore files after their parents.
func (m *Matcher) Merge(other *Matcher) {
	m.rules = append(m.rules, other.rules...)
}

// Len returns the number of loaded rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// Match reports whether relPath (slash-separated, relative to the walk
// root) is ignored. The last matching rule decides, so a later "!" rule can
// re-include a path an earlier rule excluded.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	relPath = strings.Trim(path.Clean("/"+relPath), "/")

	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negate
		}
	}
	return ignored
}

func (r rule) matches(relPath string, isDir bool) bool {
	// Scope nested-file rules to their directory
	if r.base != "" {
		if relPath != r.base && !strings.HasPrefix(relPath, r.base+"/") {
			return false
		}
		relPath = strings.TrimPrefix(strings.TrimPrefix(relPath, r.base), "/")
		if relPath == "" {
			return false
		}
	}

	pattern := r.pattern
	if !r.anchored {
		pattern = "**/" + pattern
	}

	if doublestar.MatchUnvalidated(pattern, relPath) {
		return !r.dirOnly || isDir
	}

	// A pattern matching a directory also matches everything inside it.
	return doublestar.MatchUnvalidated(pattern+"/**", relPath)
}
