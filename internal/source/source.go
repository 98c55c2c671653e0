// Package source acquires document sources onto the local filesystem so the
// walker can enumerate them: directories as-is, archives by extraction, git
// repositories by shallow clone, object-storage prefixes by download.
package source

import (
	"os"
	"strings"
)

// Tree is one walkable file tree plus how its logical paths are formed.
type Tree struct {
	// Root is the directory to walk.
	Root string
	// Prefix is prepended to logical paths (repo-scoped trees). Ends with
	// "/" when non-empty.
	Prefix string
	// Flat marks loose-file trees whose logical paths are bare basenames
	// and whose absence never implies deletion.
	Flat bool
	// Exclude holds doublestar globs the walk must skip. Mixed archives
	// use it to keep the flat tree off the embedded repo directories.
	Exclude []string
}

// Acquisition is the result of acquiring a source: one or more trees plus
// the temp space backing them.
type Acquisition struct {
	Trees []Tree

	tempDir string
}

// Cleanup removes any temporary files behind the acquisition.
func (a *Acquisition) Cleanup() {
	if a.tempDir != "" {
		_ = os.RemoveAll(a.tempDir)
	}
}

// Directory wraps an existing directory as a prefix-scoped tree.
func Directory(path, prefix string) *Acquisition {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Acquisition{Trees: []Tree{{Root: path, Prefix: prefix}}}
}

// FlatDirectory wraps an existing directory as a flat tree.
func FlatDirectory(path string) *Acquisition {
	return &Acquisition{Trees: []Tree{{Root: path, Flat: true}}}
}
