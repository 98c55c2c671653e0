package walker

import (
	"path/filepath"
	"strings"
)

// skipDirs are well-known build, VCS, and cache directories that are never
// walked.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	".env":          true,
	"dist":          true,
	"build":         true,
	"target":        true,
	"vendor":        true,
	".cache":        true,
	".pytest_cache": true,
	".mypy_cache":   true,
	".tox":          true,
	"htmlcov":       true,
	".idea":         true,
	".vscode":       true,
	".terraform":    true,
	"site-packages": true,
}

// skipExtensions are compiled and binary artefact extensions.
var skipExtensions = map[string]bool{
	".pyc":   true,
	".pyo":   true,
	".so":    true,
	".dylib": true,
	".dll":   true,
	".exe":   true,
	".bin":   true,
	".class": true,
	".o":     true,
	".a":     true,
	".obj":   true,
	".lib":   true,
	".wasm":  true,
}

// skipNames are OS and VCS metadata files.
var skipNames = map[string]bool{
	".DS_Store":      true,
	"Thumbs.db":      true,
	".gitignore":     true,
	".gitkeep":       true,
	".gitmodules":    true,
	".gitattributes": true,
}

func shouldSkipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	return strings.HasSuffix(name, ".egg-info")
}

func shouldSkipFile(name string) bool {
	if skipNames[name] {
		return true
	}
	return skipExtensions[strings.ToLower(filepath.Ext(name))]
}
