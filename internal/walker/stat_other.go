//go:build !unix

package walker

// fileID identifies a file for cycle detection. Without device/inode
// support cycles are not tracked; symlinked directories are still confined
// to the walk root.
type fileID struct {
	dev uint64
	ino uint64
}

func statID(string) (fileID, bool) {
	return fileID{}, false
}
