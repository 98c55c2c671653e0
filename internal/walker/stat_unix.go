//go:build unix

package walker

import (
	"os"
	"syscall"
)

// fileID identifies a file by device and inode, used to break symlink
// cycles.
type fileID struct {
	dev uint64
	ino uint64
}

func statID(path string) (fileID, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fileID{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
}
