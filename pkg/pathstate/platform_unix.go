//go:build linux || darwin

package pathstate

import (
	"os"
	"syscall"
)

// DevIno identifies a file by device+inode, used to mitigate the
// dcode-cache mtime-aliasing risk noted in spec.md §9 Open Question (c):
// two distinct files can share a sub-second mtime, but not a (dev, ino)
// pair while both exist.
type DevIno struct {
	Dev uint64
	Ino uint64
}

// DevIno returns the (device, inode) pair captured at snapshot time, or
// the zero value if it was never captured (e.g. a deserialized State).
func (ps *State) DevIno() DevIno {
	return ps.devIno
}

func augmentPlatform(ps *State, fi os.FileInfo) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		ps.devIno = DevIno{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}
	}
}

func lookupFSName(path string) string {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return ""
	}
	return fsTypeName(&st)
}
