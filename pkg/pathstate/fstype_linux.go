//go:build linux

package pathstate

import (
	"fmt"
	"syscall"
)

// magicToName covers the filesystem types likely to host a build tree;
// anything unrecognized reports as a hex magic number rather than "".
var magicToName = map[int64]string{
	0xEF53:     "ext4",
	0x6969:     "nfs",
	0x01021994: "tmpfs",
	0x58465342: "xfs",
	0x9123683E: "btrfs",
	0x65735546: "fuse",
	0x794c7630: "overlayfs",
}

func fsTypeName(st *syscall.Statfs_t) string {
	if name, ok := magicToName[int64(st.Type)]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", st.Type)
}
