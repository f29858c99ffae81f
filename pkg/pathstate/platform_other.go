//go:build !linux && !darwin

package pathstate

import "os"

// DevIno is the non-Unix stub: Windows file identity is not exposed via
// os.FileInfo without additional syscalls the core does not need, so the
// dcode-cache-aliasing mitigation of spec.md §9(c) is Unix-only.
type DevIno struct{}

func (ps *State) DevIno() DevIno { return ps.devIno }

func augmentPlatform(ps *State, fi os.FileInfo) {}

func lookupFSName(path string) string { return "" }
