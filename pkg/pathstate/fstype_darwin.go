//go:build darwin

package pathstate

import "syscall"

func fsTypeName(st *syscall.Statfs_t) string {
	n := 0
	for n < len(st.Fstypename) && st.Fstypename[n] != 0 {
		n++
	}
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(st.Fstypename[i])
	}
	return string(b)
}
