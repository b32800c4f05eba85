//go:build linux

package scanner

import (
	"os"
	"syscall"
	"time"
)

// createdTime extracts the inode change time, the closest Linux has to a
// creation timestamp.
func createdTime(info os.FileInfo) (time.Time, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(st.Ctim.Sec, st.Ctim.Nsec), true
}
