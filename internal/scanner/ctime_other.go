//go:build !linux

package scanner

import (
	"os"
	"time"
)

func createdTime(info os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
