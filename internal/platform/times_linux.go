//go:build linux

package platform

import (
	"io/fs"
	"syscall"
	"time"
)

// FileTimes returns the access and status-change times recorded in info.
// It falls back to the modification time when the platform data is missing.
func FileTimes(info fs.FileInfo) (atime, ctime time.Time) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Atim.Unix()), time.Unix(stat.Ctim.Unix())
	}
	return info.ModTime(), info.ModTime()
}
