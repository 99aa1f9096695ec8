//go:build linux

package disk

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/meigma/arcfs/internal/fstype"
)

const mountTable = "/proc/self/mounts"

// MountPoints lists mounted block-device filesystems, plus the root mount.
func (r *Reader) MountPoints() ([]fstype.MountPoint, error) {
	f, err := os.Open(mountTable)
	if err != nil {
		return r.rootMount()
	}
	defer f.Close()

	var mounts []fstype.MountPoint
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		device, dir, fsType := fields[0], unescape(fields[1]), fields[2]
		if seen[dir] || (dir != "/" && !strings.HasPrefix(device, "/")) {
			continue
		}
		mp, err := mountPoint(device, fsType, dir)
		if err != nil {
			r.log().Debug("skipping mount", "dir", dir, "error", err)
			continue
		}
		seen[dir] = true
		mounts = append(mounts, mp)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(mounts) == 0 {
		return r.rootMount()
	}
	return mounts, nil
}

func (r *Reader) rootMount() ([]fstype.MountPoint, error) {
	mp, err := mountPoint("/", "", "/")
	if err != nil {
		return nil, err
	}
	return []fstype.MountPoint{mp}, nil
}

func mountPoint(device, fsType, dir string) (fstype.MountPoint, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return fstype.MountPoint{}, err
	}
	e, err := stat(dir)
	if err != nil {
		return fstype.MountPoint{}, err
	}
	bsize := uint64(st.Bsize) //nolint:gosec // block size is positive
	return fstype.MountPoint{
		Device:      device,
		Description: fsType,
		Mount:       e,
		Size:        st.Blocks * bsize,
		Free:        st.Bavail * bsize,
	}, nil
}

// unescape decodes the octal escapes the kernel uses for blanks in
// mount paths, such as "\040" for a space.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
