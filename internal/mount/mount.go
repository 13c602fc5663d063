// Package mount is the mount toolbox (C2): bind/rbind/move/tmpfs/umount
// helpers and /proc/mounts introspection, built on internal/sysflags.
package mount

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ananthb/xenomorph/internal/sysflags"
)

// MountInfo is a single /proc/mounts entry, keeping only the four leading
// fields (source, target, fstype, options) and ignoring trailing ones.
type MountInfo struct {
	Source  string
	Target  string
	FSType  string
	Options string
}

// Bind bind-mounts src onto dst.
func Bind(src, dst string) error {
	return sysflags.Mount(src, dst, "", sysflags.EncodeMount(sysflags.BIND), "")
}

// RBind recursively bind-mounts src onto dst.
func RBind(src, dst string) error {
	return sysflags.Mount(src, dst, "", sysflags.EncodeMount(sysflags.BIND, sysflags.REC), "")
}

// Move moves the mount at src to dst.
func Move(src, dst string) error {
	return sysflags.Mount(src, dst, "", sysflags.EncodeMount(sysflags.MOVE), "")
}

// MountTmpfs mounts a tmpfs at target sized sizeBytes with the given mode.
func MountTmpfs(target string, sizeBytes int64, mode os.FileMode) error {
	data := fmt.Sprintf("size=%d,mode=%04o", sizeBytes, mode.Perm())
	return sysflags.Mount("tmpfs", target, "tmpfs", 0, data)
}

// Umount unmounts target.
func Umount(target string) error {
	return sysflags.Umount2(target, 0)
}

// UmountDetach performs a lazy (MNT_DETACH) unmount of target.
func UmountDetach(target string) error {
	return sysflags.Umount2(target, int(sysflags.EncodeUmount2(sysflags.DETACH)))
}

// MakePrivate recursively marks target's mount propagation as private.
func MakePrivate(target string) error {
	return sysflags.Mount("", target, "", sysflags.EncodeMount(sysflags.PRIVATE, sysflags.REC), "")
}

// MakeShared recursively marks target's mount propagation as shared.
func MakeShared(target string) error {
	return sysflags.Mount("", target, "", sysflags.EncodeMount(sysflags.SHARED, sysflags.REC), "")
}

// ReadMounts returns a snapshot of /proc/mounts, tokenized by ASCII space,
// keeping the four leading fields of each entry and ignoring the rest.
func ReadMounts() ([]MountInfo, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("read mounts: %w", err)
	}
	defer f.Close()

	var out []MountInfo
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		out = append(out, MountInfo{
			Source:  fields[0],
			Target:  fields[1],
			FSType:  fields[2],
			Options: fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mounts: %w", err)
	}
	return out, nil
}

// IsMountPoint reports whether path is a mount point, by comparing the
// device ID of path against that of its parent directory.
func IsMountPoint(path string) (bool, error) {
	var st, parentSt syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return false, fmt.Errorf("is mount point %s: %w", path, err)
	}
	parent := filepath.Dir(path)
	if err := syscall.Lstat(parent, &parentSt); err != nil {
		return false, fmt.Errorf("is mount point %s: %w", path, err)
	}
	return st.Dev != parentSt.Dev, nil
}

// EnsureMountPoint bind-mounts path onto itself if it is not already a
// mount point, so later mount operations (e.g. make-private) have a mount
// to act on.
func EnsureMountPoint(path string) error {
	if err := EnsureDir(path); err != nil {
		return err
	}
	isMP, err := IsMountPoint(path)
	if err != nil {
		return err
	}
	if isMP {
		return nil
	}
	return Bind(path, path)
}

// EnsureDir creates path (and parents) if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", path, err)
	}
	return nil
}
