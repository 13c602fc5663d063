package pivot

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ananthb/xenomorph/internal/mount"
)

const (
	quiesceRetries  = 10
	quiesceInterval = 500 * time.Millisecond
)

// CleanupOldRoot implements spec.md §4.7.3: unmount everything under
// oldRootPath deepest-first, then remove the directory itself (an rmdir
// failure is only logged).
// graceful polls briefly for mounts to become unmountable before forcing a
// lazy detach.
func CleanupOldRoot(oldRootPath string, graceful bool) error {
	targets, err := mountsUnder(oldRootPath)
	if err != nil {
		return err
	}

	sort.Slice(targets, func(i, j int) bool {
		return len(targets[i]) > len(targets[j])
	})

	for _, target := range targets {
		if err := unmount(target, graceful); err != nil {
			log.Warn("old root unmount failed, continuing", "target", target, "error", err)
		}
	}

	if err := os.Remove(oldRootPath); err != nil && !os.IsNotExist(err) {
		log.Warn("old root rmdir failed", "path", oldRootPath, "error", err)
	}
	return nil
}

func mountsUnder(prefix string) ([]string, error) {
	mounts, err := mount.ReadMounts()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range mounts {
		if strings.HasPrefix(m.Target, prefix) {
			out = append(out, m.Target)
		}
	}
	return out, nil
}

// unmount tries a plain unmount of target, retrying on any failure when
// graceful is set (a process may still hold a reference under old_root
// briefly after termination), then falls back to a lazy detach regardless.
func unmount(target string, graceful bool) error {
	retries := 1
	if graceful {
		retries = quiesceRetries
	}
	var lastErr error
	for i := 0; i < retries; i++ {
		if err := mount.Umount(target); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(quiesceInterval)
	}
	if err := mount.UmountDetach(target); err != nil {
		return err
	}
	log.Warn("old root unmount required lazy detach", "target", target, "plain_unmount_error", lastErr)
	return nil
}
