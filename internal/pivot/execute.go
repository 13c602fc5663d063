package pivot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/ananthb/xenomorph/internal/mount"
	"github.com/ananthb/xenomorph/internal/sysflags"
)

// ErrExecFailed is raised if execve returns instead of replacing the
// process image.
var ErrExecFailed = errors.New("pivot: exec failed to replace process image")

// ExecuteOptions are C7 Execute's inputs.
type ExecuteOptions struct {
	NewRoot      string
	OldRootMount string
	ExecCmd      string
	ExecArgs     []string
	KeepOldRoot  bool
}

// Execute commits the pivot, per spec.md §4.7.2. After this stage there is
// no rollback.
func Execute(opts ExecuteOptions) error {
	info, err := os.Stat(opts.NewRoot)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("pivot: execute: new root is not a directory: %w", err)
	}

	oldRootAbs, err := securejoin.SecureJoin(opts.NewRoot, opts.OldRootMount)
	if err != nil {
		return fmt.Errorf("pivot: execute: resolve old root mount: %w", err)
	}
	if err := os.MkdirAll(oldRootAbs, 0o700); err != nil {
		return fmt.Errorf("pivot: execute: create old root mount dir: %w", err)
	}

	if err := mount.MakePrivate("/"); err != nil {
		log.Warn("make-private / failed, continuing", "error", err)
	}
	if err := mount.MakePrivate(opts.NewRoot); err != nil {
		log.Warn("make-private new root failed, continuing", "error", err)
	}

	if err := sysflags.PivotRoot(opts.NewRoot, oldRootAbs); err != nil {
		log.Warn("pivot_root failed, falling back to switch_root-style chroot", "error", err)
		return executeFallback(opts)
	}

	if err := sysflags.Chdir("/"); err != nil {
		return fmt.Errorf("pivot: execute: chdir after pivot_root: %w", err)
	}

	if !opts.KeepOldRoot {
		if err := CleanupOldRoot(filepath.Join("/", opts.OldRootMount), false); err != nil {
			log.Warn("old root cleanup failed, continuing", "error", err)
		}
	}

	return execInto(opts)
}

// executeFallback mirrors busybox switch_root: chdir(new_root),
// mount(".", "/", MOVE), chroot("."), chdir("/"). Semantically weaker (no
// old root preserved) but necessary when new_root is itself the initramfs.
func executeFallback(opts ExecuteOptions) error {
	if err := sysflags.Chdir(opts.NewRoot); err != nil {
		return fmt.Errorf("pivot: execute: switch_root fallback chdir: %w", err)
	}
	if err := sysflags.Mount(".", "/", "", sysflags.EncodeMount(sysflags.MOVE), ""); err != nil {
		return fmt.Errorf("pivot: execute: switch_root fallback mount move: %w", err)
	}
	if err := sysflags.Chroot("."); err != nil {
		return fmt.Errorf("pivot: execute: switch_root fallback chroot: %w", err)
	}
	if err := sysflags.Chdir("/"); err != nil {
		return fmt.Errorf("pivot: execute: switch_root fallback chdir /: %w", err)
	}
	return execInto(opts)
}

// execInto execve's into ExecCmd if set; it must not return on success.
func execInto(opts ExecuteOptions) error {
	if opts.ExecCmd == "" {
		return nil
	}
	argv := append([]string{opts.ExecCmd}, opts.ExecArgs...)
	err := syscall.Exec(opts.ExecCmd, argv, os.Environ())
	return fmt.Errorf("%w: %v", ErrExecFailed, err)
}
