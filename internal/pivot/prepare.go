// Package pivot is the pivot orchestrator (C7): prepares a new root's
// submounts, commits via pivot_root (falling back to switch_root-style
// chroot), and optionally cleans up the old root.
package pivot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ananthb/xenomorph/internal/mount"
	"github.com/ananthb/xenomorph/internal/sysflags"
	"github.com/ananthb/xenomorph/internal/verify"
	"github.com/ananthb/xenomorph/internal/xlog"
)

var log = xlog.Scope("pivot")

// PrepareOptions are C7 Prepare's inputs.
type PrepareOptions struct {
	NewRoot         string
	SkipVerify      bool
	CreateNamespace bool
}

// PrepareResult is C7 Prepare's output.
type PrepareResult struct {
	PreparedNewRoot   string
	NamespaceCreated bool
}

type submount struct {
	target string
	fstype string
	bind   bool
	// tolerant permits a missing source to be a no-op instead of fatal.
	tolerant bool
}

// essentialSubmounts is spec.md §4.7.1's table of submounts set up under
// new_root.
var essentialSubmounts = []submount{
	{target: "dev", bind: true},
	{target: "proc", fstype: "proc"},
	{target: "sys", fstype: "sysfs"},
	{target: "run", bind: true, tolerant: true},
}

// Prepare runs spec.md §4.7.1's ordered steps, failing on first error.
func Prepare(opts PrepareOptions) (*PrepareResult, error) {
	if !opts.SkipVerify {
		res, err := verify.Verify(opts.NewRoot)
		if err != nil {
			return nil, fmt.Errorf("pivot: prepare: verify: %w", err)
		}
		if !res.Valid {
			return nil, fmt.Errorf("pivot: prepare: new root failed verification: %v", res.Errors)
		}
	}

	namespaceCreated := false
	if opts.CreateNamespace {
		if err := sysflags.Unshare(sysflags.EncodeUnshare(sysflags.NEWNS)); err != nil {
			return nil, fmt.Errorf("pivot: prepare: unshare mount namespace: %w", err)
		}
		if err := mount.MakePrivate("/"); err != nil {
			return nil, fmt.Errorf("pivot: prepare: make root private: %w", err)
		}
		namespaceCreated = true
	}

	if err := mount.EnsureMountPoint(opts.NewRoot); err != nil {
		return nil, fmt.Errorf("pivot: prepare: ensure new root is a mount point: %w", err)
	}

	for _, sm := range essentialSubmounts {
		src := filepath.Join("/", sm.target)
		tgt := filepath.Join(opts.NewRoot, sm.target)

		if sm.bind {
			if _, err := os.Stat(src); err != nil {
				if sm.tolerant {
					log.Warn("essential submount source missing, tolerated", "src", src)
					continue
				}
				return nil, fmt.Errorf("pivot: prepare: submount %s: %w", sm.target, err)
			}
		}

		if err := mount.EnsureDir(tgt); err != nil {
			if sm.tolerant {
				log.Warn("essential submount target could not be created, tolerated", "tgt", tgt, "error", err)
				continue
			}
			return nil, fmt.Errorf("pivot: prepare: ensure dir %s: %w", tgt, err)
		}

		var err error
		if sm.bind {
			err = mount.RBind(src, tgt)
		} else {
			err = sysflags.Mount(sm.fstype, tgt, sm.fstype, 0, "")
		}
		if err != nil {
			if sm.tolerant {
				log.Warn("essential submount failed, tolerated", "tgt", tgt, "error", err)
				continue
			}
			return nil, fmt.Errorf("pivot: prepare: mount %s: %w", sm.target, err)
		}
	}

	return &PrepareResult{PreparedNewRoot: opts.NewRoot, NamespaceCreated: namespaceCreated}, nil
}
