package mount

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMounts(t *testing.T) {
	mounts, err := ReadMounts()
	if err != nil {
		t.Fatalf("ReadMounts: %v", err)
	}
	if len(mounts) == 0 {
		t.Fatal("expected at least one mount entry from /proc/mounts")
	}
	for _, m := range mounts {
		if m.Target == "" || m.FSType == "" {
			t.Fatalf("incomplete mount entry: %+v", m)
		}
	}
}

func TestIsMountPointFalseForPlainDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "plain")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	isMP, err := IsMountPoint(sub)
	if err != nil {
		t.Fatalf("IsMountPoint: %v", err)
	}
	if isMP {
		t.Fatal("plain subdirectory should not report as a mount point")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a", "b", "c")
	if err := EnsureDir(target); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}
