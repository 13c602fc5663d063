package rootfs

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

type tarEntry struct {
	name    string
	content string
}

func writeTarEntries(t *testing.T, entries []tarEntry) *tar.Reader {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return tar.NewReader(&buf)
}

func TestExtractLayerPlainFiles(t *testing.T) {
	dir := t.TempDir()
	tr := writeTarEntries(t, []tarEntry{{"a.txt", "hello"}})
	if err := extractLayer(dir, tr); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}

func TestExtractLayerWhiteoutDeletesSibling(t *testing.T) {
	dir := t.TempDir()
	base := writeTarEntries(t, []tarEntry{{"keep.txt", "x"}, {"remove.txt", "y"}})
	if err := extractLayer(dir, base); err != nil {
		t.Fatal(err)
	}

	wh := writeTarEntries(t, []tarEntry{{".wh.remove.txt", ""}})
	if err := extractLayer(dir, wh); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "remove.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected remove.txt to be deleted, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".wh.remove.txt")); !os.IsNotExist(err) {
		t.Fatal("whiteout marker itself must not appear in the final tree")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatal("keep.txt should remain untouched")
	}
}

func TestExtractLayerOpaqueDirRemovesPriorContents(t *testing.T) {
	dir := t.TempDir()
	base := writeTarEntries(t, []tarEntry{
		{"sub/old1.txt", "a"},
		{"sub/old2.txt", "b"},
	})
	if err := extractLayer(dir, base); err != nil {
		t.Fatal(err)
	}

	opaque := writeTarEntries(t, []tarEntry{
		{"sub/.wh..wh..opq", ""},
		{"sub/new.txt", "c"},
	})
	if err := extractLayer(dir, opaque); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sub", "old1.txt")); !os.IsNotExist(err) {
		t.Fatal("opaque marker should have removed old1.txt")
	}
	if _, err := os.Stat(filepath.Join(dir, "sub", ".wh..wh..opq")); !os.IsNotExist(err) {
		t.Fatal("opaque marker itself must not appear in the final tree")
	}
	if data, err := os.ReadFile(filepath.Join(dir, "sub", "new.txt")); err != nil || string(data) != "c" {
		t.Fatalf("expected new.txt to survive, data=%q err=%v", data, err)
	}
}
