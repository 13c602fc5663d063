package rootfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectKindBySuffix(t *testing.T) {
	cases := map[string]Kind{
		"image.tar":    KindTarball,
		"image.tar.gz": KindTarball,
		"image.tgz":    KindTarball,
		"alpine:latest": KindRegistry,
	}
	for ref, want := range cases {
		if got := DetectKind(ref); got != want {
			t.Errorf("DetectKind(%q) = %v, want %v", ref, got, want)
		}
	}
}

func TestDetectKindOCILayoutDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "oci-layout"), []byte(`{"imageLayoutVersion":"1.0.0"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := DetectKind(dir); got != KindOCILayout {
		t.Errorf("DetectKind(%q) = %v, want KindOCILayout", dir, got)
	}
}

func TestEstimateImageSizeUncompressedTarball(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "image.tar")
	if err := os.WriteFile(tarPath, make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}
	size, err := EstimateImageSize(tarPath)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1000 {
		t.Errorf("got %d, want 1000", size)
	}
}

func TestEstimateImageSizeGzipTarball(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "image.tar.gz")
	if err := os.WriteFile(tarPath, make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}
	size, err := EstimateImageSize(tarPath)
	if err != nil {
		t.Fatal(err)
	}
	if size != 3000 {
		t.Errorf("got %d, want 3000", size)
	}
}

func TestEstimateImageSizeRegistryDefault(t *testing.T) {
	size, err := EstimateImageSize("alpine:latest")
	if err != nil {
		t.Fatal(err)
	}
	if size != defaultRegistrySz {
		t.Errorf("got %d, want %d", size, defaultRegistrySz)
	}
}

func TestCheckAvailableMemory(t *testing.T) {
	ok, available, err := CheckAvailableMemory(1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected 1 byte to fit in available memory")
	}
	if available <= 0 {
		t.Fatal("expected positive available memory estimate")
	}
}

func TestCacheStorePutGet(t *testing.T) {
	store, err := NewCacheStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	const algo, hash = "sha256", "deadbeef"
	if store.Has(algo, hash) {
		t.Fatal("expected cache miss before Put")
	}
	if err := store.Put(algo, hash, strings.NewReader("payload")); err != nil {
		t.Fatal(err)
	}
	if !store.Has(algo, hash) {
		t.Fatal("expected cache hit after Put")
	}
	r, err := store.Get(algo, hash)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
}
