package rootfs

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	godigest "github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ananthb/xenomorph/internal/registry"
)

// fakeClient is an in-memory registry.Client keyed by digest, exercising
// buildFromRegistry's Client-mediated pull path without a network call.
type fakeClient struct {
	manifest []byte
	blobs    map[string][]byte
}

func (f *fakeClient) GetManifest(_ context.Context, _, _ string) ([]byte, error) {
	return f.manifest, nil
}

func (f *fakeClient) GetBlob(_ context.Context, _, digest string) (io.ReadCloser, error) {
	b, ok := f.blobs[digest]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeClient) BlobExists(_ context.Context, _, digest string) (bool, error) {
	_, ok := f.blobs[digest]
	return ok, nil
}

var _ registry.Client = (*fakeClient)(nil)

func digestOf(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func buildGzipLayer(t *testing.T, name, content string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(tarBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return gzBuf.Bytes()
}

func TestBuildFromRegistryViaFakeClient(t *testing.T) {
	layerBytes := buildGzipLayer(t, "hello.txt", "hi")
	layerDigest := digestOf(layerBytes)

	configJSON, err := json.Marshal(imgspecv1.Image{
		Config: imgspecv1.ImageConfig{
			Entrypoint: []string{"/bin/sh"},
			Env:        []string{"PATH=/usr/bin"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	configDigest := digestOf(configJSON)

	manifest := imgspecv1.Manifest{
		MediaType: imgspecv1.MediaTypeImageManifest,
		Config: imgspecv1.Descriptor{
			MediaType: imgspecv1.MediaTypeImageConfig,
			Digest:    godigest.Digest(configDigest),
			Size:      int64(len(configJSON)),
		},
		Layers: []imgspecv1.Descriptor{{
			MediaType: imgspecv1.MediaTypeImageLayerGzip,
			Digest:    godigest.Digest(layerDigest),
			Size:      int64(len(layerBytes)),
		}},
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}

	client := &fakeClient{
		manifest: manifestJSON,
		blobs: map[string][]byte{
			configDigest: configJSON,
			layerDigest:  layerBytes,
		},
	}

	targetDir := t.TempDir()
	result, err := buildFromRegistry(context.Background(), "example.com/library/demo:latest", targetDir, BuildOptions{Client: client})
	if err != nil {
		t.Fatalf("buildFromRegistry: %v", err)
	}
	if result.LayerCount != 1 {
		t.Errorf("LayerCount = %d, want 1", result.LayerCount)
	}
	if result.ImageConfig == nil || len(result.ImageConfig.Entrypoint) == 0 {
		t.Errorf("ImageConfig not populated: %+v", result.ImageConfig)
	}
	if _, err := os.Stat(filepath.Join(targetDir, "hello.txt")); err != nil {
		t.Errorf("expected extracted file: %v", err)
	}
}

func TestFetchBlobPopulatesCache(t *testing.T) {
	blob := []byte("blob-contents")
	digest := digestOf(blob)
	client := &fakeClient{blobs: map[string][]byte{digest: blob}}

	cacheDir := t.TempDir()
	cache, err := NewCacheStore(cacheDir)
	if err != nil {
		t.Fatal(err)
	}

	stageDir := t.TempDir()
	if err := fetchBlob(context.Background(), stageDir, "example.com/library/demo", digest, client, cache); err != nil {
		t.Fatalf("fetchBlob: %v", err)
	}

	algo, hash := "sha256", digest[len("sha256:"):]
	if !cache.Has(algo, hash) {
		t.Error("expected cache to be populated after fetchBlob")
	}

	// A second fetch should be served from the cache without the client
	// needing the blob anymore.
	client.blobs = map[string][]byte{}
	if err := fetchBlob(context.Background(), stageDir, "example.com/library/demo", digest, client, cache); err != nil {
		t.Fatalf("fetchBlob (cache hit): %v", err)
	}
}
