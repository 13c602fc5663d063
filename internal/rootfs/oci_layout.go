package rootfs

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// buildFromOCILayout implements spec.md §4.3's OCI-layout path: read
// index.json, select the first manifest descriptor, resolve blobs under
// <layout>/blobs/<algo>/<hash>, and extract layers in order.
func buildFromOCILayout(ctx context.Context, layoutDir, targetDir string, opts BuildOptions) (*BuildResult, error) {
	index, err := readIndex(layoutDir)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}
	if len(index.Manifests) == 0 {
		return nil, fmt.Errorf("rootfs: oci-layout: index.json has no manifests")
	}

	manifestDesc := index.Manifests[0]
	manifest, err := readManifest(layoutDir, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}

	var totalSize int64
	for _, layerDesc := range manifest.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blobPath := blobPath(layoutDir, layerDesc.Digest.String())

		if opts.VerifyDigests {
			if err := verifyDigest(blobPath, layerDesc.Digest.String()); err != nil {
				return nil, err
			}
		}

		if err := extractBlobLayer(blobPath, string(layerDesc.MediaType), targetDir); err != nil {
			return nil, fmt.Errorf("rootfs: %w", err)
		}
		totalSize += layerDesc.Size
	}

	cfg, err := readImageConfig(layoutDir, manifest.Config)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}

	log.Info("extracted oci-layout image", "layout", layoutDir, "layers", len(manifest.Layers))

	return &BuildResult{
		RootfsPath:  targetDir,
		LayerCount:  len(manifest.Layers),
		TotalSize:   totalSize,
		ImageConfig: cfg,
	}, nil
}

func readIndex(layoutDir string) (*imgspecv1.Index, error) {
	data, err := os.ReadFile(filepath.Join(layoutDir, "index.json"))
	if err != nil {
		return nil, fmt.Errorf("read index.json: %w", err)
	}
	var idx imgspecv1.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse index.json: %w", err)
	}
	return &idx, nil
}

func readManifest(layoutDir string, desc imgspecv1.Descriptor) (*imgspecv1.Manifest, error) {
	data, err := os.ReadFile(blobPath(layoutDir, desc.Digest.String()))
	if err != nil {
		return nil, fmt.Errorf("read manifest blob: %w", err)
	}
	var m imgspecv1.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func readImageConfig(layoutDir string, desc imgspecv1.Descriptor) (*ImageConfig, error) {
	data, err := os.ReadFile(blobPath(layoutDir, desc.Digest.String()))
	if err != nil {
		return nil, fmt.Errorf("read config blob: %w", err)
	}
	var img imgspecv1.Image
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("parse config blob: %w", err)
	}

	cfg := &ImageConfig{
		Entrypoint: img.Config.Entrypoint,
		Cmd:        img.Config.Cmd,
		Env:        make(map[string]string),
		WorkingDir: img.Config.WorkingDir,
	}
	for _, kv := range img.Config.Env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			cfg.Env[kv[:idx]] = kv[idx+1:]
		}
	}
	return cfg, nil
}

// blobPath computes <layout>/blobs/<algo>/<hash> from a "algo:hash" digest.
func blobPath(layoutDir, digest string) string {
	parts := strings.SplitN(digest, ":", 2)
	if len(parts) != 2 {
		return filepath.Join(layoutDir, "blobs", "sha256", digest)
	}
	return filepath.Join(layoutDir, "blobs", parts[0], parts[1])
}

func extractBlobLayer(blobFile, mediaType, targetDir string) error {
	f, err := os.Open(blobFile)
	if err != nil {
		return fmt.Errorf("open blob: %w", err)
	}
	defer f.Close()

	uncompressed, closer, err := decompressor(f, mediaType)
	if err != nil {
		return err
	}
	defer closer()

	return extractLayer(targetDir, tar.NewReader(uncompressed))
}

// verifyDigest streams the blob through sha256 and compares, case
// insensitively, against the descriptor digest, per spec.md §4.3.
func verifyDigest(blobFile, digest string) error {
	parts := strings.SplitN(digest, ":", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "sha256") {
		return nil
	}
	f, err := os.Open(blobFile)
	if err != nil {
		return fmt.Errorf("verify digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("verify digest: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, parts[1]) {
		return fmt.Errorf("%w: got %s, want %s", ErrVerificationFailed, got, parts[1])
	}
	return nil
}
