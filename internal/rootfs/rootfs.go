// Package rootfs is the rootfs builder (C3): materializes an OCI or
// tarball image reference into a target directory.
package rootfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ananthb/xenomorph/internal/registry"
	"github.com/ananthb/xenomorph/internal/xlog"
)

var log = xlog.Scope("rootfs")

// Kind is the image source kind the builder dispatches on.
type Kind int

const (
	KindRegistry Kind = iota
	KindTarball
	KindOCILayout
)

// ImageConfig is the subset of OCI image config the builder surfaces.
type ImageConfig struct {
	Entrypoint []string
	Cmd        []string
	Env        map[string]string
	WorkingDir string
}

// BuildOptions controls extraction behavior.
type BuildOptions struct {
	ApplyWhiteouts bool
	VerifyDigests  bool
	Cache          *CacheStore
	// Client is the registry collaborator spec.md §9 names for the
	// registry path. Defaults to registry.NewRemoteClient() when nil.
	Client registry.Client
}

// BuildResult is the builder's public return value.
type BuildResult struct {
	RootfsPath string
	LayerCount int
	TotalSize  int64
	ImageConfig *ImageConfig
}

var (
	// ErrDownloadFailed is surfaced when the registry client cannot fetch
	// an image (including when it reports NotImplemented).
	ErrDownloadFailed = errors.New("rootfs: download failed")
	// ErrVerificationFailed is returned when a layer digest does not match
	// its descriptor.
	ErrVerificationFailed = errors.New("rootfs: digest verification failed")
)

// DetectKind applies spec.md §4.3's dispatch rule: .tar/.tar.gz/.tgz suffix
// or a directory containing an oci-layout file is local; else registry.
func DetectKind(imageRef string) Kind {
	switch {
	case strings.HasSuffix(imageRef, ".tar"), strings.HasSuffix(imageRef, ".tar.gz"), strings.HasSuffix(imageRef, ".tgz"):
		return KindTarball
	}
	if info, err := os.Stat(imageRef); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(imageRef, "oci-layout")); err == nil {
			return KindOCILayout
		}
	}
	return KindRegistry
}

// Build materializes imageRef into targetDir.
func Build(ctx context.Context, imageRef, targetDir string, opts BuildOptions) (*BuildResult, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("rootfs: create target dir: %w", err)
	}

	switch DetectKind(imageRef) {
	case KindTarball:
		return buildFromTarball(ctx, imageRef, targetDir, opts)
	case KindOCILayout:
		return buildFromOCILayout(ctx, imageRef, targetDir, opts)
	default:
		return buildFromRegistry(ctx, imageRef, targetDir, opts)
	}
}
