package rootfs

import (
	"archive/tar"
	"context"
	"fmt"
	"os"
)

// buildFromTarball implements spec.md §4.3's tarball path: single layer,
// compression inferred from suffix, extracted in-process rather than by
// spawning tar.
func buildFromTarball(_ context.Context, imageRef, targetDir string, opts BuildOptions) (*BuildResult, error) {
	f, err := os.Open(imageRef)
	if err != nil {
		return nil, fmt.Errorf("rootfs: open tarball: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("rootfs: stat tarball: %w", err)
	}

	uncompressed, closer, err := decompressor(f, imageRef)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}
	defer closer()

	if err := extractLayer(targetDir, tar.NewReader(uncompressed)); err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}

	log.Info("extracted tarball", "path", imageRef, "target", targetDir)

	_ = opts
	return &BuildResult{
		RootfsPath: targetDir,
		LayerCount: 1,
		TotalSize:  info.Size(),
	}, nil
}
