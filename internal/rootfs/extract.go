package rootfs

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/zstd"
)

const (
	whiteoutPrefix = ".wh."
	opaqueMarker   = ".wh..wh..opq"
)

// decompressor returns a reader over the uncompressed tar stream inferred
// from mediaType/suffix: gzip, zstd, or passthrough.
func decompressor(r io.Reader, mediaType string) (io.Reader, func() error, error) {
	switch {
	case strings.Contains(mediaType, "gzip"), strings.HasSuffix(mediaType, ".tar.gz"), strings.HasSuffix(mediaType, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, gz.Close, nil
	case strings.Contains(mediaType, "zstd"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd reader: %w", err)
		}
		rc := zr.IOReadCloser()
		return rc, rc.Close, nil
	default:
		return r, func() error { return nil }, nil
	}
}

// extractLayer applies a single layer's tar stream onto targetDir, applying
// OCI whiteout semantics incrementally (spec.md §4.3's "canonical" choice):
// a ".wh.<name>" entry deletes the sibling "<name>"; a ".wh..wh..opq" marker
// makes its containing directory opaque, removing pre-existing contents
// from lower layers before this layer's own entries are applied. Whiteout
// markers themselves never appear in the final tree.
func extractLayer(targetDir string, tr *tar.Reader) error {
	opaqued := make(map[string]bool)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract layer: %w", err)
		}

		name := filepath.Clean(hdr.Name)
		if name == "." {
			continue
		}
		base := filepath.Base(name)
		dir := filepath.Dir(name)

		if base == opaqueMarker {
			opaqueDir, err := securejoin.SecureJoin(targetDir, dir)
			if err != nil {
				return fmt.Errorf("extract layer: %w", err)
			}
			if err := makeOpaque(opaqueDir); err != nil {
				return err
			}
			opaqued[dir] = true
			continue
		}

		if strings.HasPrefix(base, whiteoutPrefix) {
			victim := filepath.Join(dir, strings.TrimPrefix(base, whiteoutPrefix))
			victimPath, err := securejoin.SecureJoin(targetDir, victim)
			if err != nil {
				return fmt.Errorf("extract layer: %w", err)
			}
			if err := os.RemoveAll(victimPath); err != nil {
				return fmt.Errorf("extract layer: remove whiteout target: %w", err)
			}
			continue
		}

		dest, err := securejoin.SecureJoin(targetDir, name)
		if err != nil {
			return fmt.Errorf("extract layer: %w", err)
		}
		if err := extractEntry(targetDir, dest, hdr, tr); err != nil {
			return err
		}
	}
}

// makeOpaque removes all pre-existing entries of a directory; it is
// recreated (or created) empty so the current layer's own entries land
// cleanly inside it.
func makeOpaque(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("make opaque %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("make opaque %s: %w", dir, err)
		}
	}
	return nil
}

func extractEntry(targetDir, dest string, hdr *tar.Header, tr *tar.Reader) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(dest, os.FileMode(hdr.Mode&0o7777)); err != nil {
			return fmt.Errorf("extract dir %s: %w", dest, err)
		}
	case tar.TypeReg, tar.TypeRegA:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("extract file %s: %w", dest, err)
		}
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode&0o7777))
		if err != nil {
			return fmt.Errorf("extract file %s: %w", dest, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return fmt.Errorf("extract file %s: %w", dest, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("extract file %s: %w", dest, err)
		}
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("extract symlink %s: %w", dest, err)
		}
		_ = os.Remove(dest)
		if err := os.Symlink(hdr.Linkname, dest); err != nil {
			return fmt.Errorf("extract symlink %s: %w", dest, err)
		}
	case tar.TypeLink:
		// Hard link entries carry no body; hdr.Linkname names the already
		// (or soon-to-be) extracted target within this same tree.
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("extract hardlink %s: %w", dest, err)
		}
		linkTarget, err := securejoin.SecureJoin(targetDir, filepath.Clean(hdr.Linkname))
		if err != nil {
			return fmt.Errorf("extract hardlink %s: %w", dest, err)
		}
		_ = os.Remove(dest)
		if err := os.Link(linkTarget, dest); err != nil {
			return fmt.Errorf("extract hardlink %s: %w", dest, err)
		}
	default:
		// Device/fifo nodes: skip, rootless unpack cannot create them.
	}
	return nil
}
