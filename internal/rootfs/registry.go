package rootfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	godigest "github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	rspec "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/opencontainers/umoci/oci/cas/dir"
	"github.com/opencontainers/umoci/oci/casext"
	"github.com/opencontainers/umoci/oci/layer"

	"github.com/ananthb/xenomorph/internal/imageref"
	"github.com/ananthb/xenomorph/internal/registry"
)

const layoutRefName = "latest"

// buildFromRegistry implements spec.md §4.3's registry path, delegated
// through the pluggable registry.Client boundary spec.md §9 names: parse
// imageRef (internal/imageref), fetch the manifest and each layer/config
// blob through the client, stage them into a local OCI layout, then unpack
// with umoci's rootless layer unpacker exactly as the teacher's
// unpackLayers does (lib/images/oci.go).
func buildFromRegistry(ctx context.Context, imageRef_, targetDir string, opts BuildOptions) (*BuildResult, error) {
	ref, err := imageref.Parse(imageRef_)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w: %v", ErrDownloadFailed, err)
	}

	client := opts.Client
	if client == nil {
		client = registry.NewRemoteClient()
	}

	repo := ref.Registry + "/" + ref.Repository
	selector := ref.Tag
	if selector == "" {
		selector = ref.Digest
	}

	manifestBytes, err := client.GetManifest(ctx, repo, selector)
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w: get manifest: %v", ErrDownloadFailed, err)
	}
	var manifest imgspecv1.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("rootfs: %w: parse manifest: %v", ErrDownloadFailed, err)
	}

	stageDir, err := os.MkdirTemp("", "xenomorph-oci-layout-*")
	if err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	}
	defer os.RemoveAll(stageDir)

	if err := stageLayout(ctx, stageDir, repo, manifestBytes, &manifest, client, opts.Cache); err != nil {
		return nil, fmt.Errorf("rootfs: %w: %v", ErrDownloadFailed, err)
	}

	if _, totalSize, err := unpackViaUmoci(ctx, stageDir, targetDir); err != nil {
		return nil, fmt.Errorf("rootfs: %w", err)
	} else {
		cfg, err := readImageConfig(stageDir, manifest.Config)
		if err != nil {
			return nil, fmt.Errorf("rootfs: %w", err)
		}

		log.Info("pulled and unpacked registry image", "ref", imageRef_, "layers", len(manifest.Layers))

		return &BuildResult{
			RootfsPath:  targetDir,
			LayerCount:  len(manifest.Layers),
			TotalSize:   totalSize,
			ImageConfig: cfg,
		}, nil
	}
}

// stageLayout writes an OCI image layout under stageDir sourced entirely
// from the registry.Client boundary: the manifest bytes already fetched,
// the config blob, and every layer blob, each fetched through
// client.GetBlob (checking the shared cache first, populating it after a
// miss) and written to stageDir/blobs/<algo>/<hash>. A minimal index.json
// tags the manifest "latest" so umoci's casext engine can resolve it the
// same way it resolves a layout pulled to disk ahead of time.
func stageLayout(ctx context.Context, stageDir, repo string, manifestBytes []byte, manifest *imgspecv1.Manifest, client registry.Client, cache *CacheStore) error {
	if err := os.WriteFile(filepath.Join(stageDir, "oci-layout"), []byte(`{"imageLayoutVersion":"1.0.0"}`), 0o644); err != nil {
		return fmt.Errorf("write oci-layout: %w", err)
	}

	if err := fetchBlob(ctx, stageDir, repo, manifest.Config.Digest.String(), client, cache); err != nil {
		return fmt.Errorf("fetch config blob: %w", err)
	}
	for _, l := range manifest.Layers {
		if err := fetchBlob(ctx, stageDir, repo, l.Digest.String(), client, cache); err != nil {
			return fmt.Errorf("fetch layer blob %s: %w", l.Digest, err)
		}
	}

	manifestDigest := "sha256:" + sha256Hex(manifestBytes)
	if err := writeBlobBytes(stageDir, manifestDigest, manifestBytes); err != nil {
		return fmt.Errorf("write manifest blob: %w", err)
	}

	mediaType := manifest.MediaType
	if mediaType == "" {
		mediaType = imgspecv1.MediaTypeImageManifest
	}
	// A minimal OCI image layout index.json, built as a plain struct with
	// explicit JSON tags (rather than imgspecv1.Index) since only
	// schemaVersion + one manifest descriptor are needed for umoci's
	// casext engine to resolve the "latest" ref.
	type layoutIndex struct {
		SchemaVersion int                     `json:"schemaVersion"`
		Manifests     []imgspecv1.Descriptor  `json:"manifests"`
	}
	index := layoutIndex{
		SchemaVersion: 2,
		Manifests: []imgspecv1.Descriptor{{
			MediaType: mediaType,
			Digest:    godigest.Digest(manifestDigest),
			Size:      int64(len(manifestBytes)),
			Annotations: map[string]string{
				imgspecv1.AnnotationRefName: layoutRefName,
			},
		}},
	}
	indexBytes, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index.json: %w", err)
	}
	return os.WriteFile(filepath.Join(stageDir, "index.json"), indexBytes, 0o644)
}

// fetchBlob resolves digest through the shared cache before falling back
// to client.GetBlob, then writes it into both the cache and stageDir so
// umoci can read it from the staged layout regardless of cache state.
func fetchBlob(ctx context.Context, stageDir, repo, digest string, client registry.Client, cache *CacheStore) error {
	parts := strings.SplitN(digest, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed digest %q", digest)
	}
	algo, hash := parts[0], parts[1]
	dest := blobPath(stageDir, digest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	if cache != nil && cache.Has(algo, hash) {
		r, err := cache.Get(algo, hash)
		if err == nil {
			defer r.Close()
			return writeBlobReader(dest, r)
		}
		log.Warn("cache get failed despite Has==true, falling back to registry", "digest", digest, "error", err)
	}

	rc, err := client.GetBlob(ctx, repo, digest)
	if err != nil {
		return err
	}
	defer rc.Close()

	var body io.Reader = rc
	if cache != nil {
		pr, pw := io.Pipe()
		tee := io.TeeReader(rc, pw)
		done := make(chan error, 1)
		go func() {
			done <- cache.Put(algo, hash, pr)
		}()
		if err := writeBlobReader(dest, tee); err != nil {
			pw.CloseWithError(err)
			<-done
			return err
		}
		pw.Close()
		if err := <-done; err != nil {
			log.Warn("cache populate failed", "digest", digest, "error", err)
		}
		return nil
	}
	return writeBlobReader(dest, body)
}

func writeBlobReader(dest string, r io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func writeBlobBytes(stageDir, digest string, data []byte) error {
	dest := blobPath(stageDir, digest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// unpackViaUmoci unpacks the layout's tagged image into targetDir using
// umoci's rootless unpacker, mapping container root onto the current
// process's uid/gid exactly as lib/images/oci.go's unpackLayers does.
func unpackViaUmoci(ctx context.Context, layoutDir, targetDir string) (*imgspecv1.Manifest, int64, error) {
	casEngine, err := dir.Open(layoutDir)
	if err != nil {
		return nil, 0, fmt.Errorf("open oci layout: %w", err)
	}
	defer casEngine.Close()

	engine := casext.NewEngine(casEngine)

	descriptorPaths, err := engine.ResolveReference(ctx, layoutRefName)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve reference: %w", err)
	}
	if len(descriptorPaths) == 0 {
		return nil, 0, fmt.Errorf("no image found in oci layout")
	}

	manifestBlob, err := engine.FromDescriptor(ctx, descriptorPaths[0].Descriptor())
	if err != nil {
		return nil, 0, fmt.Errorf("get manifest: %w", err)
	}
	manifest, ok := manifestBlob.Data.(imgspecv1.Manifest)
	if !ok {
		return nil, 0, fmt.Errorf("manifest data is not v1.Manifest (got %T)", manifestBlob.Data)
	}

	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())
	unpackOpts := &layer.UnpackOptions{
		OnDiskFormat: layer.DirRootfs{
			MapOptions: layer.MapOptions{
				Rootless:    true,
				UIDMappings: []rspec.LinuxIDMapping{{HostID: uid, ContainerID: 0, Size: 1}},
				GIDMappings: []rspec.LinuxIDMapping{{HostID: gid, ContainerID: 0, Size: 1}},
			},
		},
	}

	if err := layer.UnpackRootfs(ctx, casEngine, targetDir, manifest, unpackOpts); err != nil {
		return nil, 0, fmt.Errorf("unpack rootfs: %w", err)
	}

	var totalSize int64
	for _, l := range manifest.Layers {
		totalSize += l.Size
	}
	return &manifest, totalSize, nil
}
