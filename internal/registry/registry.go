// Package registry defines the pluggable registry-client boundary spec.md
// §9 names and a go-containerregistry-backed implementation of it.
package registry

import (
	"context"
	"errors"
	"io"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// ErrNotImplemented is returned by a Client that does not support an
// operation; internal/rootfs surfaces this as ErrDownloadFailed.
var ErrNotImplemented = errors.New("registry: not implemented")

// Client is the pluggable registry collaborator spec.md §9 names: three
// operations, repo+reference/digest in, bytes out.
type Client interface {
	GetManifest(ctx context.Context, repo, ref string) ([]byte, error)
	GetBlob(ctx context.Context, repo, digest string) (io.ReadCloser, error)
	BlobExists(ctx context.Context, repo, digest string) (bool, error)
}

// RemoteClient implements Client against a real OCI registry using
// go-containerregistry, the same library the teacher's
// oci_inspect_test.go exercises against a live registry.
type RemoteClient struct{}

// NewRemoteClient returns a Client backed by go-containerregistry/pkg/v1/remote.
func NewRemoteClient() *RemoteClient { return &RemoteClient{} }

func (c *RemoteClient) GetManifest(ctx context.Context, repo, ref string) ([]byte, error) {
	r, err := parseRepoRef(repo, ref)
	if err != nil {
		return nil, err
	}
	desc, err := remote.Get(r, remote.WithContext(ctx), remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return nil, err
	}
	return desc.Manifest, nil
}

func (c *RemoteClient) GetBlob(ctx context.Context, repo, digest string) (io.ReadCloser, error) {
	r, err := parseRepoRef(repo, digest)
	if err != nil {
		return nil, err
	}
	layer, err := remote.Layer(r.(name.Digest), remote.WithContext(ctx), remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return nil, err
	}
	return layer.Compressed()
}

func (c *RemoteClient) BlobExists(ctx context.Context, repo, digest string) (bool, error) {
	_, err := c.GetBlob(ctx, repo, digest)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func parseRepoRef(repo, ref string) (name.Reference, error) {
	if len(ref) > 7 && ref[:7] == "sha256:" {
		return name.NewDigest(repo + "@" + ref)
	}
	return name.ParseReference(repo+":"+ref, name.WeakValidation)
}

// NullClient always reports NotImplemented; conforming builds must still
// support the local tarball and OCI-layout paths without it, per spec.md §9.
type NullClient struct{}

func (NullClient) GetManifest(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (NullClient) GetBlob(context.Context, string, string) (io.ReadCloser, error) {
	return nil, ErrNotImplemented
}

func (NullClient) BlobExists(context.Context, string, string) (bool, error) {
	return false, ErrNotImplemented
}
