// Package imageref parses and canonicalizes image references, delegating
// the actual registry/repository/tag grammar to go-containerregistry's
// pkg/name (the same package the teacher's OCI client uses to resolve
// multi-arch manifests).
package imageref

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
)

// Reference is the parsed form of an image reference: registry, repository,
// and either a tag or a digest.
type Reference struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

// Parse parses s into a canonical Reference. Single-name inputs like
// "alpine" canonicalize to registry-1.docker.io/library/alpine:latest.
func Parse(s string) (*Reference, error) {
	ref, err := name.ParseReference(s, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("parse image reference %q: %w", s, err)
	}

	out := &Reference{
		Registry:   canonicalRegistry(ref.Context().RegistryStr()),
		Repository: ref.Context().RepositoryStr(),
	}

	switch r := ref.(type) {
	case name.Tag:
		out.Tag = r.TagStr()
	case name.Digest:
		out.Digest = r.DigestStr()
	}
	return out, nil
}

// canonicalRegistry rewrites go-containerregistry's default Docker Hub
// host (name.DefaultRegistry, "index.docker.io") to "registry-1.docker.io",
// the host that actually serves the v2 API and the value spec.md §8 S1
// pins for unqualified image names.
func canonicalRegistry(registry string) string {
	if registry == name.DefaultRegistry {
		return "registry-1.docker.io"
	}
	return registry
}

// String re-formats the reference back into its canonical string form.
func (r *Reference) String() string {
	if r.Digest != "" {
		return fmt.Sprintf("%s/%s@%s", r.Registry, r.Repository, r.Digest)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}
