package imageref

import "testing"

func TestParseExplicitReference(t *testing.T) {
	ref, err := Parse("quay.io/prometheus/prometheus:v2.45.0")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Registry != "quay.io" || ref.Repository != "prometheus/prometheus" || ref.Tag != "v2.45.0" {
		t.Fatalf("unexpected parse: %+v", ref)
	}
	if ref.String() != "quay.io/prometheus/prometheus:v2.45.0" {
		t.Fatalf("round trip failed: %s", ref.String())
	}
}

func TestParseSingleNameCanonicalizesToDockerHub(t *testing.T) {
	ref, err := Parse("alpine")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Registry != "registry-1.docker.io" || ref.Repository != "library/alpine" || ref.Tag != "latest" {
		t.Fatalf("unexpected canonicalization: %+v", ref)
	}
}

func TestParseTagDefaultsLibraryPrefix(t *testing.T) {
	ref, err := Parse("nginx:1.25")
	if err != nil {
		t.Fatal(err)
	}
	if ref.Registry != "registry-1.docker.io" || ref.Repository != "library/nginx" || ref.Tag != "1.25" {
		t.Fatalf("unexpected parse: %+v", ref)
	}
}
