package registry

import (
	"context"
	"errors"
	"testing"
)

func TestNullClientReturnsNotImplemented(t *testing.T) {
	var c Client = NullClient{}
	ctx := context.Background()

	if _, err := c.GetManifest(ctx, "library/alpine", "latest"); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("GetManifest: got %v", err)
	}
	if _, err := c.GetBlob(ctx, "library/alpine", "sha256:abc"); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("GetBlob: got %v", err)
	}
	if ok, err := c.BlobExists(ctx, "library/alpine", "sha256:abc"); ok || !errors.Is(err, ErrNotImplemented) {
		t.Errorf("BlobExists: got ok=%v err=%v", ok, err)
	}
}
