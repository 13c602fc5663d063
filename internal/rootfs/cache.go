package rootfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CacheStore implements the <cache_root>/blobs/<algo>/<hash> blob layout.
// No LRU eviction: spec.md's Open Questions explicitly permit omitting it.
type CacheStore struct {
	Root string
}

// NewCacheStore creates a CacheStore rooted at root, creating it if needed.
func NewCacheStore(root string) (*CacheStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	return &CacheStore{Root: root}, nil
}

// Path returns the on-disk path for a blob identified by algo and hash,
// without checking for its existence.
func (c *CacheStore) Path(algo, hash string) string {
	return filepath.Join(c.Root, "blobs", algo, hash)
}

// Get opens a cached blob for reading, or returns os.ErrNotExist.
func (c *CacheStore) Get(algo, hash string) (io.ReadCloser, error) {
	f, err := os.Open(c.Path(algo, hash))
	if err != nil {
		return nil, fmt.Errorf("cache get %s:%s: %w", algo, hash, err)
	}
	return f, nil
}

// Put stores r under algo/hash, writing to a temp file first and renaming
// into place so a concurrent Get never observes a partial blob.
func (c *CacheStore) Put(algo, hash string, r io.Reader) error {
	dir := filepath.Join(c.Root, "blobs", algo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache put %s:%s: %w", algo, hash, err)
	}
	tmp, err := os.CreateTemp(dir, hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache put %s:%s: %w", algo, hash, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("cache put %s:%s: %w", algo, hash, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache put %s:%s: %w", algo, hash, err)
	}
	if err := os.Rename(tmp.Name(), c.Path(algo, hash)); err != nil {
		return fmt.Errorf("cache put %s:%s: %w", algo, hash, err)
	}
	return nil
}

// Has reports whether a blob is already cached.
func (c *CacheStore) Has(algo, hash string) bool {
	_, err := os.Stat(c.Path(algo, hash))
	return err == nil
}
