// Package cache remembers file digests between runs so that unchanged files
// are not re-hashed. Entries are keyed on the file path and are only trusted
// while the file's size and modification time are unchanged.
package cache

import (
	"errors"
	"os"
	"path/filepath"
)

// HashCache provides digest lookups backed by a Badger store.
type HashCache struct {
	store *Store
}

// Open opens or creates a hash cache at the given directory.
func Open(path string) (*HashCache, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &HashCache{store: store}, nil
}

// OpenInMemory returns a hash cache that is not persisted.
func OpenInMemory() (*HashCache, error) {
	store, err := OpenMemoryStore()
	if err != nil {
		return nil, err
	}
	return &HashCache{store: store}, nil
}

// Close closes the cache.
func (c *HashCache) Close() error {
	return c.store.Close()
}

// Lookup returns the recorded digest for path if the file described by info
// still has the size and modification time it had when it was recorded.
func (c *HashCache) Lookup(path string, info os.FileInfo) (string, bool) {
	dir, name := splitPath(path)
	entry, err := c.store.Get(dir, name)
	if err != nil {
		return "", false
	}
	if !entry.Matches(info.Size(), info.ModTime().UnixNano()) {
		return "", false
	}
	return entry.Digest, true
}

// Remember records digest for path against the stat fields in info.
func (c *HashCache) Remember(path string, info os.FileInfo, digest string) error {
	dir, name := splitPath(path)
	return c.store.Put(dir, name, &CachedHash{
		Version: CacheVersion,
		Size:    info.Size(),
		Mtime:   info.ModTime().UnixNano(),
		Digest:  digest,
	})
}

// Forget drops the digest recorded for path. A missing entry is not an error.
func (c *HashCache) Forget(path string) error {
	dir, name := splitPath(path)
	err := c.store.Delete(dir, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ForgetDir drops every digest recorded for files directly inside dir.
func (c *HashCache) ForgetDir(dir string) error {
	return c.store.DeletePrefix(cleanDir(dir))
}

// Len returns the number of digests recorded for files directly inside dir.
func (c *HashCache) Len(dir string) (int, error) {
	return c.store.Count(cleanDir(dir))
}

func splitPath(path string) (string, string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return filepath.Dir(abs), filepath.Base(abs)
}

func cleanDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return abs
}
