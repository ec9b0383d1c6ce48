package verify

import (
	"os"

	"github.com/jamesainslie/modsync/pkg/modsync/cache"
)

// Caching is a Verifier that consults a hash cache before reading a file.
// Cached digests are only used while the file's size and modification time
// are unchanged.
type Caching struct {
	cache *cache.HashCache
}

// NewCaching returns a Verifier backed by c.
func NewCaching(c *cache.HashCache) *Caching {
	return &Caching{cache: c}
}

// HashFile returns the cached digest for path when still valid and hashes the
// file otherwise, recording the result.
func (v *Caching) HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if digest, ok := v.cache.Lookup(path, info); ok {
		return digest, nil
	}

	digest, err := HashFile(path)
	if err != nil {
		return "", err
	}
	// A failed write only costs a re-hash next time.
	_ = v.cache.Remember(path, info, digest)
	return digest, nil
}

// VerifyFile compares the (possibly cached) digest of path with expected.
func (v *Caching) VerifyFile(path, expected string) (bool, error) {
	digest, err := v.HashFile(path)
	if err != nil {
		return false, err
	}
	return Equal(digest, expected), nil
}

var _ Verifier = (*Caching)(nil)
