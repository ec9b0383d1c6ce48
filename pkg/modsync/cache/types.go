package cache

import (
	"bytes"
	"encoding/gob"
)

// CacheVersion is incremented when the cache format changes.
const CacheVersion = 1

// KeySeparator separates the directory from the file name in cache keys.
const KeySeparator = '\x00'

// CachedHash is the digest recorded for a file together with the stat
// fields that must still match for the digest to be trusted.
type CachedHash struct {
	Version int
	Size    int64  // File size in bytes
	Mtime   int64  // Modification time as UnixNano
	Digest  string // Lowercase hex SHA-256
}

// Encode serializes the entry to bytes using gob.
func (e *CachedHash) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *CachedHash) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Matches reports whether the entry was recorded for a file of the given
// size and modification time.
func (e *CachedHash) Matches(size, mtime int64) bool {
	return e.Version == CacheVersion && e.Size == size && e.Mtime == mtime
}

// MakeKey creates a cache key from a directory and a file name.
// Format: <dir>\x00<name>
func MakeKey(dir, name string) []byte {
	return []byte(dir + string(KeySeparator) + name)
}

// ParseKey extracts the directory and file name from a cache key.
func ParseKey(key []byte) (dir, name string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys under a directory.
func MakeKeyPrefix(dir string) []byte {
	return []byte(dir + string(KeySeparator))
}
