// Package verify computes and compares SHA-256 content digests.
//
// Digests are rendered as 64 lowercase hexadecimal characters. Comparison
// against an expected digest is case-insensitive.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// DigestLen is the length of a hex-encoded SHA-256 digest.
const DigestLen = sha256.Size * 2

// Verifier hashes files on disk and checks them against expected digests.
type Verifier interface {
	HashFile(path string) (string, error)
	VerifyFile(path, expected string) (bool, error)
}

// Default is the Verifier that hashes every file it is asked about.
var Default Verifier = plain{}

type plain struct{}

func (plain) HashFile(path string) (string, error)          { return HashFile(path) }
func (plain) VerifyFile(path, expected string) (bool, error) { return VerifyFile(path, expected) }

// Hash streams r through SHA-256 and returns the lowercase hex digest.
func Hash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	digest, err := Hash(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return digest, nil
}

// VerifyFile reports whether the file at path has the expected digest.
// Failing to open or read the file is an error, never a plain false.
func VerifyFile(path, expected string) (bool, error) {
	digest, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return Equal(digest, expected), nil
}

// Equal compares two hex digests ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

// HashingWriter hashes everything written through it and forwards the bytes
// to an underlying writer.
type HashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

// NewHashingWriter wraps w.
func NewHashingWriter(w io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: sha256.New()}
}

func (hw *HashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// Sum returns the lowercase hex digest of the bytes written so far.
func (hw *HashingWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

// Written returns the number of bytes successfully forwarded.
func (hw *HashingWriter) Written() int64 {
	return hw.n
}
