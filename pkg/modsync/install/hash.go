package install

import "github.com/jamesainslie/modsync/pkg/modsync/verify"

// ComputeFileHash returns the lowercase hex SHA-256 of the file at path.
func ComputeFileHash(path string) (string, error) {
	return verify.HashFile(path)
}

// VerifyFileHash reports whether the file at path has the expected digest.
// An unreadable file is an error, not a mismatch.
func VerifyFileHash(path, expected string) (bool, error) {
	return verify.VerifyFile(path, expected)
}
