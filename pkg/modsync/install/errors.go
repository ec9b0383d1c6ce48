package install

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/fetch"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
)

// Fatal errors abort a run before any entry is processed.
var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrStaging         = errors.New("cannot prepare working directories")
	ErrDiskSpace       = errors.New("insufficient disk space")
)

// ErrInvalidSource is what a Fetcher returns for a URL it cannot request.
var ErrInvalidSource = fetch.ErrInvalidSource

// ValidationFailedError carries the validation errors that made Install
// refuse a manifest. It matches ErrInvalidManifest with errors.Is.
type ValidationFailedError struct {
	Errors []manifest.ValidationError
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
}

func (e *ValidationFailedError) Unwrap() error { return ErrInvalidManifest }

// Category classifies why an entry failed.
type Category string

const (
	DownloadFailed Category = "download-failed"
	SizeMismatch   Category = "size-mismatch"
	HashMismatch   Category = "hash-mismatch"
	InstallFailed  Category = "install-failed"
	InvalidSource  Category = "invalid-source"
	Unknown        Category = "unknown"
)

// Failure records one failed entry.
type Failure struct {
	Index    int
	Entry    manifest.Entry
	Category Category
	Message  string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Entry.ID, f.Category, f.Message)
}

func (f Failure) Unwrap() error { return f.Err }
