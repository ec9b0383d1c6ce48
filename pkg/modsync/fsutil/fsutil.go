// Package fsutil holds the file copy and move primitives shared by the
// installer and the backup store. Every write lands at its destination by
// rename, so a reader never sees a partially written file.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst through a temp file in dst's directory that is
// synced and then renamed over dst. The source modification time is kept.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, in)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if written != info.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	_ = os.Chtimes(tmpPath, info.ModTime(), info.ModTime())

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return nil
}

// Mover moves files, falling back to copy-then-delete when a rename is not
// possible (for example across volumes).
type Mover struct {
	// Rename defaults to os.Rename.
	Rename func(oldpath, newpath string) error
}

// MoveResult describes how a Move completed.
type MoveResult struct {
	// Copied is set when the rename failed and the copy fallback was used.
	Copied bool
	// SourceLeft is set when the copy succeeded but the source could not be
	// removed afterwards.
	SourceLeft error
}

// Move places src at dst. When it returns an error, dst still holds its
// previous content (or is still absent).
func (m Mover) Move(src, dst string) (MoveResult, error) {
	rename := m.Rename
	if rename == nil {
		rename = os.Rename
	}

	renameErr := rename(src, dst)
	if renameErr == nil {
		return MoveResult{}, nil
	}

	var linkErr *os.LinkError
	if !errors.As(renameErr, &linkErr) {
		return MoveResult{}, renameErr
	}

	if err := CopyFile(src, dst); err != nil {
		return MoveResult{}, fmt.Errorf("rename failed (%v), copy fallback failed: %w", linkErr.Err, err)
	}

	res := MoveResult{Copied: true}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		res.SourceLeft = err
	}
	return res, nil
}

// Move is Mover{}.Move.
func Move(src, dst string) (MoveResult, error) {
	return Mover{}.Move(src, dst)
}
