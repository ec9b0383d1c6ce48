package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// RotationConfig configures log file rotation behavior.
type RotationConfig struct {
	// MaxSize is the size in bytes at which the active file is rotated.
	// Zero means the default of 10MB.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept.
	// Zero disables age-based pruning.
	MaxAge int

	// MaxBackups caps the number of rotated files kept, newest first.
	// Zero keeps all of them (subject to MaxAge).
	MaxBackups int

	// Daily starts a new file on the first write of each calendar day.
	Daily bool
}

// DefaultRotationConfig returns sensible defaults for rotation.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     30,               // days
		MaxBackups: 5,
		Daily:      true,
	}
}

// rotatedStamp is the timestamp layout inserted into rotated file names,
// e.g. modsync.2025-03-14-092653.000.log.
const rotatedStamp = "2006-01-02-150405.000"

// RotatingWriter is an io.WriteCloser over a log file that rotates by size
// and by day.
//
// A watch and an install may log to the same file from separate processes.
// Every write and every rotation therefore happens under an advisory lock on
// a sidecar file (<path>.lock), and a writer whose file was rotated away by
// another process reopens the path before writing.
type RotatingWriter struct {
	path string
	cfg  RotationConfig
	lock *flock.Flock
	now  func() time.Time

	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time // day the active file belongs to
}

// NewRotatingWriter opens (or creates) the log at path, creating parent
// directories as needed, and prunes rotated files left by earlier runs.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	return newRotatingWriter(path, cfg, time.Now)
}

func newRotatingWriter(path string, cfg RotationConfig, now func() time.Time) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{
		path: path,
		cfg:  cfg,
		lock: flock.New(path + ".lock"),
		now:  now,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p to the active file, rotating first when p would push it
// past MaxSize or when the day has changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if err := w.lock.Lock(); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer func() { _ = w.lock.Unlock() }()

	if err := w.followRotation(); err != nil {
		return 0, err
	}
	if w.due(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the active file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	_ = w.lock.Close()

	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

// open attaches w to the file at w.path, picking up its current size.
func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), f.Close())
	}

	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	if w.size == 0 {
		w.opened = w.now()
	}
	return nil
}

// followRotation reopens the path when another process has renamed the file
// w is holding.
func (w *RotatingWriter) followRotation() error {
	held, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	current, err := os.Stat(w.path)
	if err == nil && os.SameFile(held, current) {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat log file: %w", err)
	}

	_ = w.file.Close()
	w.file = nil
	return w.open()
}

func (w *RotatingWriter) due(incoming int64) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if !w.cfg.Daily {
		return false
	}
	y1, m1, d1 := w.opened.Date()
	y2, m2, d2 := w.now().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// rotate renames the active file aside and starts a fresh one. The caller
// holds the file lock.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.rotatedName(w.now())); err != nil && !os.IsNotExist(err) {
		// Keep logging to the old file rather than losing lines.
		if openErr := w.open(); openErr != nil {
			return errors.Join(fmt.Errorf("renaming log file: %w", err), openErr)
		}
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.opened = w.now()

	w.prune()
	return nil
}

func (w *RotatingWriter) rotatedName(t time.Time) string {
	ext := filepath.Ext(w.path)
	return fmt.Sprintf("%s.%s%s", strings.TrimSuffix(w.path, ext), t.Format(rotatedStamp), ext)
}

type rotatedLog struct {
	path    string
	modTime time.Time
}

// rotated lists the rotated siblings of the active file, newest first.
func (w *RotatingWriter) rotated() []rotatedLog {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var logs []rotatedLog
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if _, err := time.Parse(rotatedStamp, stamp); err != nil {
			continue // not one of ours, e.g. modsync.debug.log
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, rotatedLog{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	slices.SortFunc(logs, func(a, b rotatedLog) int {
		return b.modTime.Compare(a.modTime)
	})
	return logs
}

// prune drops rotated files beyond MaxBackups or older than MaxAge.
// Failures are ignored; pruning is retried on the next rotation.
func (w *RotatingWriter) prune() {
	cutoff := time.Time{}
	if w.cfg.MaxAge > 0 {
		cutoff = w.now().Add(-time.Duration(w.cfg.MaxAge) * 24 * time.Hour)
	}

	for i, lf := range w.rotated() {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := !cutoff.IsZero() && lf.modTime.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(lf.path)
		}
	}
}
