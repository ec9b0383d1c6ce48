// Package backup keeps copies of files an install is about to overwrite.
//
// Each install run gets its own timestamped directory under the backup root,
// created on the first saved file.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/fsutil"
)

// RunLayout is the time layout of backup run directory names.
const RunLayout = "20060102T150405Z"

// Store manages the backup runs under a root directory.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a Store rooted at root. now defaults to time.Now.
func New(root string, now func() time.Time) (*Store, error) {
	if root == "" {
		return nil, errors.New("backup directory cannot be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &Store{root: root, now: now}, nil
}

// Root returns the backup root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureDir creates the backup root if it does not exist.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.root, 0o755)
}

// Begin starts a new backup run. Nothing is written until Save is called.
func (s *Store) Begin() *Run {
	return &Run{store: s, name: s.now().UTC().Format(RunLayout)}
}

// Run collects the backups taken during one install.
type Run struct {
	store *Store
	name  string

	mu    sync.Mutex
	dir   string
	files []string
}

// Dir returns the run directory, or "" when nothing has been saved yet.
func (r *Run) Dir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Files returns the paths of the backups taken so far.
func (r *Run) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

// Save copies path into the run directory and returns the copy's path.
func (r *Run) Save(path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == "" {
		dir, err := r.store.createRunDir(r.name)
		if err != nil {
			return "", err
		}
		r.dir = dir
	}

	dst := filepath.Join(r.dir, filepath.Base(path))
	if err := fsutil.CopyFile(path, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	r.files = append(r.files, dst)
	return dst, nil
}

// createRunDir makes a fresh directory for name, adding a numeric suffix if
// a run with the same timestamp already exists.
func (s *Store) createRunDir(name string) (string, error) {
	if err := s.EnsureDir(); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	candidate := name
	for i := 1; ; i++ {
		dir := filepath.Join(s.root, candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) || i > 100 {
			return "", fmt.Errorf("failed to create backup run directory: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
}

// RunInfo summarises one backup run directory.
type RunInfo struct {
	Name  string
	Dir   string
	Time  time.Time
	Files []string
	Bytes int64
}

// List returns every backup run, newest first. A missing root lists as
// empty.
func (s *Store) List() ([]RunInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	runs := []RunInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, ok := parseRunName(e.Name())
		if !ok {
			continue
		}

		info := RunInfo{Name: e.Name(), Dir: filepath.Join(s.root, e.Name()), Time: ts}
		files, err := os.ReadDir(info.Dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			fi, err := f.Info()
			if err != nil {
				continue
			}
			info.Files = append(info.Files, f.Name())
			info.Bytes += fi.Size()
		}
		runs = append(runs, info)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Time.Equal(runs[j].Time) {
			return runs[i].Name > runs[j].Name
		}
		return runs[i].Time.After(runs[j].Time)
	})
	return runs, nil
}

// Prune moves backup runs older than retentionDays to the system trash and
// returns the directories it removed. retentionDays <= 0 keeps everything.
func (s *Store) Prune(retentionDays int) ([]string, error) {
	if retentionDays <= 0 {
		return nil, nil
	}
	runs, err := s.List()
	if err != nil {
		return nil, err
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	var removed []string
	var errs []error
	for _, r := range runs {
		if !r.Time.Before(cutoff) {
			continue
		}
		if err := MoveToTrash(r.Dir); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, r.Dir)
	}
	return removed, errors.Join(errs...)
}

// parseRunName accepts "<RunLayout>" and "<RunLayout>-<n>".
func parseRunName(name string) (time.Time, bool) {
	if len(name) < len(RunLayout) {
		return time.Time{}, false
	}
	ts, err := time.Parse(RunLayout, name[:len(RunLayout)])
	if err != nil {
		return time.Time{}, false
	}
	if rest := name[len(RunLayout):]; rest != "" && rest[0] != '-' {
		return time.Time{}, false
	}
	return ts, true
}
