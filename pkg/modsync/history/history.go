// Package history keeps a JSON record of every install run.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("history record not found")

// Store persists run records as one JSON file each.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// New creates a Store in dir. The directory is created on the first Log.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the history directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the history directory if it does not exist.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o755)
}

// Log assigns rec an id and timestamp, writes it and returns the stored copy.
func (s *Store) Log(rec Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	rec.Timestamp = now
	rec.ID = generateID(now)

	if err := s.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := s.write(&rec); err != nil {
		return nil, fmt.Errorf("failed to write history record: %w", err)
	}
	return &rec, nil
}

func (s *Store) write(rec *Record) error {
	path := filepath.Join(s.dir, rec.ID+".json")

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns records newest first. A limit <= 0 returns all of them.
// Unreadable files are skipped.
func (s *Store) List(limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Get returns the record with the given id. A unique id prefix is accepted.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("record id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, err := s.read(id + ".json"); err == nil {
		return rec, nil
	}

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	var match *Record
	for i := range records {
		if strings.HasPrefix(records[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("record id %q is ambiguous", id)
			}
			match = &records[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Cleanup removes records older than retentionDays and returns how many
// were removed. Records are aged by their timestamp, or by file mtime when
// the file cannot be parsed.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		var when time.Time
		if rec, err := s.read(f.Name()); err == nil {
			when = rec.Timestamp
		} else if info, err := f.Info(); err == nil {
			when = info.ModTime()
		} else {
			continue
		}

		if when.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, f.Name())); err != nil {
				continue
			}
			removed++
		}
	}
	return removed, nil
}

func (s *Store) readAll() ([]Record, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := []Record{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := s.read(f.Name())
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *Store) read(name string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// generateID creates an id like "install-2025-06-15T10-30-00-1b4e28ba".
func generateID(now time.Time) string {
	return fmt.Sprintf("install-%s-%s", now.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
