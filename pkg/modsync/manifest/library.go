package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when the library holds no manifest with the
// requested id.
var ErrNotFound = errors.New("manifest not found")

// Library is a directory of saved manifests, one <id>.json file each.
type Library struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewLibrary creates a Library rooted at dir.
// The directory is created on the first Put.
func NewLibrary(dir string) (*Library, error) {
	if dir == "" {
		return nil, errors.New("library directory cannot be empty")
	}
	return &Library{dir: dir, now: time.Now}, nil
}

// Dir returns the library's directory.
func (l *Library) Dir() string {
	return l.dir
}

// Put stores m. When the library already holds a manifest with the same id
// and different content, the stored copy gets the next revision. Storing
// identical content is a no-op. The manifest actually stored is returned.
func (l *Library) Put(m *Manifest) (*Manifest, error) {
	if errs := Validate(m); len(errs) > 0 {
		return nil, fmt.Errorf("refusing to store invalid manifest: %w", errs[0])
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stored := m.Clone()
	if existing, err := l.read(l.pathFor(m.ID)); err == nil {
		same, err := sameContent(existing, m)
		if err != nil {
			return nil, err
		}
		if same {
			return existing, nil
		}
		if stored.Revision <= existing.Revision {
			stored = existing.WithEntries(m.Entries)
			stored.Name = m.Name
			stored.Description = m.Description
			stored.Author = m.Author
			stored.Game = m.Game
			stored = stored.Bump(l.now())
		}
	}

	if err := SaveFile(l.pathFor(stored.ID), stored); err != nil {
		return nil, fmt.Errorf("failed to write library entry: %w", err)
	}
	return stored, nil
}

// Get retrieves a stored manifest by id.
func (l *Library) Get(id string) (*Manifest, error) {
	if id == "" {
		return nil, errors.New("manifest ID cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.read(l.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return m, nil
}

// List returns stored manifests sorted by last update, newest first.
// If limit is 0 or negative, all manifests are returned.
func (l *Library) List(limit int) ([]*Manifest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	var out []*Manifest
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		m, err := l.read(filepath.Join(l.dir, f.Name()))
		if err != nil {
			// Skip files that can't be parsed
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []*Manifest{}
	}
	return out, nil
}

// Delete removes a stored manifest.
func (l *Library) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.pathFor(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete library entry: %w", err)
	}
	return nil
}

func (l *Library) pathFor(id string) string {
	return filepath.Join(l.dir, SanitizeFilename(id)+".json")
}

func (l *Library) read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, _, err := Load(data)
	return m, err
}

// sameContent compares two manifests ignoring revision and timestamp.
func sameContent(a, b *Manifest) (bool, error) {
	norm := func(m *Manifest) ([]byte, error) {
		c := m.Clone()
		c.Revision = 0
		c.LastUpdated = time.Time{}
		return Save(c)
	}
	ab, err := norm(a)
	if err != nil {
		return false, err
	}
	bb, err := norm(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ab, bb), nil
}
