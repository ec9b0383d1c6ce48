package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Load parses a manifest document. A syntactically valid document that breaks
// manifest invariants is still returned, alongside its validation errors.
func Load(data []byte) (*Manifest, []ValidationError, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, Validate(&m), nil
}

// UnmarshalJSON treats an empty last_updated like a missing one, leaving it
// to Validate to report.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type plain Manifest
	aux := struct {
		*plain
		LastUpdated json.RawMessage `json:"last_updated"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.LastUpdated = time.Time{}
	raw := bytes.TrimSpace(aux.LastUpdated)
	if len(raw) == 0 || bytes.Equal(raw, []byte(`""`)) || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, &m.LastUpdated); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	return nil
}

// LoadFile reads and parses the manifest document at path.
func LoadFile(path string) (*Manifest, []ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Load(data)
}

// Save serializes m as indented JSON with a stable field order and a
// trailing newline. Saving an unmodified manifest twice yields identical
// bytes.
func Save(m *Manifest) ([]byte, error) {
	out := *m
	out.LastUpdated = m.LastUpdated.UTC()
	if out.Entries == nil {
		out.Entries = []Entry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveFile writes m to path atomically using a temp file and rename.
func SaveFile(path string, m *Manifest) error {
	data, err := Save(m)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// CreateNew returns a fresh, empty manifest stamped with the current time.
func CreateNew(name string, game Game) *Manifest {
	return CreateNewAt(name, game, time.Now())
}

// CreateNewAt is CreateNew with an explicit timestamp.
func CreateNewAt(name string, game Game, now time.Time) *Manifest {
	return &Manifest{
		SchemaVersion: CurrentSchemaVersion,
		ID:            uuid.NewString(),
		Name:          name,
		Game:          game,
		Revision:      1,
		LastUpdated:   now.UTC().Truncate(time.Second),
		Entries:       []Entry{},
	}
}

// WithEntries returns a copy of m carrying entries instead of its own.
func (m *Manifest) WithEntries(entries []Entry) *Manifest {
	c := *m
	c.Entries = append([]Entry(nil), entries...)
	return &c
}

// Bump returns a copy of m with the revision incremented and the timestamp
// refreshed to now.
func (m *Manifest) Bump(now time.Time) *Manifest {
	c := m.Clone()
	c.Revision++
	c.LastUpdated = now.UTC().Truncate(time.Second)
	return c
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
