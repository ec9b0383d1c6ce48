// Package manifest defines the declarative document that describes the set
// of files a mods directory should contain, together with its validation,
// serialization and comparison rules.
package manifest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CurrentSchemaVersion is the newest document format this package writes.
const CurrentSchemaVersion = 1

// Game identifies the game a manifest targets.
type Game string

// Supported games.
const (
	GameFS19 Game = "fs19"
	GameFS22 Game = "fs22"
	GameFS25 Game = "fs25"
)

// Games lists every supported game tag.
func Games() []Game {
	return []Game{GameFS19, GameFS22, GameFS25}
}

// Valid reports whether g is one of the supported game tags.
func (g Game) Valid() bool {
	switch g {
	case GameFS19, GameFS22, GameFS25:
		return true
	}
	return false
}

// ErrUnknownGame is returned for a game tag outside the supported set.
var ErrUnknownGame = errors.New("unsupported game")

// ParseGame converts a user-supplied tag into a Game.
func ParseGame(s string) (Game, error) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w %q (want one of fs19, fs22, fs25)", ErrUnknownGame, s)
	}
	return g, nil
}

// Manifest is a named, versioned, game-scoped set of desired files.
// A Manifest is treated as a value: the planner and installer never modify
// it, and the helpers in this package return copies.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Game          Game      `json:"game"`
	Revision      int       `json:"revision"`
	LastUpdated   time.Time `json:"last_updated"`
	Author        string    `json:"author,omitempty"`
	Entries       []Entry   `json:"entries"`
}

// Entry describes one desired file.
type Entry struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Version   string `json:"version,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"size_bytes"`
	SourceURL string `json:"source_url"`
	Notes     string `json:"notes,omitempty"`
}

// DisplayName returns the title when set and the id otherwise.
func (e Entry) DisplayName() string {
	if e.Title != "" {
		return e.Title
	}
	return e.ID
}

// TotalBytes returns the sum of the declared sizes of all entries.
func (m *Manifest) TotalBytes() int64 {
	var n int64
	for _, e := range m.Entries {
		n += e.SizeBytes
	}
	return n
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Entries = append([]Entry(nil), m.Entries...)
	return &c
}

// Lookup finds an entry by id, ignoring case.
func (m *Manifest) Lookup(id string) (Entry, bool) {
	for _, e := range m.Entries {
		if strings.EqualFold(e.ID, id) {
			return e, true
		}
	}
	return Entry{}, false
}
