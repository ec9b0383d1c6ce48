package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "FS25_Tractor.zip", "tractor")
	writeFile(t, dir, "FS25_Barn Pack.zip", "barn")
	writeFile(t, dir, "readme.txt", "not a mod")
	writeFile(t, dir, "empty.zip", "")
	writeFile(t, dir, "nested/FS25_Hidden.zip", "nested")
	writeFile(t, dir, ".modsync/staging/run-1/x.zip", "staged")

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var progress []string
	m, err := Export(context.Background(), dir, Options{
		Name:        "Farm",
		Game:        manifest.GameFS25,
		BaseURL:     "https://cdn.example.com/mods/",
		Concurrency: 2,
		Now:         func() time.Time { return now },
		Progress:    func(done, total int, name string) { progress = append(progress, name) },
	})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Revision)
	assert.Equal(t, now, m.LastUpdated)
	require.Len(t, m.Entries, 2)
	assert.Len(t, progress, 2)

	barn := m.Entries[0]
	assert.Equal(t, "FS25_Barn Pack.zip", barn.Filename)
	assert.Equal(t, "FS25_Barn_Pack", barn.ID)
	assert.Equal(t, "https://cdn.example.com/mods/FS25_Barn%20Pack.zip", barn.SourceURL)
	assert.Equal(t, int64(len("barn")), barn.SizeBytes)
	want, err := verify.Hash(strings.NewReader("barn"))
	require.NoError(t, err)
	assert.Equal(t, want, barn.Hash)

	assert.Equal(t, "FS25_Tractor", m.Entries[1].ID)
	assert.Equal(t, "FS25_Barn Pack.zip", m.Entries[0].EffectiveFilename())

	assert.Empty(t, manifest.Validate(m))

	p, err := plan.Compute(m, dir)
	require.NoError(t, err)
	assert.True(t, p.InSync(), "an exported directory is in sync with its manifest")
}

func TestExportDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mod.zip", "one")
	writeFile(t, dir, "mod.rar", "two")

	m, err := Export(context.Background(), dir, Options{Name: "x", Game: manifest.GameFS22, BaseURL: "https://e.com"})
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	assert.Equal(t, "mod", m.Entries[0].ID)
	assert.Equal(t, "mod-2", m.Entries[1].ID)
	assert.Empty(t, manifest.Validate(m))
}

func TestExportErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		dir  string
		opts Options
	}{
		{"missing name", dir, Options{Game: manifest.GameFS25, BaseURL: "https://e.com"}},
		{"bad game", dir, Options{Name: "x", Game: "fs17", BaseURL: "https://e.com"}},
		{"bad base url", dir, Options{Name: "x", Game: manifest.GameFS25, BaseURL: "ftp://e.com"}},
		{"missing dir", filepath.Join(dir, "nope"), Options{Name: "x", Game: manifest.GameFS25, BaseURL: "https://e.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Export(context.Background(), tt.dir, tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestExportCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.zip", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Export(ctx, dir, Options{Name: "x", Game: manifest.GameFS25, BaseURL: "https://e.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
