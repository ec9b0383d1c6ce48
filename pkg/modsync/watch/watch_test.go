package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

func testManifest(t *testing.T, files map[string]string) *manifest.Manifest {
	t.Helper()
	m := manifest.CreateNewAt("watched", manifest.GameFS25, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for name, content := range files {
		d, err := verify.Hash(strings.NewReader(content))
		require.NoError(t, err)
		m.Entries = append(m.Entries, manifest.Entry{
			ID:        strings.TrimSuffix(name, ".zip"),
			Filename:  name,
			Hash:      d,
			SizeBytes: int64(len(content)),
			SourceURL: "https://mods.example.com/" + name,
		})
	}
	return m
}

func waitReport(t *testing.T, ch <-chan Report) Report {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report")
		return Report{}
	}
}

func startWatcher(t *testing.T, m *manifest.Manifest, dir string, opts ...Option) <-chan Report {
	t.Helper()
	opts = append([]Option{WithDebounce(20 * time.Millisecond), WithLogger(logging.Discard())}, opts...)
	w, err := New(m, dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reports := make(chan Report, 16)
	go func() {
		_ = w.Run(ctx, func(r Report) { reports <- r })
	}()
	return reports
}

func TestWatchReplansOnChange(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t, map[string]string{"tractor.zip": "tractor"})
	reports := startWatcher(t, m, dir)

	first := waitReport(t, reports)
	require.NoError(t, first.Err)
	assert.Equal(t, "start", first.Trigger)
	assert.Len(t, first.Plan.ToDownload, 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tractor.zip"), []byte("tractor"), 0o644))

	var r Report
	for {
		r = waitReport(t, reports)
		require.NoError(t, r.Err)
		if r.Plan.InSync() {
			break
		}
	}
	assert.Contains(t, r.Trigger, "tractor.zip")
}

func TestWatchReloadsManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(t.TempDir(), "pack.json")
	m := testManifest(t, map[string]string{"a.zip": "aaa"})
	require.NoError(t, manifest.SaveFile(manifestPath, m))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.zip"), []byte("aaa"), 0o644))

	reports := startWatcher(t, m, dir, WithManifestFile(manifestPath))
	first := waitReport(t, reports)
	require.NoError(t, first.Err)
	assert.True(t, first.Plan.InSync())

	next := testManifest(t, map[string]string{"a.zip": "aaa", "b.zip": "bbb"})
	next.ID = m.ID
	next.Revision = 2
	require.NoError(t, manifest.SaveFile(manifestPath, next))

	for {
		r := waitReport(t, reports)
		if r.Err != nil || r.Manifest.Revision != 2 {
			continue
		}
		assert.Len(t, r.Plan.ToDownload, 1)
		break
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	m := testManifest(t, map[string]string{"custom.bin": "x"})
	w, err := New(m, dir, WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name     string
		event    fsnotify.Event
		relevant bool
	}{
		{"package file", fsnotify.Event{Name: filepath.Join(dir, "mod.zip"), Op: fsnotify.Create}, true},
		{"manifest target", fsnotify.Event{Name: filepath.Join(dir, "custom.bin"), Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: filepath.Join(dir, "mod.zip"), Op: fsnotify.Chmod}, false},
		{"hidden", fsnotify.Event{Name: filepath.Join(dir, ".modsync"), Op: fsnotify.Create}, false},
		{"unrelated", fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, false},
		{"other dir", fsnotify.Event{Name: filepath.Join(dir, "sub", "mod.zip"), Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, _ := w.classify(tt.event)
			assert.Equal(t, tt.relevant, trigger != "")
		})
	}
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := New(nil, dir)
	assert.Error(t, err)

	m := testManifest(t, map[string]string{"a.zip": "a"})
	_, err = New(m, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
