package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
)

func newStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestLogAndGet(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	s := newStore(t, now)

	rec, err := s.Log(Record{ManifestID: "pack", ManifestRevision: 3, Success: true})
	require.NoError(t, err)
	assert.Regexp(t, `^install-2025-06-15T10-30-00-[0-9a-f]{8}$`, rec.ID)
	assert.Equal(t, now, rec.Timestamp)

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pack", got.ManifestID)
	assert.Equal(t, 3, got.ManifestRevision)

	byPrefix, err := s.Get(rec.ID[:len(rec.ID)-4])
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byPrefix.ID)

	_, err = s.Get("install-1999")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t, time.Time{})
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := s.Log(Record{ManifestID: "pack", ManifestRevision: i + 1})
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "junk.json"), []byte("{"), 0o644))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].ManifestRevision)
	assert.Equal(t, 1, all[2].ManifestRevision)

	limited, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListMissingDir(t *testing.T) {
	s := newStore(t, time.Now())
	records, err := s.List(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCleanup(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	s := newStore(t, now.AddDate(0, 0, -40))
	_, err := s.Log(Record{ManifestID: "old"})
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	_, err = s.Log(Record{ManifestID: "new"})
	require.NoError(t, err)

	removed, err := s.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ManifestID)
}

func TestFromOutcome(t *testing.T) {
	start := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	out := &install.Outcome{
		ManifestID:       "pack",
		ManifestRevision: 2,
		Dir:              "/mods",
		Phase:            events.PhaseFailedPartially,
		Installed:        1,
		Failed:           1,
		BytesTransferred: 42,
		Failures: []install.Failure{{
			Entry:    manifest.Entry{ID: "tractor"},
			Category: install.HashMismatch,
			Message:  "expected sha256 aa, got bb",
		}},
		Items: []install.ItemResult{
			{Status: install.StatusInstalled},
			{Status: install.StatusFailed},
			{Status: install.StatusNotStarted},
		},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	rec := FromOutcome(out, "My Pack")
	assert.Equal(t, "failed-partially", rec.Phase)
	assert.Equal(t, "My Pack", rec.ManifestName)
	assert.False(t, rec.Success)
	assert.Equal(t, int64(1500), rec.DurationMS)
	assert.Equal(t, Summary{Installed: 1, Failed: 1, NotStarted: 1, BytesTransferred: 42}, rec.Summary)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, FailureRecord{EntryID: "tractor", Category: "hash-mismatch", Message: "expected sha256 aa, got bb"}, rec.Failures[0])
}
