package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/fetch"
	"github.com/jamesainslie/modsync/pkg/modsync/fsutil"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// modServer serves fixed file contents by path and counts requests.
type modServer struct {
	*httptest.Server
	files map[string]string
	hits  atomic.Int32
}

func newModServer(t *testing.T, files map[string]string) *modServer {
	t.Helper()
	s := &modServer{files: files}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		body, ok := s.files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func digest(t *testing.T, content string) string {
	t.Helper()
	d, err := verify.Hash(strings.NewReader(content))
	require.NoError(t, err)
	return d
}

func entry(t *testing.T, baseURL, name, content string) manifest.Entry {
	t.Helper()
	return manifest.Entry{
		ID:        strings.TrimSuffix(name, ".zip"),
		Filename:  name,
		Hash:      digest(t, content),
		SizeBytes: int64(len(content)),
		SourceURL: baseURL + "/" + name,
	}
}

func testManifest(entries ...manifest.Entry) *manifest.Manifest {
	return manifest.CreateNewAt("test pack", manifest.GameFS25, testTime).WithEntries(entries)
}

func newInstaller(t *testing.T, opts ...Option) *Installer {
	t.Helper()
	f := fetch.New(fetch.Options{Logger: logging.Discard()})
	base := []Option{
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return testTime }),
		WithStagingDir(filepath.Join(t.TempDir(), "staging")),
		WithBackupDir(filepath.Join(t.TempDir(), "backups")),
	}
	in := New(f, append(base, opts...)...)
	in.freeSpace = func(string) (uint64, error) { return 1 << 40, nil }
	return in
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func assertStagingEmpty(t *testing.T, in *Installer) {
	t.Helper()
	entries, err := os.ReadDir(in.stagingDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory should be cleaned up")
}

// recorder collects every event published during a run.
type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) { r.events = append(r.events, ev) }

func (r *recorder) ofKind(k events.Kind) []events.Event {
	var out []events.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func TestInstallIntoEmptyDirectory(t *testing.T) {
	files := map[string]string{
		"alpha.zip":   "alpha contents",
		"bravo.zip":   strings.Repeat("b", 3*fetch.ChunkSize+5),
		"charlie.zip": "charlie",
	}
	srv := newModServer(t, files)
	m := testManifest(
		entry(t, srv.URL, "alpha.zip", files["alpha.zip"]),
		entry(t, srv.URL, "bravo.zip", files["bravo.zip"]),
		entry(t, srv.URL, "charlie.zip", files["charlie.zip"]),
	)
	dir := filepath.Join(t.TempDir(), "mods")
	in := newInstaller(t)
	rec := &recorder{}

	out, err := in.Install(context.Background(), m, dir, rec)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.False(t, out.Cancelled)
	assert.Equal(t, events.PhaseComplete, out.Phase)
	assert.Equal(t, 3, out.Installed)
	assert.Zero(t, out.Replaced)
	assert.Zero(t, out.Skipped)
	assert.Zero(t, out.Failed)
	assert.Empty(t, out.Backups)
	assert.Equal(t, m.TotalBytes(), out.BytesTransferred)
	assert.Equal(t, m.ID, out.ManifestID)
	assert.Equal(t, 1, out.ManifestRevision)

	for _, e := range m.Entries {
		path := filepath.Join(dir, e.Filename)
		assert.Equal(t, files[e.Filename], readFile(t, path))
		ok, err := VerifyFileHash(path, e.Hash)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.Len(t, out.Items, 3)
	for _, it := range out.Items {
		assert.Equal(t, StatusInstalled, it.Status)
	}

	started := rec.ofKind(events.ItemStarted)
	completed := rec.ofKind(events.ItemCompleted)
	require.Len(t, started, 3)
	require.Len(t, completed, 3)
	for i := range 3 {
		assert.Equal(t, i+1, started[i].Index)
		assert.Equal(t, 3, started[i].Total)
		assert.Equal(t, m.Entries[i].ID, completed[i].EntryID)
		assert.True(t, completed[i].Success)
	}
	assert.NotEmpty(t, rec.ofKind(events.DownloadProgress))

	snaps := rec.ofKind(events.Snapshot)
	require.NotEmpty(t, snaps)
	last := 0.0
	for _, s := range snaps {
		assert.GreaterOrEqual(t, s.OverallPercent, last)
		last = s.OverallPercent
	}
	assert.Equal(t, events.PhaseComplete, snaps[len(snaps)-1].Phase)
	assert.InDelta(t, 100.0, snaps[len(snaps)-1].OverallPercent, 0.001)

	assertStagingEmpty(t, in)
}

func TestInstallAllUpToDate(t *testing.T) {
	files := map[string]string{"alpha.zip": "alpha", "bravo.zip": "bravo"}
	srv := newModServer(t, files)
	m := testManifest(
		entry(t, srv.URL, "alpha.zip", files["alpha.zip"]),
		entry(t, srv.URL, "bravo.zip", files["bravo.zip"]),
	)
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	in := newInstaller(t)
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Skipped)
	assert.Zero(t, out.Installed)
	assert.Zero(t, srv.hits.Load(), "no network access when everything is up to date")
	_, err = os.Stat(in.stagingDir)
	assert.True(t, os.IsNotExist(err), "staging is not created when there is nothing to do")
	for _, it := range out.Items {
		assert.Equal(t, StatusUpToDate, it.Status)
	}
}

func TestInstallReplacesStaleFileWithBackup(t *testing.T) {
	files := map[string]string{"alpha.zip": "alpha v2"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "alpha.zip", files["alpha.zip"]))
	dir := t.TempDir()
	target := filepath.Join(dir, "alpha.zip")
	require.NoError(t, os.WriteFile(target, []byte("alpha v1"), 0o644))

	in := newInstaller(t)
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Replaced)
	assert.Zero(t, out.Installed)
	assert.Equal(t, "alpha v2", readFile(t, target))

	require.Len(t, out.Backups, 1)
	assert.Equal(t, "alpha v1", readFile(t, out.Backups[0]))
	assert.Equal(t, filepath.Join(in.backupDir, "20250314T092653Z"), out.BackupDir)
	require.Len(t, out.Items, 1)
	assert.Equal(t, StatusReplaced, out.Items[0].Status)
	assert.Equal(t, out.Backups[0], out.Items[0].Backup)
}

func TestInstallDiscardsBackupsWhenNotKept(t *testing.T) {
	files := map[string]string{"alpha.zip": "alpha v2"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "alpha.zip", files["alpha.zip"]))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.zip"), []byte("alpha v1"), 0o644))

	in := newInstaller(t, WithKeepBackups(false))
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Empty(t, out.BackupDir)
	assert.Empty(t, out.Backups)
	entries, err := os.ReadDir(in.backupDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallSizeMismatch(t *testing.T) {
	body := strings.Repeat("x", 900)
	srv := newModServer(t, map[string]string{"big.zip": body})
	e := entry(t, srv.URL, "big.zip", body)
	e.SizeBytes = 1000
	m := testManifest(e)
	dir := t.TempDir()

	in := newInstaller(t)
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, events.PhaseFailedPartially, out.Phase)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, SizeMismatch, out.Failures[0].Category)
	assert.Contains(t, out.Failures[0].Message, "1000")
	assert.Contains(t, out.Failures[0].Message, "900")
	_, err = os.Stat(filepath.Join(dir, "big.zip"))
	assert.True(t, os.IsNotExist(err))
	assertStagingEmpty(t, in)
}

// streamServer sends body in small flushed pieces, so the response carries
// no Content-Length.
func streamServer(t *testing.T, body string, piece int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, _ := w.(http.Flusher)
		for off := 0; off < len(body); off += piece {
			end := min(off+piece, len(body))
			if _, err := io.WriteString(w, body[off:end]); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInstallStopsOversizedDownload(t *testing.T) {
	srv := streamServer(t, strings.Repeat("z", 8<<20), fetch.ChunkSize)
	e := entry(t, srv.URL, "tiny.zip", "abc")
	m := testManifest(e)
	dir := t.TempDir()

	in := newInstaller(t)
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.False(t, out.Success)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, SizeMismatch, out.Failures[0].Category)
	assert.ErrorIs(t, out.Failures[0].Err, errOversize)
	assert.LessOrEqual(t, out.BytesTransferred, e.SizeBytes)
	_, err = os.Stat(filepath.Join(dir, "tiny.zip"))
	assert.True(t, os.IsNotExist(err))
	assertStagingEmpty(t, in)
}

func TestInstallProgressWithoutContentLength(t *testing.T) {
	body := strings.Repeat("p", 2*fetch.ChunkSize+100)
	srv := streamServer(t, body, 1000)
	e := entry(t, srv.URL, "stream.zip", body)
	dir := t.TempDir()
	rec := &recorder{}

	out, err := newInstaller(t).Install(context.Background(), testManifest(e), dir, rec)
	require.NoError(t, err)
	require.True(t, out.Success)

	progress := rec.ofKind(events.DownloadProgress)
	require.NotEmpty(t, progress)
	var last int64
	for _, ev := range progress {
		assert.Equal(t, e.SizeBytes, ev.BytesTotal, "declared size stands in for a missing Content-Length")
		assert.GreaterOrEqual(t, ev.BytesReceived, last)
		last = ev.BytesReceived
	}
	assert.Equal(t, int64(len(body)), last)
	assert.Equal(t, body, readFile(t, filepath.Join(dir, "stream.zip")))
}

func TestInstallHashMismatchLeavesTargetUntouched(t *testing.T) {
	srv := newModServer(t, map[string]string{"alpha.zip": "evil"})
	e := entry(t, srv.URL, "alpha.zip", "good")
	m := testManifest(e)
	dir := t.TempDir()
	target := filepath.Join(dir, "alpha.zip")
	require.NoError(t, os.WriteFile(target, []byte("old!"), 0o644))

	in := newInstaller(t)
	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.False(t, out.Success)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, HashMismatch, out.Failures[0].Category)
	assert.Equal(t, "alpha", out.Failures[0].Entry.ID)
	assert.Equal(t, "old!", readFile(t, target))
	assert.Empty(t, out.Backups, "nothing is backed up before verification passes")
	assertStagingEmpty(t, in)

	var f *Failure
	require.True(t, errors.As(error(&out.Failures[0]), &f))
	assert.Contains(t, f.Error(), "hash-mismatch")
}

func TestInstallContinuesAfterFailure(t *testing.T) {
	files := map[string]string{"alpha.zip": "alpha", "charlie.zip": "charlie"}
	srv := newModServer(t, files)
	m := testManifest(
		entry(t, srv.URL, "alpha.zip", "alpha"),
		entry(t, srv.URL, "bravo.zip", "bravo"),
		entry(t, srv.URL, "charlie.zip", "charlie"),
	)
	dir := t.TempDir()
	rec := &recorder{}

	out, err := newInstaller(t).Install(context.Background(), m, dir, rec)
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, 2, out.Installed)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, DownloadFailed, out.Failures[0].Category)
	assert.Equal(t, 1, out.Failures[0].Index)
	assert.Equal(t, "charlie", readFile(t, filepath.Join(dir, "charlie.zip")))

	completed := rec.ofKind(events.ItemCompleted)
	require.Len(t, completed, 3)
	assert.True(t, completed[0].Success)
	assert.False(t, completed[1].Success)
	assert.Error(t, completed[1].Err)
	assert.True(t, completed[2].Success)

	assert.Equal(t, []Status{StatusInstalled, StatusFailed, StatusInstalled},
		[]Status{out.Items[0].Status, out.Items[1].Status, out.Items[2].Status})
}

func TestInstallCancelledBetweenEntries(t *testing.T) {
	files := map[string]string{"a.zip": "aaa", "b.zip": "bbb", "c.zip": "ccc"}
	srv := newModServer(t, files)
	m := testManifest(
		entry(t, srv.URL, "a.zip", "aaa"),
		entry(t, srv.URL, "b.zip", "bbb"),
		entry(t, srv.URL, "c.zip", "ccc"),
	)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := events.Funcs{
		OnItemCompleted: func(ev events.Event) {
			if ev.Index == 1 {
				cancel()
			}
		},
	}

	in := newInstaller(t)
	out, err := in.Install(ctx, m, dir, sink)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	assert.False(t, out.Success)
	assert.Equal(t, events.PhaseCancelled, out.Phase)
	assert.Equal(t, 1, out.Installed)
	assert.Zero(t, out.Failed)
	assert.Equal(t, 2, out.NotStarted())
	assert.Equal(t, "aaa", readFile(t, filepath.Join(dir, "a.zip")))
	_, err = os.Stat(filepath.Join(dir, "b.zip"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, int32(1), srv.hits.Load())
	assertStagingEmpty(t, in)
}

func TestInstallCancelAfterLastEntryIsComplete(t *testing.T) {
	srv := newModServer(t, map[string]string{"a.zip": "aaa"})
	m := testManifest(entry(t, srv.URL, "a.zip", "aaa"))
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := events.Funcs{
		OnItemCompleted: func(ev events.Event) {
			if ev.Index == ev.Total {
				cancel()
			}
		},
	}

	out, err := newInstaller(t).Install(ctx, m, dir, sink)
	require.NoError(t, err)

	assert.False(t, out.Cancelled)
	assert.True(t, out.Success)
	assert.Equal(t, events.PhaseComplete, out.Phase)
	assert.Equal(t, 1, out.Installed)
	assert.Zero(t, out.NotStarted())
}

// funcFetcher adapts a function to Fetcher.
type funcFetcher func(ctx context.Context, url string, w io.Writer, progress func(received, total int64)) (int64, error)

func (f funcFetcher) Fetch(ctx context.Context, url string, w io.Writer, progress func(received, total int64)) (int64, error) {
	return f(ctx, url, w, progress)
}

func TestInstallCancelledDuringDownload(t *testing.T) {
	m := testManifest(
		entry(t, "https://mods.example.com", "a.zip", "aaa"),
		entry(t, "https://mods.example.com", "b.zip", "bbb"),
	)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := funcFetcher(func(ctx context.Context, _ string, w io.Writer, _ func(int64, int64)) (int64, error) {
		_, _ = io.WriteString(w, "a")
		cancel()
		return 1, ctx.Err()
	})
	in := New(f, WithLogger(logging.Discard()), WithStagingDir(filepath.Join(t.TempDir(), "staging")))
	in.freeSpace = func(string) (uint64, error) { return 1 << 40, nil }

	out, err := in.Install(ctx, m, dir, nil)
	require.NoError(t, err)

	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Failures, "an interrupted entry is not a failure")
	assert.Equal(t, StatusCancelled, out.Items[0].Status)
	assert.Equal(t, StatusNotStarted, out.Items[1].Status)
	_, err = os.Stat(filepath.Join(dir, "a.zip"))
	assert.True(t, os.IsNotExist(err))
	assertStagingEmpty(t, in)
}

func TestInstallInvalidManifest(t *testing.T) {
	m := testManifest(manifest.Entry{
		ID:        "broken",
		Hash:      "not-a-hash",
		SizeBytes: 10,
		SourceURL: "https://mods.example.com/broken.zip",
	})
	dir := filepath.Join(t.TempDir(), "mods")

	out, err := newInstaller(t).Install(context.Background(), m, dir, nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrInvalidManifest)

	var vf *ValidationFailedError
	require.ErrorAs(t, err, &vf)
	require.NotEmpty(t, vf.Errors)
	assert.Equal(t, "hash", vf.Errors[0].Field)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "nothing is created for an invalid manifest")
}

func TestInstallInvalidSource(t *testing.T) {
	m := testManifest(entry(t, "https://mods.example.com", "a.zip", "aaa"))
	f := funcFetcher(func(context.Context, string, io.Writer, func(int64, int64)) (int64, error) {
		return 0, fmt.Errorf("%w: unsupported host", fetch.ErrInvalidSource)
	})
	in := New(f, WithLogger(logging.Discard()), WithStagingDir(filepath.Join(t.TempDir(), "staging")))
	in.freeSpace = func(string) (uint64, error) { return 1 << 40, nil }

	out, err := in.Install(context.Background(), m, t.TempDir(), nil)
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, InvalidSource, out.Failures[0].Category)
	assert.ErrorIs(t, out.Failures[0], ErrInvalidSource)
}

func TestInstallRecoversFromPanickingFetcher(t *testing.T) {
	m := testManifest(
		entry(t, "https://mods.example.com", "a.zip", "aaa"),
		entry(t, "https://mods.example.com", "b.zip", "bbb"),
	)
	f := funcFetcher(func(_ context.Context, url string, w io.Writer, _ func(int64, int64)) (int64, error) {
		if strings.HasSuffix(url, "a.zip") {
			panic("boom")
		}
		n, err := io.WriteString(w, "bbb")
		return int64(n), err
	})
	in := New(f, WithLogger(logging.Discard()), WithStagingDir(filepath.Join(t.TempDir(), "staging")))
	in.freeSpace = func(string) (uint64, error) { return 1 << 40, nil }

	out, err := in.Install(context.Background(), m, t.TempDir(), nil)
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, Unknown, out.Failures[0].Category)
	assert.Contains(t, out.Failures[0].Message, "boom")
	assert.Equal(t, 1, out.Installed)
	assertStagingEmpty(t, in)
}

func TestInstallPanickingSinkDoesNotAffectResult(t *testing.T) {
	files := map[string]string{"a.zip": "aaa", "b.zip": "bbb"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", "aaa"), entry(t, srv.URL, "b.zip", "bbb"))
	sink := events.Funcs{
		OnItemStarted:      func(events.Event) { panic("listener") },
		OnDownloadProgress: func(events.Event) { panic("listener") },
		OnSnapshot:         func(events.Event) { panic("listener") },
	}

	out, err := newInstaller(t).Install(context.Background(), m, t.TempDir(), sink)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Installed)
}

func TestInstallFallsBackToCopyAcrossDevices(t *testing.T) {
	files := map[string]string{"a.zip": "across devices"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", files["a.zip"]))
	dir := t.TempDir()

	in := newInstaller(t)
	var renames int
	in.mover = fsutil.Mover{Rename: func(oldpath, newpath string) error {
		renames++
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}}

	out, err := in.Install(context.Background(), m, dir, nil)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, renames)
	assert.Equal(t, "across devices", readFile(t, filepath.Join(dir, "a.zip")))
	assertStagingEmpty(t, in)
}

func TestInstallInsufficientDiskSpace(t *testing.T) {
	files := map[string]string{"a.zip": "aaaa"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", "aaaa"))

	in := newInstaller(t, WithMinFreeSpace(100))
	in.freeSpace = func(string) (uint64, error) { return 50, nil }

	out, err := in.Install(context.Background(), m, t.TempDir(), nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrDiskSpace)
	assert.Zero(t, srv.hits.Load())
	assertStagingEmpty(t, in)
}

func TestInstallSkipsFreeSpaceCheckWhenUnsupported(t *testing.T) {
	files := map[string]string{"a.zip": "aaaa"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", "aaaa"))

	in := newInstaller(t, WithMinFreeSpace(1<<50))
	in.freeSpace = func(string) (uint64, error) { return 0, errors.New("not supported") }

	out, err := in.Install(context.Background(), m, t.TempDir(), nil)
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestInstallStagingFailure(t *testing.T) {
	files := map[string]string{"a.zip": "aaaa"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", "aaaa"))

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	in := newInstaller(t, WithStagingDir(filepath.Join(blocker, "staging")))
	_, err := in.Install(context.Background(), m, t.TempDir(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaging)
}

func TestInstallReportsVerificationErrors(t *testing.T) {
	files := map[string]string{"a.zip": "aaaa", "b.zip": "bbbb"}
	srv := newModServer(t, files)
	m := testManifest(entry(t, srv.URL, "a.zip", "aaaa"), entry(t, srv.URL, "b.zip", "bbbb"))
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.zip"), 0o755))

	out, err := newInstaller(t).Install(context.Background(), m, dir, nil)
	require.NoError(t, err)

	assert.True(t, out.Success, "verification errors are reported, not failures")
	require.Len(t, out.VerificationErrors, 1)
	assert.Equal(t, "a", out.VerificationErrors[0].Entry.ID)
	assert.Equal(t, StatusVerificationError, out.Items[0].Status)
	assert.Equal(t, 1, out.Installed)
}

func TestInstallPlanningCancelled(t *testing.T) {
	m := testManifest(entry(t, "https://mods.example.com", "a.zip", "aaa"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newInstaller(t).Install(ctx, m, t.TempDir(), nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := ComputeFileHash(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got)

	ok, err := VerifyFileHash(path, strings.ToUpper(got))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = VerifyFileHash(filepath.Join(t.TempDir(), "missing.zip"), got)
	assert.Error(t, err)
}
