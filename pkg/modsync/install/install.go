// Package install reconciles a directory with a manifest: it plans, then
// downloads, verifies, backs up and atomically installs every entry that is
// missing or stale, one entry at a time.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/modsync/pkg/modsync/backup"
	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/fsutil"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// Fetcher streams the bytes behind a URL into w. progress, when non-nil, is
// called with the bytes received so far and the expected total (<= 0 when
// unknown). Implementations must stop promptly once ctx is done.
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer, progress func(received, total int64)) (int64, error)
}

// Installer executes reconciliation runs. An Installer may be reused for
// several runs, but callers must not run two installs against the same
// target directory at once.
type Installer struct {
	fetcher     Fetcher
	stagingDir  string
	backupDir   string
	verifier    verify.Verifier
	now         func() time.Time
	logger      *logging.Logger
	minFree     uint64
	keepBackups bool

	mover     fsutil.Mover
	freeSpace func(path string) (uint64, error)
}

// New returns an Installer that downloads through fetcher.
func New(fetcher Fetcher, opts ...Option) *Installer {
	in := &Installer{
		fetcher:     fetcher,
		verifier:    verify.Default,
		now:         time.Now,
		logger:      logging.Get("install"),
		keepBackups: true,
		freeSpace:   freeSpace,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Install brings dir in line with m. Entry failures are recorded in the
// Outcome and never stop the run; the returned error is reserved for
// problems that prevent any work (an invalid manifest, unusable working
// directories, too little disk space, or cancellation during planning).
// Cancelling ctx stops the run before the next entry and marks the outcome
// cancelled. sink may be nil.
func (in *Installer) Install(ctx context.Context, m *manifest.Manifest, dir string, sink events.Sink) (*Outcome, error) {
	r := &run{
		in:   in,
		sink: events.Safe(sink),
		out: &Outcome{
			Dir:       dir,
			StartedAt: in.now(),
		},
	}
	if m != nil {
		r.out.ManifestID = m.ID
		r.out.ManifestRevision = m.Revision
	}

	r.snapshot(events.PhaseAnalyzing, 0, "Validating manifest")
	if errs := manifest.Validate(m); len(errs) > 0 {
		r.snapshot(events.PhaseFailed, 0, "Manifest is invalid")
		return nil, &ValidationFailedError{Errors: errs}
	}

	log := in.logger.With("manifest", m.ID, "revision", m.Revision)
	log.Info("install started", "dir", dir, "entries", len(m.Entries))

	r.snapshot(events.PhaseAnalyzing, 0, "Checking installed files")
	p, err := plan.New(in.verifier).Plan(ctx, m, dir)
	if err != nil {
		r.snapshot(events.PhaseCancelled, 0, "Cancelled while checking installed files")
		return nil, err
	}
	r.plan = p
	r.total = p.ActionCount()
	r.seed()

	log.Info("plan ready",
		"download", len(p.ToDownload),
		"replace", len(p.ToReplace),
		"up_to_date", len(p.UpToDate),
		"verification_errors", len(p.VerificationErrors),
		"bytes", p.TotalBytes())
	for _, it := range p.VerificationErrors {
		log.Warn("cannot verify existing file", "entry", it.Entry.ID, "path", it.TargetPath, "error", it.Err)
	}

	r.snapshot(events.PhaseAnalyzing, 0, fmt.Sprintf("%d to download, %d to replace, %d up to date",
		len(p.ToDownload), len(p.ToReplace), len(p.UpToDate)))

	if r.total == 0 {
		return r.finish(log), nil
	}

	defer r.cleanup(log)
	if err := r.prepare(dir); err != nil {
		r.snapshot(events.PhaseFailed, 0, err.Error())
		log.Error("install aborted", "error", err)
		return nil, err
	}

	for k, it := range p.Actions() {
		if ctx.Err() != nil {
			r.out.Cancelled = true
			break
		}
		r.execute(ctx, log, k+1, it)
		if r.out.Cancelled {
			break
		}
	}

	return r.finish(log), nil
}

// run is the state of one Install call.
type run struct {
	in      *Installer
	sink    events.Sink
	out     *Outcome
	plan    *plan.Plan
	total   int
	done    int
	staging string
	backups *backup.Run
	items   map[int]int // manifest index -> position in out.Items
}

// seed fills the outcome with one line per entry before any work starts.
func (r *run) seed() {
	p := r.plan
	r.out.Skipped = len(p.UpToDate)
	r.out.VerificationErrors = p.VerificationErrors
	r.items = make(map[int]int)

	for _, it := range p.Items() {
		res := ItemResult{Index: it.Index, Entry: it.Entry, Path: it.TargetPath}
		switch it.Kind {
		case plan.UpToDate:
			res.Status = StatusUpToDate
		case plan.VerificationError:
			res.Status = StatusVerificationError
			res.Message = it.Err.Error()
		default:
			res.Status = StatusNotStarted
		}
		r.items[it.Index] = len(r.out.Items)
		r.out.Items = append(r.out.Items, res)
	}
}

// prepare creates the target directory, a private staging directory for
// this run and the backup root, and checks free space.
func (r *run) prepare(dir string) error {
	in := r.in
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: target directory: %v", ErrStaging, err)
	}

	stagingRoot := in.stagingDir
	if stagingRoot == "" {
		stagingRoot = filepath.Join(dir, ".modsync", "staging")
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("%w: staging directory: %v", ErrStaging, err)
	}
	staging, err := os.MkdirTemp(stagingRoot, "run-")
	if err != nil {
		return fmt.Errorf("%w: staging directory: %v", ErrStaging, err)
	}
	r.staging = staging

	backupRoot := in.backupDir
	if backupRoot == "" {
		backupRoot = filepath.Join(dir, ".modsync", "backups")
	}
	store, err := backup.New(backupRoot, in.now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaging, err)
	}
	if len(r.plan.ToReplace) > 0 {
		if err := store.EnsureDir(); err != nil {
			return fmt.Errorf("%w: backup directory: %v", ErrStaging, err)
		}
	}
	r.backups = store.Begin()

	need := uint64(r.plan.TotalBytes()) + in.minFree
	free, err := in.freeSpace(dir)
	if err != nil {
		in.logger.Debug("skipping free space check", "error", err)
		return nil
	}
	if free < need {
		return fmt.Errorf("%w: need %s on %s, %s available", ErrDiskSpace,
			humanize.IBytes(need), dir, humanize.IBytes(free))
	}
	return nil
}

func (r *run) cleanup(log *logging.Logger) {
	if r.staging == "" {
		return
	}
	if err := os.RemoveAll(r.staging); err != nil {
		log.Warn("failed to remove staging directory", "path", r.staging, "error", err)
	}
}

// execute runs one entry through the pipeline and records the result.
// A panic is contained to the entry and reported as Unknown.
func (r *run) execute(ctx context.Context, log *logging.Logger, k int, it plan.Item) {
	elog := log.With("entry", it.Entry.ID)
	r.sink.Publish(events.Event{
		Kind:    events.ItemStarted,
		Index:   k,
		Total:   r.total,
		EntryID: it.Entry.ID,
		Time:    r.in.now(),
	})

	var (
		res  ItemResult
		fail *Failure
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				fail = &Failure{Category: Unknown, Message: fmt.Sprintf("unexpected error: %v", p)}
			}
		}()
		res, fail = r.process(ctx, elog, k, it)
	}()

	res.Index, res.Entry, res.Path = it.Index, it.Entry, it.TargetPath
	var itemErr error
	switch {
	case fail != nil:
		fail.Index, fail.Entry = it.Index, it.Entry
		if fail.Err == nil {
			fail.Err = errors.New(fail.Message)
		}
		r.out.Failures = append(r.out.Failures, *fail)
		r.out.Failed++
		res.Status, res.Category, res.Message = StatusFailed, fail.Category, fail.Message
		itemErr = fail
		elog.Error("entry failed", "category", fail.Category, "error", fail.Message)
	case res.Status == StatusCancelled:
		r.out.Cancelled = true
		itemErr = context.Canceled
		elog.Info("entry cancelled")
	case res.Status == StatusReplaced:
		r.out.Replaced++
		elog.Info("entry replaced", "backup", res.Backup)
	default:
		res.Status = StatusInstalled
		r.out.Installed++
		elog.Info("entry installed")
	}
	r.out.Items[r.items[it.Index]] = res

	r.done++
	r.sink.Publish(events.Event{
		Kind:    events.ItemCompleted,
		Index:   k,
		Total:   r.total,
		EntryID: it.Entry.ID,
		Success: itemErr == nil,
		Err:     itemErr,
		Time:    r.in.now(),
	})
	r.snapshotItem(events.PhaseInstalling, k, 1, fmt.Sprintf("Finished %s", it.Entry.DisplayName()))
}

// process is the per-entry pipeline: stage, check size, check hash, back up,
// install. The staged file is removed on every path out.
func (r *run) process(ctx context.Context, log *logging.Logger, k int, it plan.Item) (ItemResult, *Failure) {
	e := it.Entry
	name := e.DisplayName()

	r.snapshotItem(events.PhaseDownloading, k, 0, "Downloading "+name)

	f, err := os.CreateTemp(r.staging, manifest.SanitizeFilename(e.ID)+"-*.part")
	if err != nil {
		return ItemResult{}, &Failure{Category: InstallFailed, Message: "cannot create staging file: " + err.Error(), Err: err}
	}
	staged := f.Name()
	defer func() {
		_ = f.Close()
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove staged file", "path", staged, "error", err)
		}
	}()

	sw := &stagingWriter{f: f, limit: e.SizeBytes}
	hw := verify.NewHashingWriter(sw)
	sampler := logging.NewProgressSampler(25)
	progress := func(received, total int64) {
		if total <= 0 {
			total = e.SizeBytes
		}
		var frac float64
		if total > 0 {
			frac = min(float64(received)/float64(total), 1)
		}
		if log.Enabled(logging.LevelDebug) && sampler.ShouldLog(e.ID, frac*100) {
			log.Debug("download progress", "entry", e.ID, "received", received, "total", total)
		}
		r.sink.Publish(events.Event{
			Kind:          events.DownloadProgress,
			Index:         k,
			Total:         r.total,
			EntryID:       e.ID,
			BytesReceived: received,
			BytesTotal:    total,
			Time:          r.in.now(),
		})
		r.snapshotItem(events.PhaseDownloading, k, frac, fmt.Sprintf("Downloading %s (%s / %s)",
			name, humanize.IBytes(uint64(received)), humanize.IBytes(uint64(total))))
	}

	_, fetchErr := r.in.fetcher.Fetch(ctx, e.SourceURL, hw, progress)
	closeErr := f.Close()
	r.out.BytesTransferred += hw.Written()

	if ctx.Err() != nil {
		return ItemResult{Status: StatusCancelled}, nil
	}
	if sw.oversize {
		return ItemResult{}, &Failure{
			Category: SizeMismatch,
			Message:  fmt.Sprintf("expected %d bytes, server sent more", e.SizeBytes),
			Err:      errOversize,
		}
	}
	if sw.err != nil {
		return ItemResult{}, &Failure{Category: InstallFailed, Message: "cannot write staging file: " + sw.err.Error(), Err: sw.err}
	}
	if fetchErr != nil {
		cat := DownloadFailed
		if errors.Is(fetchErr, ErrInvalidSource) {
			cat = InvalidSource
		}
		return ItemResult{}, &Failure{Category: cat, Message: fetchErr.Error(), Err: fetchErr}
	}
	if closeErr != nil {
		return ItemResult{}, &Failure{Category: InstallFailed, Message: "cannot write staging file: " + closeErr.Error(), Err: closeErr}
	}

	r.snapshotItem(events.PhaseVerifying, k, 1, "Verifying "+name)
	if got := hw.Written(); got != e.SizeBytes {
		return ItemResult{}, &Failure{
			Category: SizeMismatch,
			Message:  fmt.Sprintf("expected %d bytes, received %d", e.SizeBytes, got),
		}
	}
	if got := hw.Sum(); !verify.Equal(got, e.Hash) {
		return ItemResult{}, &Failure{
			Category: HashMismatch,
			Message:  fmt.Sprintf("expected sha256 %s, got %s", e.Hash, got),
		}
	}

	if ctx.Err() != nil {
		return ItemResult{Status: StatusCancelled}, nil
	}

	res := ItemResult{Status: StatusInstalled}
	if it.Kind == plan.Replace {
		res.Status = StatusReplaced
		r.snapshotItem(events.PhaseBackingUp, k, 1, "Backing up "+filepath.Base(it.ExistingPath))
		saved, err := r.backups.Save(it.ExistingPath)
		if err != nil {
			log.Warn("backup failed, replacing anyway", "path", it.ExistingPath, "error", err)
		} else {
			res.Backup = saved
		}
	}

	r.snapshotItem(events.PhaseInstalling, k, 1, "Installing "+name)
	moved, err := r.in.mover.Move(staged, it.TargetPath)
	if err != nil {
		return ItemResult{}, &Failure{Category: InstallFailed, Message: err.Error(), Err: err}
	}
	if moved.Copied {
		log.Debug("installed by copy", "target", it.TargetPath)
	}
	if moved.SourceLeft != nil {
		log.Warn("staged copy left behind", "path", staged, "error", moved.SourceLeft)
	}

	return res, nil
}

// finish computes the terminal state and publishes the final snapshot.
func (r *run) finish(log *logging.Logger) *Outcome {
	out := r.out
	out.Success = len(out.Failures) == 0 && !out.Cancelled

	switch {
	case out.Cancelled:
		out.Phase = events.PhaseCancelled
	case len(out.Failures) > 0:
		out.Phase = events.PhaseFailedPartially
	default:
		out.Phase = events.PhaseComplete
	}

	if r.backups != nil {
		out.BackupDir = r.backups.Dir()
		out.Backups = r.backups.Files()
		if out.Success && !r.in.keepBackups && out.BackupDir != "" {
			if err := os.RemoveAll(out.BackupDir); err != nil {
				log.Warn("failed to discard backups", "path", out.BackupDir, "error", err)
			} else {
				out.BackupDir, out.Backups = "", nil
			}
		}
	}

	out.FinishedAt = r.in.now()
	log.Info("install finished",
		"phase", out.Phase,
		"installed", out.Installed,
		"replaced", out.Replaced,
		"skipped", out.Skipped,
		"failed", out.Failed,
		"cancelled", out.Cancelled,
		"bytes", out.BytesTransferred,
		"duration", out.Duration())

	status := fmt.Sprintf("%d installed, %d replaced, %d up to date, %d failed",
		out.Installed, out.Replaced, out.Skipped, out.Failed)
	r.sink.Publish(events.Event{
		Kind:           events.Snapshot,
		Phase:          out.Phase,
		Index:          r.done,
		Total:          r.total,
		OverallPercent: 100,
		CurrentPercent: 100,
		Status:         status,
		Time:           out.FinishedAt,
	})
	return out
}

func (r *run) snapshot(phase events.Phase, index int, status string) {
	r.sink.Publish(events.Event{
		Kind:   events.Snapshot,
		Phase:  phase,
		Index:  index,
		Total:  r.total,
		Status: status,
		Time:   r.in.now(),
	})
}

// snapshotItem reports progress for item k with current fraction frac.
// Overall progress is (finished items + frac) / total.
func (r *run) snapshotItem(phase events.Phase, k int, frac float64, status string) {
	overall := 0.0
	if r.total > 0 {
		completed := float64(r.done)
		if completed < float64(k) {
			completed += frac
		}
		overall = min(completed/float64(r.total)*100, 100)
	}
	r.sink.Publish(events.Event{
		Kind:           events.Snapshot,
		Phase:          phase,
		Index:          k,
		Total:          r.total,
		OverallPercent: overall,
		CurrentPercent: frac * 100,
		Status:         status,
		Time:           r.in.now(),
	})
}

// errOversize stops a download that has sent more than the entry declares.
var errOversize = errors.New("download exceeds declared size")

// stagingWriter remembers write failures so they can be told apart from
// network failures, and refuses bytes beyond limit.
type stagingWriter struct {
	f        *os.File
	limit    int64
	n        int64
	oversize bool
	err      error
}

func (w *stagingWriter) Write(p []byte) (int, error) {
	if w.n+int64(len(p)) > w.limit {
		w.oversize = true
		return 0, errOversize
	}
	n, err := w.f.Write(p)
	w.n += int64(n)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n, err
}
