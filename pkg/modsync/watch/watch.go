// Package watch re-plans a target directory whenever its contents, or the
// manifest it is checked against, change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// DefaultDebounce is how long the directory must be quiet before re-planning.
const DefaultDebounce = 500 * time.Millisecond

// Report is delivered after each re-plan.
type Report struct {
	Manifest *manifest.Manifest
	Plan     *plan.Plan
	Err      error // planning or manifest reload failure
	Trigger  string
	Time     time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a re-plan.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithVerifier sets the verifier used for planning.
func WithVerifier(v verify.Verifier) Option {
	return func(w *Watcher) {
		w.planner = plan.New(v)
	}
}

// WithManifestFile reloads the manifest from path whenever that file
// changes.
func WithManifestFile(path string) Option {
	return func(w *Watcher) {
		w.manifestPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches a target directory for drift from a manifest.
type Watcher struct {
	dir          string
	manifestPath string
	debounce     time.Duration
	planner      *plan.Planner
	logger       *logging.Logger
	fsw          *fsnotify.Watcher

	mu       sync.Mutex
	manifest *manifest.Manifest
	closed   bool
}

// New creates a Watcher for dir checked against m.
func New(m *manifest.Manifest, dir string, opts ...Option) (*Watcher, error) {
	if m == nil {
		return nil, errors.New("manifest is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	w := &Watcher{
		dir:      filepath.Clean(dir),
		debounce: DefaultDebounce,
		planner:  plan.New(nil),
		logger:   logging.Get("watch"),
		manifest: m,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if w.manifestPath != "" {
		w.manifestPath = filepath.Clean(w.manifestPath)
		parent := filepath.Dir(w.manifestPath)
		if parent != w.dir {
			if err := fsw.Add(parent); err != nil {
				_ = fsw.Close()
				return nil, fmt.Errorf("watch %s: %w", parent, err)
			}
		}
	}
	w.fsw = fsw
	return w, nil
}

// Manifest returns the manifest currently checked against.
func (w *Watcher) Manifest() *manifest.Manifest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.manifest
}

// Run plans once immediately, then again after every burst of relevant
// changes, calling onReport each time. It blocks until ctx is done or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context, onReport func(Report)) error {
	w.replan(ctx, "start", false, onReport)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var (
		pending string
		reload  bool
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			trigger, isManifest := w.classify(ev)
			if trigger == "" {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			pending = trigger
			reload = reload || isManifest
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			w.replan(ctx, pending, reload, onReport)
			pending, reload = "", false
		}
	}
}

// classify returns a description of a relevant event, or "" when the event
// cannot affect the plan.
func (w *Watcher) classify(ev fsnotify.Event) (string, bool) {
	if ev.Op == fsnotify.Chmod {
		return "", false
	}
	path := filepath.Clean(ev.Name)
	if w.manifestPath != "" && path == w.manifestPath {
		return "manifest " + strings.ToLower(ev.Op.String()), true
	}
	if filepath.Dir(path) != w.dir {
		return "", false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	if manifest.IsPackageFile(name) || w.targets(name) {
		return name + " " + strings.ToLower(ev.Op.String()), false
	}
	return "", false
}

func (w *Watcher) targets(name string) bool {
	m := w.Manifest()
	for _, e := range m.Entries {
		if strings.EqualFold(e.EffectiveFilename(), name) {
			return true
		}
	}
	return false
}

func (w *Watcher) replan(ctx context.Context, trigger string, reload bool, onReport func(Report)) {
	rep := Report{Trigger: trigger, Time: time.Now()}

	if reload {
		m, errs, err := manifest.LoadFile(w.manifestPath)
		switch {
		case err != nil:
			rep.Err = fmt.Errorf("reload manifest: %w", err)
		case len(errs) > 0:
			rep.Err = fmt.Errorf("reload manifest: %s", errs[0].Error())
		default:
			w.mu.Lock()
			w.manifest = m
			w.mu.Unlock()
			w.logger.Info("manifest reloaded", "id", m.ID, "revision", m.Revision)
		}
	}

	rep.Manifest = w.Manifest()
	if rep.Err == nil {
		p, err := w.planner.Plan(ctx, rep.Manifest, w.dir)
		if err != nil {
			rep.Err = err
		}
		rep.Plan = p
	}

	if onReport != nil {
		onReport(rep)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
