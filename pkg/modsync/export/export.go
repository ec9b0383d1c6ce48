// Package export builds a manifest from the package files already present in
// a directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// WorkDirName is the installer's working directory inside a target; it is
// never exported.
const WorkDirName = ".modsync"

// Options configures Export.
type Options struct {
	Name    string
	Game    manifest.Game
	BaseURL string // source URLs are BaseURL + "/" + escaped filename

	Description string
	Author      string

	// Verifier hashes files. Defaults to verify.Default.
	Verifier verify.Verifier
	// Concurrency bounds parallel hashing. Defaults to GOMAXPROCS.
	Concurrency int
	// Now stamps the manifest. Defaults to time.Now.
	Now func() time.Time
	// Progress, when set, is called after each file is hashed.
	Progress func(done, total int, name string)
}

// Export walks dir, hashes every package file in it and returns a new
// manifest (revision 1) whose entries are sorted by filename. Only files
// directly inside dir are considered.
func Export(ctx context.Context, dir string, opts Options) (*manifest.Manifest, error) {
	if opts.Name == "" {
		return nil, errors.New("manifest name is required")
	}
	if !opts.Game.Valid() {
		return nil, fmt.Errorf("%w: %q", manifest.ErrUnknownGame, opts.Game)
	}
	base, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.Default
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := logging.Get("export")

	files, err := collect(ctx, dir)
	if err != nil {
		return nil, err
	}
	log.Debug("collected package files", "dir", dir, "count", len(files))

	entries := make([]manifest.Entry, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			digest, err := opts.Verifier.HashFile(f.path)
			if err != nil {
				return fmt.Errorf("hash %s: %w", f.name, err)
			}
			entries[i] = manifest.Entry{
				ID:        manifest.SanitizeFilename(strings.TrimSuffix(f.name, filepath.Ext(f.name))),
				Filename:  f.name,
				Hash:      digest,
				SizeBytes: f.size,
				SourceURL: base + "/" + url.PathEscape(f.name),
			}
			if opts.Progress != nil {
				mu.Lock()
				done++
				opts.Progress(done, len(files), f.name)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uniqueIDs(entries)

	m := manifest.CreateNewAt(opts.Name, opts.Game, opts.Now())
	m.Description = opts.Description
	m.Author = opts.Author
	m = m.WithEntries(entries)

	log.Info("exported manifest", "dir", dir, "entries", len(entries), "bytes", m.TotalBytes())
	return m, nil
}

type packageFile struct {
	path string
	name string
	size int64
}

// collect returns the non-empty package files directly inside dir, sorted by
// name.
func collect(ctx context.Context, dir string) ([]packageFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := filepath.Clean(dir)
	var (
		mu    sync.Mutex
		files []packageFile
	)
	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			return fastwalk.SkipDir
		}
		if !d.Type().IsRegular() || !manifest.IsPackageFile(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.Size() == 0 {
			return nil
		}
		mu.Lock()
		files = append(files, packageFile{path: path, name: d.Name(), size: fi.Size()})
		mu.Unlock()
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].name) < strings.ToLower(files[j].name)
	})
	return files, nil
}

// uniqueIDs suffixes ids that collide case-insensitively.
func uniqueIDs(entries []manifest.Entry) {
	seen := make(map[string]int)
	for i := range entries {
		key := strings.ToLower(entries[i].ID)
		seen[key]++
		if n := seen[key]; n > 1 {
			entries[i].ID = fmt.Sprintf("%s-%d", entries[i].ID, n)
		}
	}
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("base URL must be an absolute http(s) URL: %q", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}
