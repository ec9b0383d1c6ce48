package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/jamesainslie/modsync/pkg/modsync/cache"
	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/fetch"
	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/verify"
)

// targetDir returns args[i] when present, else the configured mods_dir.
func targetDir(args []string, i int) (string, error) {
	dir := ""
	if len(args) > i {
		dir = args[i]
	} else if cfg != nil {
		dir = cfg.ModsDir
	}
	if dir == "" {
		return "", errors.New("no mods directory given and mods_dir is not configured")
	}
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// loadManifest reads a manifest from a file, or from the library when ref is
// not an existing path. Manifests that fail validation are rejected.
func loadManifest(ref string) (*manifest.Manifest, error) {
	path, err := config.ExpandPath(ref)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		m, errs, err := manifest.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			return nil, &install.ValidationFailedError{Errors: errs}
		}
		return m, nil
	}

	lib, err := openLibrary()
	if err != nil {
		return nil, err
	}
	m, err := lib.Get(ref)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%s is neither a manifest file nor a saved manifest id", ref)
		}
		return nil, err
	}
	return m, nil
}

func openLibrary() (*manifest.Library, error) {
	return manifest.NewLibrary(cfg.Library.Path)
}

// openVerifier returns the hash-cache backed verifier when the cache is
// enabled and can be opened, and the plain verifier otherwise. The returned
// function releases the cache.
func openVerifier() (verify.Verifier, func()) {
	if !cfg.HashCache.Enabled {
		return verify.Default, func() {}
	}
	hc, err := cache.Open(cfg.HashCache.Path)
	if err != nil {
		logging.Get("cli").Warn("hash cache unavailable", "path", cfg.HashCache.Path, "error", err)
		printVerbose("Hash cache unavailable: %v", err)
		return verify.Default, func() {}
	}
	return verify.NewCaching(hc), func() {
		if err := hc.Close(); err != nil {
			logging.Get("cli").Warn("failed to close hash cache", "error", err)
		}
	}
}

func newFetcher() *fetch.HTTP {
	return fetch.New(fetch.Options{
		Timeout:   cfg.HTTP.Timeout,
		Retries:   cfg.HTTP.Retries,
		UserAgent: cfg.HTTP.UserAgent,
	})
}

// installerOptions maps the configuration onto installer options for dir.
func installerOptions(dir string, v verify.Verifier) ([]install.Option, error) {
	minFree, err := cfg.MinFreeSpaceBytes()
	if err != nil {
		return nil, err
	}
	return []install.Option{
		install.WithStagingDir(cfg.ResolveStagingDir(dir)),
		install.WithBackupDir(cfg.ResolveBackupDir(dir)),
		install.WithVerifier(v),
		install.WithMinFreeSpace(minFree),
		install.WithKeepBackups(cfg.Backup.Keep),
	}, nil
}

// lockTarget takes the per-directory run lock so two modsync processes do
// not install into the same directory at once.
func lockTarget(dir string) (*flock.Flock, error) {
	work := config.WorkDir(dir)
	if err := os.MkdirAll(work, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", work, err)
	}
	lock := flock.New(filepath.Join(work, "lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another modsync run is using %s", dir)
	}
	return lock, nil
}

// gameOrDefault parses s, falling back to the configured game.
func gameOrDefault(s string) (manifest.Game, error) {
	if s == "" {
		s = cfg.Game
	}
	return manifest.ParseGame(s)
}

func writeManifest(m *manifest.Manifest, path string) error {
	if path == "" || path == "-" {
		data, err := manifest.Save(m)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := manifest.SaveFile(path, m); err != nil {
		return err
	}
	printInfo("Wrote %s", path)
	return nil
}

func printValidationErrors(errs []manifest.ValidationError) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  %s\n", e.Error())
	}
}
