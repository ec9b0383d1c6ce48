package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/config"
	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <manifest> [mods-dir]",
	Short: "Report drift between a mods directory and a manifest as it happens",
	Long: `Plan once, then plan again whenever package files in the mods directory
change. When the manifest is a file, edits to it are picked up too.

With --install, every plan that is out of sync is installed straight away.
Press Ctrl-C to stop.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

var (
	watchInstall  bool
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().BoolVar(&watchInstall, "install", false, "install whenever the directory drifts")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-planning")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	m, err := loadManifest(args[0])
	if err != nil {
		return reportManifestError(err)
	}
	dir, err := targetDir(args, 1)
	if err != nil {
		return err
	}

	v, closeVerifier := openVerifier()
	defer closeVerifier()

	opts := []watch.Option{
		watch.WithDebounce(watchDebounce),
		watch.WithVerifier(v),
	}
	if path, err := config.ExpandPath(args[0]); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			opts = append(opts, watch.WithManifestFile(path))
		}
	}

	w, err := watch.New(m, dir, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	var installer *install.Installer
	if watchInstall {
		lock, err := lockTarget(dir)
		if err != nil {
			return err
		}
		defer func() { _ = lock.Unlock() }()

		iopts, err := installerOptions(dir, v)
		if err != nil {
			return err
		}
		installer = install.New(newFetcher(), iopts...)
	}

	log := logging.Get("cli")
	printInfo("Watching %s (Ctrl-C to stop)", dir)

	err = w.Run(ctx, func(rep watch.Report) {
		if rep.Err != nil {
			if ctx.Err() == nil {
				printError("%s: %v", rep.Time.Format(time.TimeOnly), rep.Err)
			}
			return
		}
		if rep.Trigger != "" {
			printInfo("%s: %s", rep.Time.Format(time.TimeOnly), rep.Trigger)
		}
		if err := render(output.FromPlan(rep.Manifest, rep.Plan)); err != nil {
			log.Warn("failed to render plan", "error", err)
		}
		if installer == nil || rep.Plan.ActionCount() == 0 {
			return
		}
		progress, stopProgress := newProgressSink(os.Stderr)
		sink := events.Multi(progress, events.Funcs{OnSnapshot: logSnapshots(log)})
		outcome, err := installer.Install(ctx, rep.Manifest, dir, sink)
		stopProgress()
		if err != nil {
			printError("install: %v", err)
			return
		}
		recordHistory(outcome, rep.Manifest)
		if err := render(output.FromOutcome(outcome)); err != nil {
			log.Warn("failed to render outcome", "error", err)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
