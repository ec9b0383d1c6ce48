package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/events"
	"github.com/jamesainslie/modsync/pkg/modsync/history"
	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/logging"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
)

var installCmd = &cobra.Command{
	Use:   "install <manifest> [mods-dir]",
	Short: "Bring a mods directory in sync with a manifest",
	Long: `Download missing files and replace stale ones so that the mods directory
matches the manifest. Files that already match are left alone.

Every download is staged next to the mods directory and checked against the
declared size and SHA-256 before it replaces anything. Replaced files are
copied into a timestamped backup directory first.

<manifest> is a manifest file or the id of a saved manifest.
Press Ctrl-C to stop after the current file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInstall,
}

var (
	installNoBackup bool
	installDryRun   bool
)

func init() {
	installCmd.Flags().BoolVar(&installNoBackup, "no-backup", false, "discard backups of replaced files after a successful run")
	installCmd.Flags().BoolVarP(&installDryRun, "dry-run", "n", false, "show the plan without changing anything")
	rootCmd.AddCommand(installCmd)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runInstall(cmd *cobra.Command, args []string) error {
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

	if installDryRun {
		p, err := plan.New(v).Plan(ctx, m, dir)
		if err != nil {
			return err
		}
		return render(output.FromPlan(m, p))
	}

	lock, err := lockTarget(dir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	opts, err := installerOptions(dir, v)
	if err != nil {
		return err
	}
	if installNoBackup {
		opts = append(opts, install.WithKeepBackups(false))
	}
	installer := install.New(newFetcher(), opts...)

	progress, stopProgress := newProgressSink(os.Stderr)
	bus := events.NewBus()
	defer bus.Close()
	bus.SubscribeFunc(progress.Publish)
	bus.SubscribeFunc(logSnapshots(logging.Get("cli")))

	printVerbose("Installing %s (revision %d) into %s", m.Name, m.Revision, dir)
	outcome, err := installer.Install(ctx, m, dir, bus)
	stopProgress()
	if err != nil {
		return reportManifestError(err)
	}

	recordHistory(outcome, m)

	if err := render(output.FromOutcome(outcome)); err != nil {
		return err
	}
	if !outcome.Success {
		return errUnsuccessful
	}
	return nil
}

// logSnapshots writes phase changes to the log file.
func logSnapshots(log *logging.Logger) func(events.Event) {
	last := events.PhaseIdle
	return func(ev events.Event) {
		if ev.Kind != events.Snapshot || ev.Phase == last {
			return
		}
		last = ev.Phase
		log.Debug("install phase", "phase", ev.Phase.String(), "status", ev.Status,
			"overall", fmt.Sprintf("%.1f%%", ev.OverallPercent))
	}
}

// recordHistory stores the outcome of a run. Failing to do so never fails
// the install.
func recordHistory(o *install.Outcome, m *manifest.Manifest) {
	if !cfg.History.Enabled {
		return
	}
	store, err := history.New(cfg.History.Path)
	if err != nil {
		logging.Get("cli").Warn("history unavailable", "error", err)
		return
	}
	rec, err := store.Log(history.FromOutcome(o, m.Name))
	if err != nil {
		logging.Get("cli").Warn("failed to record install", "error", err)
		printVerbose("Failed to record history: %v", err)
		return
	}
	printVerbose("Recorded run %s", rec.ID)
}

// reportManifestError lists validation problems before returning err.
func reportManifestError(err error) error {
	var vf *install.ValidationFailedError
	if errors.As(err, &vf) {
		printError("manifest has %d problem(s):", len(vf.Errors))
		printValidationErrors(vf.Errors)
		return errUnsuccessful
	}
	return err
}
