package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/output"
	"github.com/jamesainslie/modsync/pkg/modsync/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan <manifest> [mods-dir]",
	Short: "Show what an install would change",
	Long: `Compare a manifest with a mods directory and list, per entry, whether the
file would be downloaded, replaced or left alone. Nothing is changed.

With --check it exits non-zero when the directory is out of sync.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPlan,
}

var planCheck bool

func init() {
	planCmd.Flags().BoolVar(&planCheck, "check", false, "exit non-zero when the directory is out of sync")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	p, err := plan.New(v).Plan(ctx, m, dir)
	if err != nil {
		return err
	}
	if err := render(output.FromPlan(m, p)); err != nil {
		return err
	}
	if planCheck && !p.InSync() {
		return errUnsuccessful
	}
	return nil
}
