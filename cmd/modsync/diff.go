package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two manifests",
	Long: `List the entries added, removed and changed between two manifests.
Changed entries show the version and hash they moved between.

Either argument may be a manifest file or the id of a saved manifest.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldM, err := loadManifest(args[0])
	if err != nil {
		return reportManifestError(err)
	}
	newM, err := loadManifest(args[1])
	if err != nil {
		return reportManifestError(err)
	}
	return render(output.FromDiff(manifest.Compare(oldM, newM)))
}
