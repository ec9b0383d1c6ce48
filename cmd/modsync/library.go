package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/modsync/pkg/modsync/install"
	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/jamesainslie/modsync/pkg/modsync/output"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage saved manifests",
	Long: `The library keeps manifests by id so they can be referred to without a
file path. Saving changed content under an id that is already present
stores it as the next revision; saving identical content changes nothing.`,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved manifests",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryShow,
}

var libraryPutCmd = &cobra.Command{
	Use:   "put <manifest-file>...",
	Short: "Save manifest files to the library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLibraryPut,
}

var libraryRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a saved manifest",
	Args:    cobra.ExactArgs(1),
	RunE:    runLibraryRm,
}

var libraryLimit int

func init() {
	libraryListCmd.Flags().IntVarP(&libraryLimit, "limit", "l", 0, "maximum number of manifests to show (0 for all)")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryShowCmd)
	libraryCmd.AddCommand(libraryPutCmd)
	libraryCmd.AddCommand(libraryRmCmd)
	rootCmd.AddCommand(libraryCmd)
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	ms, err := lib.List(libraryLimit)
	if err != nil {
		return fmt.Errorf("failed to list library: %w", err)
	}
	return render(output.FromManifests(ms))
}

func runLibraryShow(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	m, err := lib.Get(args[0])
	if err != nil {
		return err
	}
	return render(output.FromManifest(m))
}

func runLibraryPut(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	failed := false
	for _, path := range args {
		m, errs, err := manifest.LoadFile(path)
		if err == nil && len(errs) > 0 {
			err = &install.ValidationFailedError{Errors: errs}
		}
		if err != nil {
			printError("%s: %v", path, err)
			failed = true
			continue
		}
		saved, err := lib.Put(m)
		if err != nil {
			printError("%s: %v", path, err)
			failed = true
			continue
		}
		if saved.Revision != m.Revision {
			printInfo("%s: stored as revision %d", path, saved.Revision)
		}
		printInfo("Saved %s (revision %d) as %s", saved.Name, saved.Revision, saved.ID)
	}
	if failed {
		return errUnsuccessful
	}
	return nil
}

func runLibraryRm(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	if err := lib.Delete(args[0]); err != nil {
		return err
	}
	printInfo("Removed %s", args[0])
	return nil
}
